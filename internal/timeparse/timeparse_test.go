package timeparse

import (
	"testing"
	"time"
)

func istanbul(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Istanbul")
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}
	return loc
}

func TestParse_ExplicitLayouts(t *testing.T) {
	loc := istanbul(t)
	p := New()
	ref := time.Date(2026, 3, 10, 12, 0, 0, 0, loc)

	cases := []struct {
		text string
		want time.Time
	}{
		{"2026-10-24 13:00", time.Date(2026, 10, 24, 13, 0, 0, 0, loc)},
		{"2026-10-24T13:00", time.Date(2026, 10, 24, 13, 0, 0, 0, loc)},
		{"24.10.2026 13:00", time.Date(2026, 10, 24, 13, 0, 0, 0, loc)},
		{"24/10/2026 13:00", time.Date(2026, 10, 24, 13, 0, 0, 0, loc)},
	}
	for _, tc := range cases {
		got, ok := p.Parse(tc.text, ref, loc)
		if !ok {
			t.Fatalf("Parse(%q) failed", tc.text)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("Parse(%q) = %v, want %v", tc.text, got, tc.want)
		}
		if got.Location() != time.UTC {
			t.Fatalf("Parse(%q) must return UTC", tc.text)
		}
	}
}

func TestParse_NaturalLanguage(t *testing.T) {
	loc := istanbul(t)
	p := New()
	ref := time.Date(2026, 3, 10, 12, 0, 0, 0, loc)

	got, ok := p.Parse("book tomorrow at 14:00 please", ref, loc)
	if !ok {
		t.Fatal("expected natural-language parse to succeed")
	}
	want := time.Date(2026, 3, 11, 14, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParse_Unparseable(t *testing.T) {
	loc := istanbul(t)
	p := New()
	ref := time.Date(2026, 3, 10, 12, 0, 0, 0, loc)

	for _, text := range []string{"", "   ", "hello", "do you have anything free?"} {
		if _, ok := p.Parse(text, ref, loc); ok {
			t.Fatalf("expected Parse(%q) to fail", text)
		}
	}
}

func TestParse_RejectsDayWordsWithoutClockTime(t *testing.T) {
	// Bare day words resolve to the reference clock time, which the
	// sender never chose; they must not read as a concrete instant.
	loc := istanbul(t)
	p := New()
	ref := time.Date(2026, 3, 10, 8, 0, 0, 0, loc)

	for _, text := range []string{"tomorrow", "is tomorrow free", "today", "next week"} {
		if got, ok := p.Parse(text, ref, loc); ok {
			t.Fatalf("Parse(%q) = %v, want no result", text, got)
		}
	}

	// With a time of day attached the same words parse fine.
	got, ok := p.Parse("is tomorrow at 14:00 free", ref, loc)
	if !ok {
		t.Fatal("expected parse with explicit time to succeed")
	}
	want := time.Date(2026, 3, 11, 14, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
