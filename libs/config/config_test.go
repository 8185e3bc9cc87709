package config

import "testing"

func TestStringFallback(t *testing.T) {
	t.Setenv("CONFIG_TEST_KEY", "")
	if got := String("CONFIG_TEST_KEY", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("CONFIG_TEST_KEY", "set")
	if got := String("CONFIG_TEST_KEY", "fallback"); got != "set" {
		t.Fatalf("expected set, got %q", got)
	}
}

func TestInt(t *testing.T) {
	t.Setenv("CONFIG_TEST_INT", "42")
	if got := Int("CONFIG_TEST_INT", 7); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	t.Setenv("CONFIG_TEST_INT", "not-a-number")
	if got := Int("CONFIG_TEST_INT", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
}

func TestPort(t *testing.T) {
	t.Setenv("CONFIG_TEST_PORT", "8080")
	if got, err := Port("CONFIG_TEST_PORT", "80"); err != nil || got != "8080" {
		t.Fatalf("expected 8080, got %q (err %v)", got, err)
	}
	t.Setenv("CONFIG_TEST_PORT", "70000")
	if _, err := Port("CONFIG_TEST_PORT", "80"); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}
