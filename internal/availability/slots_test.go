package availability

import (
	"testing"
	"time"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("LoadLocation(%s) failed: %v", name, err)
	}
	return loc
}

func TestComputeSlots_Istanbul(t *testing.T) {
	loc := mustLoc(t, "Europe/Istanbul")
	day := time.Date(2026, 3, 10, 12, 0, 0, 0, loc)

	slots := ComputeSlots(day, ClockTime{9, 0}, ClockTime{11, 0}, 60, loc)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}

	wantFirst := time.Date(2026, 3, 10, 9, 0, 0, 0, loc)
	wantSecond := time.Date(2026, 3, 10, 10, 0, 0, 0, loc)
	if !slots[0].Start.Equal(wantFirst) || !slots[0].End.Equal(wantSecond) {
		t.Fatalf("first slot wrong: %v - %v", slots[0].Start, slots[0].End)
	}
	if !slots[1].Start.Equal(wantSecond) || !slots[1].End.Equal(time.Date(2026, 3, 10, 11, 0, 0, 0, loc)) {
		t.Fatalf("second slot wrong: %v - %v", slots[1].Start, slots[1].End)
	}
	if slots[0].Start.Location() != time.UTC {
		t.Fatal("slots must be returned in UTC")
	}
}

func TestComputeSlots_Properties(t *testing.T) {
	loc := mustLoc(t, "Europe/Istanbul")
	day := time.Date(2026, 5, 4, 0, 0, 0, 0, loc)

	slots := ComputeSlots(day, ClockTime{9, 0}, ClockTime{18, 0}, 50, loc)
	if len(slots) == 0 {
		t.Fatal("expected slots")
	}
	for i, s := range slots {
		if got := s.End.Sub(s.Start); got != 50*time.Minute {
			t.Fatalf("slot %d has length %v, want 50m", i, got)
		}
		if i > 0 && !slots[i-1].End.Equal(s.Start) {
			t.Fatalf("slot %d is not contiguous with its predecessor", i)
		}
	}
	workEnd := time.Date(2026, 5, 4, 18, 0, 0, 0, loc)
	if last := slots[len(slots)-1]; last.End.After(workEnd) {
		t.Fatalf("last slot end %v exceeds work end %v", last.End, workEnd)
	}
}

func TestComputeSlots_InvertedHoursEmpty(t *testing.T) {
	loc := mustLoc(t, "Europe/Istanbul")
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, loc)

	if slots := ComputeSlots(day, ClockTime{18, 0}, ClockTime{9, 0}, 60, loc); slots != nil {
		t.Fatalf("expected no slots when workEnd <= workStart, got %d", len(slots))
	}
	if slots := ComputeSlots(day, ClockTime{9, 0}, ClockTime{9, 0}, 60, loc); slots != nil {
		t.Fatalf("expected no slots for empty window, got %d", len(slots))
	}
}

func TestComputeSlots_DropsPartialTrailingWindow(t *testing.T) {
	loc := mustLoc(t, "Europe/Istanbul")
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, loc)

	// 09:00-10:30 with 60m slots: only 09:00-10:00 fits.
	slots := ComputeSlots(day, ClockTime{9, 0}, ClockTime{10, 30}, 60, loc)
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
}

func TestComputeSlots_DSTSpringForward(t *testing.T) {
	// Berlin 2026-03-29: 02:00 local jumps to 03:00, the day has 23 hours.
	loc := mustLoc(t, "Europe/Berlin")
	day := time.Date(2026, 3, 29, 12, 0, 0, 0, loc)

	slots := ComputeSlots(day, ClockTime{1, 0}, ClockTime{5, 0}, 60, loc)
	for i, s := range slots {
		wantStart := time.Date(2026, 3, 29, 1+i, 0, 0, 0, loc)
		if !s.Start.Equal(wantStart) {
			t.Fatalf("slot %d starts at %v, want local %v", i, s.Start, wantStart)
		}
	}
	// Wall-clock 01:00, 02:00 (=03:00), 03:00, 04:00 produce duplicate and
	// normalized instants; what matters is that the final slot still ends at
	// local 05:00 rather than drifting an hour.
	last := slots[len(slots)-1]
	if !last.End.Equal(time.Date(2026, 3, 29, 5, 0, 0, 0, loc)) {
		t.Fatalf("last slot end drifted across DST: %v", last.End)
	}
}

func TestOverlaps_HalfOpen(t *testing.T) {
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return base.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	// Touching endpoints do not overlap.
	if Overlaps(at(9, 0), at(10, 0), at(10, 0), at(11, 0)) {
		t.Fatal("[9,10) and [10,11) must not overlap")
	}
	if Overlaps(at(10, 0), at(11, 0), at(9, 0), at(10, 0)) {
		t.Fatal("overlap must be symmetric for touching intervals")
	}
	// One minute past the boundary does.
	if !Overlaps(at(9, 0), at(10, 1), at(10, 0), at(11, 0)) {
		t.Fatal("[9,10:01) and [10,11) must overlap")
	}
	if !Overlaps(at(10, 0), at(11, 0), at(9, 0), at(10, 1)) {
		t.Fatal("overlap must be symmetric")
	}
	// Containment.
	if !Overlaps(at(9, 0), at(12, 0), at(10, 0), at(11, 0)) {
		t.Fatal("containing interval must overlap")
	}
}

func TestFreeSlots_EmptyBusyIsIdentity(t *testing.T) {
	loc := mustLoc(t, "Europe/Istanbul")
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, loc)
	candidates := ComputeSlots(day, ClockTime{9, 0}, ClockTime{12, 0}, 60, loc)

	free := FreeSlots(candidates, nil)
	if len(free) != len(candidates) {
		t.Fatalf("expected all %d candidates free, got %d", len(candidates), len(free))
	}
	for i := range free {
		if !free[i].Start.Equal(candidates[i].Start) || !free[i].End.Equal(candidates[i].End) {
			t.Fatalf("slot %d changed", i)
		}
	}
}

func TestFreeSlots_SubtractsBusy(t *testing.T) {
	loc := mustLoc(t, "Europe/Istanbul")
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, loc)
	candidates := ComputeSlots(day, ClockTime{9, 0}, ClockTime{11, 0}, 60, loc)

	busy := []Interval{{
		Start: time.Date(2026, 3, 10, 9, 0, 0, 0, loc).UTC(),
		End:   time.Date(2026, 3, 10, 10, 0, 0, 0, loc).UTC(),
	}}
	free := FreeSlots(candidates, busy)
	if len(free) != 1 {
		t.Fatalf("expected 1 free slot, got %d", len(free))
	}
	if !free[0].Start.Equal(time.Date(2026, 3, 10, 10, 0, 0, 0, loc)) {
		t.Fatalf("expected 10:00 slot free, got %v", free[0].Start)
	}
}

func TestHasConflict(t *testing.T) {
	loc := mustLoc(t, "Europe/Istanbul")
	at := func(h, m int) time.Time { return time.Date(2026, 3, 10, h, m, 0, 0, loc).UTC() }

	busy := []Interval{{Start: at(9, 30), End: at(10, 30)}}
	if !HasConflict(at(10, 0), at(11, 0), busy) {
		t.Fatal("booking [10,11) over busy [9:30,10:30) must conflict")
	}
	if HasConflict(at(10, 30), at(11, 30), busy) {
		t.Fatal("booking starting exactly at busy end must not conflict")
	}
	if HasConflict(at(8, 30), at(9, 30), busy) {
		t.Fatal("booking ending exactly at busy start must not conflict")
	}
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:30")
	if err != nil || c.Hour != 9 || c.Minute != 30 {
		t.Fatalf("ParseClock(09:30) = %+v, %v", c, err)
	}
	for _, bad := range []string{"", "9", "25:00", "09:61", "ab:cd"} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestDayWindow(t *testing.T) {
	loc := mustLoc(t, "Europe/Istanbul")
	now := time.Date(2026, 3, 10, 15, 45, 0, 0, loc)

	start, end := DayWindow(now, loc)
	if !start.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, loc)) {
		t.Fatalf("window start wrong: %v", start)
	}
	if !end.Equal(time.Date(2026, 3, 11, 0, 0, 0, 0, loc)) {
		t.Fatalf("window end wrong: %v", end)
	}
	if got := end.Sub(start); got != 24*time.Hour {
		t.Fatalf("window length %v, want 24h", got)
	}
}
