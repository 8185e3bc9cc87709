package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// ClockTime is a wall-clock time of day, e.g. the start of working hours.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" into a ClockTime.
func ParseClock(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return ClockTime{}, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return ClockTime{}, fmt.Errorf("invalid clock time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return ClockTime{}, fmt.Errorf("invalid clock time %q", s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

func (c ClockTime) minutes() int {
	return c.Hour*60 + c.Minute
}

// ComputeSlots generates consecutive candidate windows of slotMinutes length
// between workStart and workEnd on the given calendar day, interpreted in loc.
// Returned intervals are in UTC, ordered ascending. A trailing window shorter
// than slotMinutes is dropped. Each slot boundary is built as a local
// wall-clock instant and converted to UTC independently, so a DST transition
// inside the working day does not shift later slots.
func ComputeSlots(day time.Time, workStart, workEnd ClockTime, slotMinutes int, loc *time.Location) []Interval {
	if slotMinutes <= 0 || loc == nil {
		return nil
	}
	startMins := workStart.minutes()
	endMins := workEnd.minutes()
	if endMins <= startMins {
		return nil
	}

	local := day.In(loc)
	y, m, d := local.Date()

	var slots []Interval
	for cur := startMins; cur+slotMinutes <= endMins; cur += slotMinutes {
		slotStart := time.Date(y, m, d, 0, cur, 0, 0, loc)
		slotEnd := time.Date(y, m, d, 0, cur+slotMinutes, 0, 0, loc)
		slots = append(slots, Interval{
			Start: slotStart.UTC(),
			End:   slotEnd.UTC(),
		})
	}
	return slots
}

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect.
// Half-open semantics: touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// FreeSlots filters candidates down to those that overlap no busy interval.
func FreeSlots(candidates, busy []Interval) []Interval {
	var free []Interval
	for _, c := range candidates {
		if !overlapsAny(c.Start, c.End, busy) {
			free = append(free, c)
		}
	}
	return free
}

// HasConflict reports whether a proposed [start,end) interval overlaps any
// busy interval. Callers still rely on the storage exclusion constraint as
// the authoritative guard; this check exists to answer before writing.
func HasConflict(start, end time.Time, busy []Interval) bool {
	return overlapsAny(start, end, busy)
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

// DayWindow returns [local midnight, local midnight + 24h) of the day
// containing t in loc, converted to UTC. Used to load a tenant's busy
// intervals for "today".
func DayWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	y, m, d := local.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	return start.UTC(), end.UTC()
}
