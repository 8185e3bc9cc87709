package reminder

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Offset describes how long before an appointment's start a reminder
// fires. Label distinguishes jobs for the same appointment.
type Offset struct {
	Label  string
	Before time.Duration
}

func DefaultOffsets() []Offset {
	return []Offset{
		{Label: "24h", Before: 24 * time.Hour},
		{Label: "1h", Before: time.Hour},
	}
}

// ParseOffsets parses a comma separated list of minute counts, for
// example "1440,60". Invalid entries are logged and skipped; an empty
// result falls back to the defaults.
func ParseOffsets(raw string, logger *slog.Logger) []Offset {
	var offsets []Offset
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mins, err := strconv.Atoi(part)
		if err != nil || mins <= 0 {
			logger.Warn("ignoring invalid reminder offset", "value", part)
			continue
		}
		offsets = append(offsets, Offset{
			Label:  labelFor(mins),
			Before: time.Duration(mins) * time.Minute,
		})
	}
	if len(offsets) == 0 {
		return DefaultOffsets()
	}
	return offsets
}

func labelFor(mins int) string {
	if mins%60 == 0 {
		return fmt.Sprintf("%dh", mins/60)
	}
	return fmt.Sprintf("%dm", mins)
}
