// Package timeparse turns free-form text into an appointment instant.
// It is intentionally narrow: the messaging flow hands it raw message text
// and only cares whether a usable date-time came out.
package timeparse

import (
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Explicit layouts tried before natural-language parsing. Day-first layouts
// are included deliberately; the deployment locale writes 24.10.2026.
var layouts = []string{
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"02.01.2006 15:04",
	"02/01/2006 15:04",
}

// clockRe recognizes an explicit time of day inside matched text. A bare
// day word ("tomorrow") resolves to the reference clock time, which is not
// a time the sender chose, so matches without one are discarded.
var clockRe = regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}\b|\b\d{1,2}\s*(am|pm)\b|\bat\s+\d{1,2}\b|\bnoon\b|\bmidnight\b`)

type Parser struct {
	w *when.Parser
}

func New() *Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Parser{w: w}
}

// Parse attempts to read a date-time out of text, resolving relative
// expressions ("tomorrow at 14:00") against ref in loc. The returned instant
// is UTC with seconds truncated. ok is false when nothing parseable is found.
func (p *Parser) Parse(text string, ref time.Time, loc *time.Location) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t.Truncate(time.Minute).UTC(), true
		}
	}

	res, err := p.w.Parse(text, ref.In(loc))
	if err != nil || res == nil {
		return time.Time{}, false
	}
	if !clockRe.MatchString(res.Text) {
		return time.Time{}, false
	}
	return res.Time.Truncate(time.Minute).UTC(), true
}
