// Package eventtime parses the stored date and time-range strings of events
// in the reference timezone.
package eventtime

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the d/m/yyyy form events are stored with.
const DateLayout = "2/1/2006"

// ParseDate returns midnight of the event date in loc.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid event date %q: %w", date, err)
	}
	return t, nil
}

// StartClock returns the hour and minute at which a "HH:MM - HH:MM" range
// starts. Hyphen, en dash and em dash separators are accepted.
func StartClock(timeRange string) (hour, minute int, err error) {
	start := timeRange
	for _, sep := range []string{"-", "–", "—"} {
		if before, _, found := strings.Cut(timeRange, sep); found {
			start = before
			break
		}
	}
	t, err := time.Parse("15:04", strings.TrimSpace(start))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time range %q: %w", timeRange, err)
	}
	return t.Hour(), t.Minute(), nil
}

// StartInstant combines an event's date and the start of its time range
// in loc.
func StartInstant(date, timeRange string, loc *time.Location) (time.Time, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	hour, minute, err := StartClock(timeRange)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
