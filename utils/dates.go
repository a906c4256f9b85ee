package utils

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical calendar-date format used in keys and APIs.
const DateLayout = "2006-01-02"

var dateLayouts = []string{DateLayout, "02.01.2006", "02/01/2006"}

// NormalizeDate takes the calendar date of t as seen in loc and returns it as
// midnight UTC. Every stored booking date goes through here so two instants on
// the same venue day always compare equal. A value that already is a
// normalized date is returned unchanged, so normalizing twice is safe.
func NormalizeDate(t time.Time, loc *time.Location) time.Time {
	if IsNormalizedDate(t) {
		return t.UTC()
	}
	return calendarDate(t, loc)
}

// IsNormalizedDate reports whether t is midnight with a zero UTC offset.
func IsNormalizedDate(t time.Time) bool {
	if _, offset := t.Zone(); offset != 0 {
		return false
	}
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

func calendarDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts a date-only string or an RFC3339 timestamp and normalizes it.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return calendarDate(t, loc), nil
		}
	}
	// a timestamp is an instant, even when it happens to be midnight UTC
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return calendarDate(t, loc), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or DD.MM.YYYY", raw)
}

// DateKey renders a normalized date as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Today returns the current venue day, normalized.
func Today(now time.Time, loc *time.Location) time.Time {
	return calendarDate(now, loc)
}

