package util

import (
	"time"
)

// DayFormat is the canonical wire format for series dates.
const DayFormat = "2006-01-02"

// ParseDay parses a YYYY-MM-DD date in UTC.
func ParseDay(s string) (time.Time, bool) {
	t, err := time.Parse(DayFormat, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDay renders t as YYYY-MM-DD in UTC.
func FormatDay(t time.Time) string {
	return t.UTC().Format(DayFormat)
}

// DayFloor truncates t to midnight UTC. Series points are keyed per day, so
// all date comparisons go through this.
func DayFloor(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole days from a to b (negative if b is earlier).
func DaysBetween(a, b time.Time) int {
	return int(DayFloor(b).Sub(DayFloor(a)) / (24 * time.Hour))
}
