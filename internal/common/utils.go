package common

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used by the provider and the store.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate formats t as YYYY-MM-DD in t's own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Yesterday returns the calendar day before now.
func Yesterday(now time.Time) time.Time {
	return now.AddDate(0, 0, -1)
}

// Tomorrow returns the calendar day after now.
func Tomorrow(now time.Time) time.Time {
	return now.AddDate(0, 0, 1)
}

// DaysInclusive returns every calendar date from start to end, both included.
// It returns nil when end is before start.
func DaysInclusive(start, end time.Time) []time.Time {
	start = truncateDay(start)
	end = truncateDay(end)
	if end.Before(start) {
		return nil
	}
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
