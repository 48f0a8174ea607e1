package domain

import (
	"fmt"
	"time"
)

const (
	// DateLayout formats entry dates.
	DateLayout = "2006-01-02"

	// MonthLayout formats archive months and listing filters.
	MonthLayout = "2006-01"
)

// PreviousMonth returns the calendar month before now as YYYY-MM:
// the first of now's month minus one day.
func PreviousMonth(now time.Time) string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return first.AddDate(0, 0, -1).Format(MonthLayout)
}

// CurrentMonth returns now's month as YYYY-MM.
func CurrentMonth(now time.Time) string {
	return now.Format(MonthLayout)
}

// ParseMonth validates a YYYY-MM string.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil || t.Format(MonthLayout) != s {
		return time.Time{}, NewValidationError("month", fmt.Sprintf("invalid month %q: expected YYYY-MM", s))
	}
	return t, nil
}

// ParseDate validates a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil || t.Format(DateLayout) != s {
		return time.Time{}, NewValidationError("entryDate", fmt.Sprintf("invalid date %q: expected YYYY-MM-DD", s))
	}
	return t, nil
}

// MonthPrefix returns the LIKE pattern matching entry dates in month.
func MonthPrefix(month string) string {
	return month + "-%"
}
