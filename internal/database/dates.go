package database

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date format used by entries.
const DateLayout = "2006-01-02"

// GetToday returns today's date as YYYY-MM-DD.
func GetToday() string {
	return time.Now().Format(DateLayout)
}

// ValidateDate returns an error unless s is a YYYY-MM-DD calendar date.
func ValidateDate(s string) error {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return nil
}

// MonthKey returns the YYYY-MM prefix of an entry date.
func MonthKey(date string) string {
	if len(date) >= 7 {
		return date[:7]
	}
	return date
}

// FormatDateDisplay formats an entry date for human-readable display.
// Single day: "Feb 06, 2026"
// Range: "Feb 01 - Feb 06, 2026"
func FormatDateDisplay(start, end string) string {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return start
	}
	if end == "" || end == start {
		return s.Format("Jan 02, 2006")
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return start
	}
	return fmt.Sprintf("%s - %s", s.Format("Jan 02"), e.Format("Jan 02, 2006"))
}
