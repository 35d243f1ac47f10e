package domain

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// DateLayout is the civil date format used for work, invoice and due dates
const DateLayout = "2006-01-02"

// DefaultTimezone is the business timezone civil dates are taken in
const DefaultTimezone = "America/New_York"

var businessLocation = mustLoadLocation(DefaultTimezone)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// SetBusinessTimezone changes the timezone used to derive civil dates.
// It is meant to be called once during startup.
func SetBusinessTimezone(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", name, err)
	}
	businessLocation = loc
	return nil
}

// BusinessLocation returns the configured business timezone
func BusinessLocation() *time.Location {
	return businessLocation
}

// CivilDate returns the business-timezone calendar date of t as midnight UTC
func CivilDate(t time.Time) time.Time {
	local := t.In(businessLocation)
	return NewDate(local.Year(), local.Month(), local.Day())
}

// NewDate builds a civil date
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD civil date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate formats a civil date as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
