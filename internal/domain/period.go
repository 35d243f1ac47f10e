package domain

import (
	"fmt"
	"time"
)

// Granularity selects the bucket size of a time series
type Granularity string

const (
	GranularityDay     Granularity = "day"
	GranularityWeek    Granularity = "week"
	GranularityMonth   Granularity = "month"
	GranularityQuarter Granularity = "quarter"
	GranularityYear    Granularity = "year"
)

// maxPeriods bounds the size of a generated axis
const maxPeriods = 5000

// ParseGranularity validates a granularity name. Empty means month.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case "":
		return GranularityMonth, nil
	case GranularityDay, GranularityWeek, GranularityMonth, GranularityQuarter, GranularityYear:
		return g, nil
	}
	return "", Invalid("granularity", "granularity must be day, week, month, quarter or year")
}

// Truncate returns the start of the period containing the civil date d.
// Weeks start on Monday.
func (g Granularity) Truncate(d time.Time) time.Time {
	y, m, day := d.Date()
	switch g {
	case GranularityDay:
		return NewDate(y, m, day)
	case GranularityWeek:
		offset := (int(d.Weekday()) + 6) % 7
		return NewDate(y, m, day-offset)
	case GranularityQuarter:
		return NewDate(y, m-(m-1)%3, 1)
	case GranularityYear:
		return NewDate(y, time.January, 1)
	default:
		return NewDate(y, m, 1)
	}
}

// Next returns the start of the period after the one starting at start
func (g Granularity) Next(start time.Time) time.Time {
	switch g {
	case GranularityDay:
		return start.AddDate(0, 0, 1)
	case GranularityWeek:
		return start.AddDate(0, 0, 7)
	case GranularityQuarter:
		return start.AddDate(0, 3, 0)
	case GranularityYear:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}

// Label renders a period start for display
func (g Granularity) Label(start time.Time) string {
	switch g {
	case GranularityDay, GranularityWeek:
		return start.Format(DateLayout)
	case GranularityQuarter:
		return fmt.Sprintf("%d-Q%d", start.Year(), (int(start.Month())-1)/3+1)
	case GranularityYear:
		return fmt.Sprintf("%d", start.Year())
	default:
		return start.Format("2006-01")
	}
}

// PeriodAxis returns the start of every period overlapping [from, to],
// independent of any data.
func PeriodAxis(g Granularity, from, to time.Time) ([]time.Time, error) {
	if to.Before(from) {
		return nil, Invalid("to", "end date must not precede start date")
	}
	axis := make([]time.Time, 0)
	for p := g.Truncate(from); !p.After(to); p = g.Next(p) {
		if len(axis) >= maxPeriods {
			return nil, Invalid("granularity", "window has too many periods for this granularity")
		}
		axis = append(axis, p)
	}
	return axis, nil
}

// DateRange is an inclusive civil date window
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether d falls in the window
func (r DateRange) Contains(d time.Time) bool {
	return !d.Before(r.From) && !d.After(r.To)
}
