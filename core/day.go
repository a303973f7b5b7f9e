package core

import (
	"time"
)

// =============================================================================
// DAY DATE - Calendar-day granularity (all locks and postings are per day)
// =============================================================================

type DayDate struct {
	Time time.Time
}

// Constructors
func NewDayDate(year int, month time.Month, day int) DayDate {
	return DayDate{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func Today() DayDate {
	now := time.Now().UTC()
	return NewDayDate(now.Year(), now.Month(), now.Day())
}

// ParseDayDate parses an ISO date string (2006-01-02).
func ParseDayDate(s string) (DayDate, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return DayDate{}, err
	}
	return DayDate{Time: t}, nil
}

// Comparison
func (d DayDate) Before(other DayDate) bool        { return d.normalize().Before(other.normalize()) }
func (d DayDate) Equal(other DayDate) bool         { return d.normalize().Equal(other.normalize()) }
func (d DayDate) After(other DayDate) bool         { return d.normalize().After(other.normalize()) }
func (d DayDate) BeforeOrEqual(other DayDate) bool { return d.Before(other) || d.Equal(other) }
func (d DayDate) AfterOrEqual(other DayDate) bool  { return d.After(other) || d.Equal(other) }
func (d DayDate) IsZero() bool                     { return d.Time.IsZero() }

func (d DayDate) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (d DayDate) AddDays(n int) DayDate { return DayDate{Time: d.Time.AddDate(0, 0, n)} }

func (d DayDate) String() string {
	return d.Time.Format("2006-01-02")
}
