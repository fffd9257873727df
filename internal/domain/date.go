package domain

import (
	"fmt"
	"strings"
	"time"
)

// dateLayout is the persisted and displayed date format.
const dateLayout = "2006-01-02"

// Date is a civil calendar date without a time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// NewDate builds a normalized date, so NewDate(2026, 3, 0) is the last day of February.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return DateOf(t), nil
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Time().Format(dateLayout)
}

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// IsWeekend reports whether the date falls on Saturday or Sunday.
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

func (d Date) After(other Date) bool {
	return d.Time().After(other.Time())
}

// WeekStart returns the Monday of the ISO week containing d.
func (d Date) WeekStart() Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// MonthStart returns the first day of d's month.
func (d Date) MonthStart() Date {
	return Date{Year: d.Year, Month: d.Month, Day: 1}
}

// YearStart returns January 1st of d's year.
func (d Date) YearStart() Date {
	return Date{Year: d.Year, Month: time.January, Day: 1}
}

// ValidateDayStartHour checks that the configured logical day start is a valid hour.
func ValidateDayStartHour(dayStartHour int) error {
	if dayStartHour < 0 || dayStartHour > 23 {
		return fmt.Errorf("%w: %d (want 0-23)", ErrInvalidDayStartHour, dayStartHour)
	}
	return nil
}

// LogicalDate maps a wall-clock instant onto the planning day it belongs to.
// Instants before dayStartHour still count toward the previous calendar day.
func LogicalDate(now time.Time, dayStartHour int) (Date, error) {
	if err := ValidateDayStartHour(dayStartHour); err != nil {
		return Date{}, err
	}
	date := DateOf(now)
	if now.Hour() < dayStartHour {
		return date.AddDays(-1), nil
	}
	return date, nil
}
