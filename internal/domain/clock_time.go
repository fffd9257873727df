package domain

import (
	"fmt"
	"strings"
	"time"
)

// minutesPerDay is the length of one wall-clock day.
const minutesPerDay = 24 * 60

// ClockTime is a wall-clock HH:MM value. 24:00 is accepted as the end of the day.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "H:MM" or "HH:MM".
func ParseClockTime(raw string) (ClockTime, error) {
	raw = strings.TrimSpace(raw)
	hourPart, minutePart, ok := strings.Cut(raw, ":")
	if !ok || hourPart == "" || len(hourPart) > 2 || len(minutePart) != 2 {
		return ClockTime{}, fmt.Errorf("%w: %q (want HH:MM)", ErrInvalidTime, raw)
	}
	hour, okHour := parseDigits(hourPart)
	minute, okMinute := parseDigits(minutePart)
	if !okHour || !okMinute {
		return ClockTime{}, fmt.Errorf("%w: %q (want HH:MM)", ErrInvalidTime, raw)
	}
	ct := ClockTime{Hour: hour, Minute: minute}
	if err := ct.Validate(); err != nil {
		return ClockTime{}, err
	}
	return ct, nil
}

// parseDigits converts an unsigned run of ASCII digits; signs and spaces are rejected.
func parseDigits(part string) (int, bool) {
	if part == "" {
		return 0, false
	}
	n := 0
	for _, r := range part {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// ClockTimeOf returns the wall-clock HH:MM of t.
func ClockTimeOf(t time.Time) ClockTime {
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}
}

// ClockTimeFromMinutes wraps minutes into a single day.
func ClockTimeFromMinutes(minutes int) ClockTime {
	minutes %= minutesPerDay
	if minutes < 0 {
		minutes += minutesPerDay
	}
	return ClockTime{Hour: minutes / 60, Minute: minutes % 60}
}

// Validate checks hour and minute bounds.
func (c ClockTime) Validate() error {
	if c.Hour < 0 || c.Hour > 24 || c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("%w: %02d:%02d out of range", ErrInvalidTime, c.Hour, c.Minute)
	}
	if c.Hour == 24 && c.Minute != 0 {
		return fmt.Errorf("%w: %02d:%02d out of range", ErrInvalidTime, c.Hour, c.Minute)
	}
	return nil
}

// String renders the zero-padded HH:MM form.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Minutes returns minutes since midnight.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c ClockTime) Before(other ClockTime) bool {
	return c.Minutes() < other.Minutes()
}

// On returns the instant at this clock time on the given date in loc.
func (c ClockTime) On(d Date, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, loc)
}
