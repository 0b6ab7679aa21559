// Package schedule holds the daily timetable: periods, calendar primitives and
// the lookup of the segment (lesson, break, before first lesson, day over) that
// contains a given time of day.
// This package has NO external dependencies; time is always passed in.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTimeFormat is returned for anything that is not a 24-hour HH:MM time.
var ErrInvalidTimeFormat = errors.New("invalid time format, want HH:MM")

// ErrInvalidPeriod is returned when a period is structurally wrong
// (start not before end, duplicate sequence number).
var ErrInvalidPeriod = errors.New("invalid period")

// TimeOfDay is a wall-clock time expressed in seconds since local midnight.
type TimeOfDay int

// SecondsPerDay is the length of a civil day ignoring DST transitions.
const SecondsPerDay = 24 * 60 * 60

// ParseTimeOfDay parses "HH:MM" (hours 0-23, minutes 0-59).
// Single-digit fields such as "8:05" are accepted.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidTimeFormat)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidTimeFormat)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidTimeFormat)
	}
	return TimeOfDay(h*3600 + m*60), nil
}

// MustTimeOfDay is ParseTimeOfDay for constants; it panics on bad input.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// IsHHMM reports whether s is a well-formed 24-hour HH:MM time.
func IsHHMM(s string) bool {
	_, err := ParseTimeOfDay(s)
	return err == nil
}

// TimeOfDayOf returns the seconds since midnight of t in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 3600 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return (int(t) % 3600) / 60 }

// String formats the time as HH:MM, dropping seconds.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// HHMM formats the minute of t as HH:MM.
func HHMM(t time.Time) string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Date is a calendar date without a time component.
// The zero value means "never".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d == Date{} }

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// At returns the instant on date d at time of day tod in loc.
func (d Date) At(tod TimeOfDay, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, int(tod), 0, loc)
}
