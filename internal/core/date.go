package core

import (
	"encoding/json"
	"fmt"
	"iter"
	"time"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar day. The wrapped time is always midnight UTC, so two
// dates compare equal exactly when they name the same day.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day. Out-of-range values are
// normalized the same way time.Date does.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day, read in t's own location.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// Today returns the current calendar day in UTC.
func Today() Date {
	return DateOf(time.Now().UTC())
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Before reports whether d is an earlier day than o.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// After reports whether d is a later day than o.
func (d Date) After(o Date) bool { return d.Time.After(o.Time) }

// Equal reports whether d and o are the same day.
func (d Date) Equal(o Date) bool { return d.Time.Equal(o.Time) }

// Compare returns -1, 0 or +1 ordering d against o.
func (d Date) Compare(o Date) int { return d.Time.Compare(o.Time) }

// DaysUntil returns the number of whole days from d to o. Both are
// midnight UTC, so the Unix difference is an exact multiple of a day.
func (d Date) DaysUntil(o Date) int {
	return int((o.Unix() - d.Unix()) / 86400)
}

// EachDay yields every day from start through end inclusive.
func EachDay(start, end Date) iter.Seq[Date] {
	return func(yield func(Date) bool) {
		for d := start; !d.After(end); d = d.AddDays(1) {
			if !yield(d) {
				return
			}
		}
	}
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format(DateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON shadows time.Time's RFC 3339 encoding.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	return d.UnmarshalText([]byte(s))
}

// Validate rejects the zero date.
func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// IsLeapYear follows the Gregorian rule: divisible by 4, and not by 100
// unless also by 400.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

var monthLengths = [...]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	if month == time.February && IsLeapYear(year) {
		return 29
	}
	return monthLengths[month-1]
}

// ClampDayOfMonth returns min(day, last day of year/month).
func ClampDayOfMonth(year int, month time.Month, day int) int {
	if last := DaysIn(year, month); day > last {
		return last
	}
	return day
}

// IsWeekend reports whether d falls on Saturday or Sunday.
func IsWeekend(d Date) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}

// ApplyWeekendPolicy relocates a weekend date according to policy.
// Weekdays are returned unchanged under every policy.
func ApplyWeekendPolicy(d Date, policy WeekendPolicy) Date {
	if !IsWeekend(d) {
		return d
	}
	switch policy {
	case WeekendBefore:
		if d.Weekday() == time.Saturday {
			return d.AddDays(-1)
		}
		return d.AddDays(-2)
	case WeekendAfter:
		if d.Weekday() == time.Saturday {
			return d.AddDays(2)
		}
		return d.AddDays(1)
	default:
		return d
	}
}
