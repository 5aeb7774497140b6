// Package schedule turns recurrence rules into concrete calendar
// occurrences.
//
// This file implements the Strategy Pattern for stepping a rule forward by
// one period. Each frequency has its own advancer; all of them work on the
// raw, pre-weekend-policy calendar so that weekend shifts never compound.
package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"scadenze/internal/core"
)

// Advancer is the strategy interface for computing the next raw occurrence.
type Advancer interface {
	// Next returns the first occurrence strictly after from. The rule is
	// assumed to be valid.
	Next(rule core.RecurrenceRule, from core.Date) core.Date
}

// Skipper is implemented by advancers that can move many periods at once.
type Skipper interface {
	// Skip returns the latest date reachable from from by whole steps that
	// is still before target, or from itself when no step fits.
	Skip(rule core.RecurrenceRule, from, target core.Date) core.Date
}

// DailyAdvancer implements Advancer for daily rules.
type DailyAdvancer struct{}

// Next returns the following day. Daily rules always have interval 1.
func (DailyAdvancer) Next(_ core.RecurrenceRule, from core.Date) core.Date {
	return from.AddDays(1)
}

func (DailyAdvancer) Skip(_ core.RecurrenceRule, from, target core.Date) core.Date {
	return skipDays(from, target, 1)
}

// WeeklyAdvancer implements Advancer for weekly rules.
type WeeklyAdvancer struct{}

// Next returns from + 7*interval days.
func (WeeklyAdvancer) Next(rule core.RecurrenceRule, from core.Date) core.Date {
	return from.AddDays(7 * rule.Interval)
}

func (WeeklyAdvancer) Skip(rule core.RecurrenceRule, from, target core.Date) core.Date {
	return skipDays(from, target, 7*rule.Interval)
}

func skipDays(from, target core.Date, step int) core.Date {
	gap := from.DaysUntil(target)
	if gap <= step {
		return from
	}
	return from.AddDays((gap - 1) / step * step)
}

// MonthlyAdvancer implements Advancer for monthly rules.
type MonthlyAdvancer struct{}

// Next moves interval months ahead, landing on day 1 first, then clamps the
// anchor day into the target month. The anchor is re-applied on every step,
// so a day-31 rule returns to the 31st after a short month.
func (MonthlyAdvancer) Next(rule core.RecurrenceRule, from core.Date) core.Date {
	first := core.NewDate(from.Year(), from.Month()+rule.Interval, 1)
	return onAnchor(first.Year(), time.Month(first.Month()), rule.AnchorDay())
}

func (MonthlyAdvancer) Skip(rule core.RecurrenceRule, from, target core.Date) core.Date {
	months := (target.Year()*12 + target.Month()) - (from.Year()*12 + from.Month())
	at := func(k int) core.Date {
		first := core.NewDate(from.Year(), from.Month()+k*rule.Interval, 1)
		return onAnchor(first.Year(), time.Month(first.Month()), rule.AnchorDay())
	}
	return latestBefore(from, target, months/rule.Interval, at)
}

// latestBefore picks at(k), or at(k-1) when at(k) is not before target.
// at(k) must fall in or before target's period.
func latestBefore(from, target core.Date, k int, at func(int) core.Date) core.Date {
	if k > 0 && !at(k).Before(target) {
		k--
	}
	if k <= 0 {
		return from
	}
	return at(k)
}

// YearlyAdvancer implements Advancer for yearly rules.
type YearlyAdvancer struct{}

// Next moves interval years ahead, keeping the month of StartDate.
func (YearlyAdvancer) Next(rule core.RecurrenceRule, from core.Date) core.Date {
	return onAnchor(from.Year()+rule.Interval, time.Month(rule.StartDate.Month()), rule.AnchorDay())
}

func (YearlyAdvancer) Skip(rule core.RecurrenceRule, from, target core.Date) core.Date {
	at := func(k int) core.Date {
		return onAnchor(from.Year()+k*rule.Interval, time.Month(rule.StartDate.Month()), rule.AnchorDay())
	}
	return latestBefore(from, target, (target.Year()-from.Year())/rule.Interval, at)
}

func onAnchor(year int, month time.Month, anchor int) core.Date {
	return core.NewDate(year, int(month), core.ClampDayOfMonth(year, month, anchor))
}

var advancers = map[core.Frequency]Advancer{
	core.Daily:   DailyAdvancer{},
	core.Weekly:  WeeklyAdvancer{},
	core.Monthly: MonthlyAdvancer{},
	core.Yearly:  YearlyAdvancer{},
}

// GetAdvancer returns the advancer for a frequency.
func GetAdvancer(frequency core.Frequency) (Advancer, error) {
	a, ok := advancers[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, frequency)
	}
	return a, nil
}

// AdvanceOnce computes the next raw occurrence strictly after from.
func AdvanceOnce(rule core.RecurrenceRule, from core.Date) (core.Date, error) {
	if rule.Interval < 1 {
		return core.Date{}, fmt.Errorf("%w: %d", core.ErrInvalidInterval, rule.Interval)
	}
	a, err := GetAdvancer(rule.Frequency)
	if err != nil {
		return core.Date{}, err
	}
	next := a.Next(rule, from)
	if !next.After(from) {
		return core.Date{}, fmt.Errorf("advance %s rule %q from %s did not move forward", rule.Frequency, rule.ID, from)
	}
	return next, nil
}

// FirstOccurrence is the first raw occurrence on or after StartDate. Monthly
// and yearly rules are aligned to their anchor day in StartDate's month; if
// that day is already past, the first occurrence is one period later.
func FirstOccurrence(rule core.RecurrenceRule) (core.Date, error) {
	start := rule.StartDate
	switch rule.Frequency {
	case core.Daily, core.Weekly:
		return start, nil
	case core.Monthly, core.Yearly:
		aligned := onAnchor(start.Year(), time.Month(start.Month()), rule.AnchorDay())
		if aligned.Before(start) {
			return AdvanceOnce(rule, aligned)
		}
		return aligned, nil
	default:
		return core.Date{}, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, rule.Frequency)
	}
}

// NewRecurrenceRule normalizes and validates a draft rule and places its
// cursor on the first occurrence. Malformed definitions are rejected here so
// the projector only ever sees well-formed rules.
func NewRecurrenceRule(draft core.RecurrenceRule, now time.Time) (core.RecurrenceRule, error) {
	rule := draft.Normalize()
	if err := rule.Validate(); err != nil {
		return core.RecurrenceRule{}, err
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	rule.CreatedAt = now.UTC()
	rule.UpdatedAt = now.UTC()
	return Reset(rule)
}

// Reset places the cursor back on the rule's first occurrence, marking the
// rule exhausted when that already lies past EndDate.
func Reset(rule core.RecurrenceRule) (core.RecurrenceRule, error) {
	first, err := FirstOccurrence(rule)
	if err != nil {
		return core.RecurrenceRule{}, err
	}
	rule.Exhausted = false
	rule.NextDueDate = first
	if rule.HasEnd() && first.After(rule.EndDate) {
		rule.Exhausted = true
		rule.NextDueDate = core.Date{}
	}
	return rule, nil
}
