package schedule

import (
	"fmt"
	"iter"
	"slices"

	"scadenze/internal/core"
)

// maxWeekendShift is the furthest a weekend policy can move a date.
const maxWeekendShift = 2

// cursor is where stepping starts: the stored next due date, or the first
// occurrence for a rule that has never been advanced.
func cursor(rule core.RecurrenceRule) (core.Date, error) {
	if !rule.NextDueDate.IsZero() {
		return rule.NextDueDate, nil
	}
	return FirstOccurrence(rule)
}

// skipAhead jumps raw by whole periods to just before target when the
// rule's advancer supports it.
func skipAhead(rule core.RecurrenceRule, raw, target core.Date) core.Date {
	if rule.Interval < 1 || !raw.Before(target) {
		return raw
	}
	a, err := GetAdvancer(rule.Frequency)
	if err != nil {
		return raw
	}
	if s, ok := a.(Skipper); ok {
		return s.Skip(rule, raw, target)
	}
	return raw
}

// FastForward advances a stale cursor until it is on or after ref without
// materializing the skipped occurrences. The rule is returned, never written
// back; callers persist it when they choose to. A rule whose next step would
// pass EndDate comes back exhausted with its cursor on the last valid date.
func FastForward(rule core.RecurrenceRule, ref core.Date) (core.RecurrenceRule, error) {
	if rule.Exhausted {
		return rule, nil
	}
	next, err := cursor(rule)
	if err != nil {
		return rule, err
	}
	if rule.HasEnd() && next.After(rule.EndDate) {
		rule.Exhausted = true
		return rule, nil
	}

	target := ref
	if rule.HasEnd() && rule.EndDate.Before(target) {
		target = rule.EndDate.AddDays(1)
	}
	next = skipAhead(rule, next, target)

	for next.Before(ref) {
		advanced, err := AdvanceOnce(rule, next)
		if err != nil {
			return rule, fmt.Errorf("fast-forward rule %q: %w", rule.ID, err)
		}
		if rule.HasEnd() && advanced.After(rule.EndDate) {
			rule.NextDueDate = next
			rule.Exhausted = true
			return rule, nil
		}
		next = advanced
	}

	rule.NextDueDate = next
	return rule, nil
}

// Occurrences lazily yields the rule's occurrences whose display date lies
// in [windowStart, windowEnd]. Stepping starts at the cursor, before the
// window if needed to keep the rule's phase, and always continues from the
// raw date. Nothing past EndDate is yielded, by raw or display date.
//
// The rule must be valid; a rule that cannot be stepped yields nothing.
func Occurrences(rule core.RecurrenceRule, windowStart, windowEnd core.Date) iter.Seq[core.ScheduledOccurrence] {
	return func(yield func(core.ScheduledOccurrence) bool) {
		if rule.Exhausted || windowEnd.Before(windowStart) {
			return
		}
		raw, err := cursor(rule)
		if err != nil {
			return
		}

		// Nothing raw before this can be displayed inside the window.
		raw = skipAhead(rule, raw, windowStart.AddDays(-maxWeekendShift))

		limit := windowEnd.AddDays(maxWeekendShift)
		for !raw.After(limit) {
			if rule.HasEnd() && raw.After(rule.EndDate) {
				return
			}
			display := core.ApplyWeekendPolicy(raw, rule.WeekendPolicy)
			inWindow := !display.Before(windowStart) && !display.After(windowEnd)
			withinEnd := !rule.HasEnd() || !display.After(rule.EndDate)
			if inWindow && withinEnd {
				if !yield(occurrenceOf(rule, raw, display)) {
					return
				}
			}

			if raw, err = AdvanceOnce(rule, raw); err != nil {
				return
			}
		}
	}
}

// ProjectWindow validates the rule and collects Occurrences. It never
// touches the rule's stored cursor, so repeated calls return the same list.
func ProjectWindow(rule core.RecurrenceRule, windowStart, windowEnd core.Date) ([]core.ScheduledOccurrence, error) {
	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("project rule %q: %w", rule.ID, err)
	}
	if _, err := cursor(rule); err != nil {
		return nil, fmt.Errorf("project rule %q: %w", rule.ID, err)
	}
	return slices.Collect(Occurrences(rule, windowStart, windowEnd)), nil
}

// Settle moves the cursor up to today for storage. The cursor may stop up
// to the weekend shift before today, so an occurrence displayed today or
// later is still projected from it.
func Settle(rule core.RecurrenceRule, today core.Date) (core.RecurrenceRule, error) {
	return FastForward(rule, today.AddDays(-maxWeekendShift))
}

// Due yields every occurrence from the cursor whose raw date is after
// rule.PostedThrough and on or before through, regardless of weekend
// adjustment. It is what a processor owes before marking the rule posted
// through that date.
func Due(rule core.RecurrenceRule, through core.Date) iter.Seq[core.ScheduledOccurrence] {
	return func(yield func(core.ScheduledOccurrence) bool) {
		if rule.Exhausted {
			return
		}
		raw, err := cursor(rule)
		if err != nil {
			return
		}
		for !raw.After(through) {
			if rule.HasEnd() && raw.After(rule.EndDate) {
				return
			}
			if raw.After(rule.PostedThrough) {
				display := core.ApplyWeekendPolicy(raw, rule.WeekendPolicy)
				if !yield(occurrenceOf(rule, raw, display)) {
					return
				}
			}
			if raw, err = AdvanceOnce(rule, raw); err != nil {
				return
			}
		}
	}
}

// occurrenceAt builds the occurrence scheduled on raw, if the rule has one
// there at or after its cursor.
func occurrenceAt(rule core.RecurrenceRule, raw core.Date) (core.ScheduledOccurrence, bool) {
	if rule.Exhausted || (rule.HasEnd() && raw.After(rule.EndDate)) {
		return core.ScheduledOccurrence{}, false
	}
	next, err := cursor(rule)
	if err != nil || raw.Before(next) {
		return core.ScheduledOccurrence{}, false
	}
	next = skipAhead(rule, next, raw)
	for next.Before(raw) {
		if next, err = AdvanceOnce(rule, next); err != nil {
			return core.ScheduledOccurrence{}, false
		}
	}
	display := core.ApplyWeekendPolicy(raw, rule.WeekendPolicy)
	if !next.Equal(raw) || (rule.HasEnd() && display.After(rule.EndDate)) {
		return core.ScheduledOccurrence{}, false
	}
	return occurrenceOf(rule, raw, display), true
}

func occurrenceOf(rule core.RecurrenceRule, raw, display core.Date) core.ScheduledOccurrence {
	return core.ScheduledOccurrence{
		SourceID:      rule.ID,
		IsRecurring:   true,
		ScheduledDate: raw,
		Date:          display,
		SignedAmount:  rule.Kind.Signed(rule.Amount),
		Description:   rule.Description,
		AccountID:     rule.SourceAccountID,
		Kind:          rule.Kind,
		Category:      rule.Category,
	}
}
