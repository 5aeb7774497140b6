package schedule

import (
	"slices"

	"github.com/shopspring/decimal"

	"scadenze/internal/core"
)

// MergeInput is a snapshot of everything a schedule view is built from.
type MergeInput struct {
	Rules       []core.RecurrenceRule
	Overrides   []core.Override
	OneOffs     []core.OneOffItem
	Accounts    core.AccountDirectory
	WindowStart core.Date
	WindowEnd   core.Date
}

// RuleFailure reports a rule that was left out of a merge.
type RuleFailure struct {
	RuleID string
	Err    error
}

// MergeResult is the unified schedule plus the rules that could not be
// projected.
type MergeResult struct {
	Occurrences []core.ScheduledOccurrence
	Failures    []RuleFailure
}

// MergeAll projects every active rule over the window, resolves overrides,
// adds unpaid one-off items due in the window and sorts by display date.
// Only occurrences whose resolved date lies in the window are returned, so
// an override can move an occurrence out of the window or into it from
// outside. Equal dates keep insertion order: rules in input order, then
// occurrences moved in, then one-offs.
// A rule that fails to project is reported and skipped; the merge goes on.
func MergeAll(in MergeInput) MergeResult {
	var res MergeResult
	idx := IndexOverrides(in.Overrides)
	projected := make(map[string]core.RecurrenceRule, len(in.Rules))
	seen := make(map[OverrideKey]bool)

	for _, rule := range in.Rules {
		occs, err := ProjectWindow(rule, in.WindowStart, in.WindowEnd)
		if err != nil {
			res.Failures = append(res.Failures, RuleFailure{RuleID: rule.ID, Err: err})
			continue
		}
		projected[rule.ID] = rule
		for _, occ := range occs {
			seen[OverrideKey{RuleID: rule.ID, Date: occ.ScheduledDate}] = true
			res.add(occ, idx, in)
		}
	}

	for _, o := range in.Overrides {
		if o.IsSkipped || o.Date.IsZero() || !inWindow(o.Date, in) {
			continue
		}
		rule, ok := projected[o.RuleID]
		if !ok || seen[OverrideKey{RuleID: o.RuleID, Date: o.OriginalDate}] {
			continue
		}
		if occ, ok := occurrenceAt(rule, o.OriginalDate); ok {
			res.add(occ, idx, in)
		}
	}

	for _, item := range in.OneOffs {
		if item.Status != core.StatusUnpaid || !inWindow(item.DueDate, in) {
			continue
		}
		res.Occurrences = append(res.Occurrences, labelled(oneOffOccurrence(item), in.Accounts))
	}

	slices.SortStableFunc(res.Occurrences, func(a, b core.ScheduledOccurrence) int {
		return a.Date.Compare(b.Date)
	})
	return res
}

func (res *MergeResult) add(occ core.ScheduledOccurrence, idx OverrideIndex, in MergeInput) {
	resolved, keep := Resolve(occ, idx)
	if !keep || !inWindow(resolved.Date, in) {
		return
	}
	res.Occurrences = append(res.Occurrences, labelled(resolved, in.Accounts))
}

func inWindow(d core.Date, in MergeInput) bool {
	return !d.Before(in.WindowStart) && !d.After(in.WindowEnd)
}

func oneOffOccurrence(item core.OneOffItem) core.ScheduledOccurrence {
	return core.ScheduledOccurrence{
		SourceID:      item.ID,
		IsRecurring:   false,
		ScheduledDate: item.DueDate,
		Date:          item.DueDate,
		SignedAmount:  item.Amount,
		Description:   item.Description,
		AccountID:     item.AccountID,
		Kind:          item.Kind(),
	}
}

func labelled(occ core.ScheduledOccurrence, accounts core.AccountDirectory) core.ScheduledOccurrence {
	acc := accounts.Lookup(occ.AccountID)
	occ.AccountLabel = acc.Label
	occ.Currency = acc.Currency
	return occ
}

// Converter turns an amount in currency into the reporting currency. It is
// supplied by the caller; the schedule never converts on its own.
type Converter func(amount decimal.Decimal, currency string) (decimal.Decimal, error)

// IdentityConverter returns amounts unchanged, for single-currency setups.
func IdentityConverter(amount decimal.Decimal, _ string) (decimal.Decimal, error) {
	return amount, nil
}

// Summary is a forward-looking cash-flow rollup. Expense is a positive
// magnitude and Net is Income minus Expense. Transfers move money between
// own accounts and are counted separately.
type Summary struct {
	From        core.Date       `json:"from"`
	To          core.Date       `json:"to"`
	Income      decimal.Decimal `json:"income"`
	Expense     decimal.Decimal `json:"expense"`
	Net         decimal.Decimal `json:"net"`
	Count       int             `json:"count"`
	Transfers   int             `json:"transfers"`
	Unconverted []string        `json:"unconverted,omitempty"`
}

// ForecastSummary sums occurrences dated in [today, today+horizonDays].
// Occurrences whose conversion fails are left out and listed in
// Unconverted.
func ForecastSummary(occs []core.ScheduledOccurrence, today core.Date, horizonDays int, convert Converter) Summary {
	if convert == nil {
		convert = IdentityConverter
	}
	s := Summary{
		From:    today,
		To:      today.AddDays(horizonDays),
		Income:  decimal.Zero,
		Expense: decimal.Zero,
		Net:     decimal.Zero,
	}
	if horizonDays < 0 {
		return s
	}

	for _, occ := range occs {
		if occ.Date.Before(s.From) || occ.Date.After(s.To) {
			continue
		}
		if occ.Kind == core.KindTransfer {
			s.Transfers++
			continue
		}
		amount, err := convert(occ.SignedAmount, occ.Currency)
		if err != nil {
			s.Unconverted = append(s.Unconverted, occ.SourceID)
			continue
		}
		if amount.IsNegative() {
			s.Expense = s.Expense.Add(amount.Neg())
		} else {
			s.Income = s.Income.Add(amount)
		}
		s.Count++
	}

	s.Income = core.RoundAmount(s.Income)
	s.Expense = core.RoundAmount(s.Expense)
	s.Net = s.Income.Sub(s.Expense)
	return s
}

// DayActivity counts occurrences on one day. The consumer decides how to
// color it; a day with both income and expense is usually shown as mixed.
type DayActivity struct {
	IncomeCount   int `json:"income_count"`
	ExpenseCount  int `json:"expense_count"`
	TransferCount int `json:"transfer_count"`
}

// IsMixed reports whether the day has both income and expense.
func (a DayActivity) IsMixed() bool {
	return a.IncomeCount > 0 && a.ExpenseCount > 0
}

// Total is the number of occurrences on the day.
func (a DayActivity) Total() int {
	return a.IncomeCount + a.ExpenseCount + a.TransferCount
}

// BucketByDay counts occurrences per display date for heatmap rendering.
// Every day of [rangeStart, rangeEnd] is present, including empty ones.
func BucketByDay(occs []core.ScheduledOccurrence, rangeStart, rangeEnd core.Date) map[core.Date]DayActivity {
	buckets := make(map[core.Date]DayActivity)
	for d := range core.EachDay(rangeStart, rangeEnd) {
		buckets[d] = DayActivity{}
	}

	for _, occ := range occs {
		a, ok := buckets[occ.Date]
		if !ok {
			continue
		}
		switch {
		case occ.Kind == core.KindTransfer:
			a.TransferCount++
		case occ.SignedAmount.IsNegative():
			a.ExpenseCount++
		default:
			a.IncomeCount++
		}
		buckets[occ.Date] = a
	}
	return buckets
}
