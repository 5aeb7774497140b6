package schedule

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scadenze/internal/core"
)

func rentRule() core.RecurrenceRule {
	return core.RecurrenceRule{
		ID:               "rent",
		Description:      "Rent",
		SourceAccountID:  "checking",
		Kind:             core.KindExpense,
		Amount:           decimal.NewFromInt(1200),
		Category:         "Housing",
		Frequency:        core.Monthly,
		Interval:         1,
		StartDate:        core.NewDate(2024, 1, 31),
		DayOfMonthAnchor: 31,
		WeekendPolicy:    core.WeekendAfter,
		NextDueDate:      core.NewDate(2024, 1, 31),
	}
}

func rawDates(t *testing.T, rule core.RecurrenceRule, from core.Date, n int) []core.Date {
	t.Helper()
	out := []core.Date{from}
	for len(out) < n {
		next, err := AdvanceOnce(rule, out[len(out)-1])
		require.NoError(t, err)
		out = append(out, next)
	}
	return out
}

func TestMonthlyAnchor31IsNotDegraded(t *testing.T) {
	tests := []struct {
		name  string
		start core.Date
		want  []core.Date
	}{
		{
			name:  "leap year",
			start: core.NewDate(2024, 1, 31),
			want: []core.Date{
				core.NewDate(2024, 1, 31),
				core.NewDate(2024, 2, 29),
				core.NewDate(2024, 3, 31),
				core.NewDate(2024, 4, 30),
				core.NewDate(2024, 5, 31),
			},
		},
		{
			name:  "non-leap year",
			start: core.NewDate(2023, 1, 31),
			want: []core.Date{
				core.NewDate(2023, 1, 31),
				core.NewDate(2023, 2, 28),
				core.NewDate(2023, 3, 31),
				core.NewDate(2023, 4, 30),
				core.NewDate(2023, 5, 31),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := rentRule()
			rule.StartDate = tt.start
			assert.Equal(t, tt.want, rawDates(t, rule, tt.start, len(tt.want)))
		})
	}
}

func TestMonthlyAnchorFallsBackToStartDay(t *testing.T) {
	rule := rentRule()
	rule.DayOfMonthAnchor = 0
	rule.StartDate = core.NewDate(2024, 1, 30)

	got := rawDates(t, rule, rule.StartDate, 3)
	assert.Equal(t, []core.Date{
		core.NewDate(2024, 1, 30),
		core.NewDate(2024, 2, 29),
		core.NewDate(2024, 3, 30),
	}, got)
}

func TestMonthlyInterval(t *testing.T) {
	rule := rentRule()
	rule.Interval = 3
	rule.DayOfMonthAnchor = 15
	rule.StartDate = core.NewDate(2024, 11, 15)

	got := rawDates(t, rule, rule.StartDate, 3)
	assert.Equal(t, []core.Date{
		core.NewDate(2024, 11, 15),
		core.NewDate(2025, 2, 15),
		core.NewDate(2025, 5, 15),
	}, got)
}

func TestWeeklyIntervalTwo(t *testing.T) {
	rule := rentRule()
	rule.Frequency = core.Weekly
	rule.Interval = 2
	rule.DayOfMonthAnchor = 0
	rule.StartDate = core.NewDate(2024, 1, 1)
	require.Equal(t, time.Monday, rule.StartDate.Weekday())

	got := rawDates(t, rule, rule.StartDate, 3)
	assert.Equal(t, []core.Date{
		core.NewDate(2024, 1, 1),
		core.NewDate(2024, 1, 15),
		core.NewDate(2024, 1, 29),
	}, got)
}

func TestYearlyKeepsStartMonthAndClamps(t *testing.T) {
	rule := rentRule()
	rule.Frequency = core.Yearly
	rule.DayOfMonthAnchor = 0
	rule.StartDate = core.NewDate(2024, 2, 29)

	got := rawDates(t, rule, rule.StartDate, 5)
	assert.Equal(t, []core.Date{
		core.NewDate(2024, 2, 29),
		core.NewDate(2025, 2, 28),
		core.NewDate(2026, 2, 28),
		core.NewDate(2027, 2, 28),
		core.NewDate(2028, 2, 29),
	}, got)
}

func TestAdvanceOnceIsStrictlyLater(t *testing.T) {
	froms := []core.Date{
		core.NewDate(2023, 12, 31),
		core.NewDate(2024, 1, 31),
		core.NewDate(2024, 2, 28),
		core.NewDate(2024, 2, 29),
		core.NewDate(2024, 6, 15),
		core.NewDate(2099, 12, 31),
	}
	for _, freq := range []core.Frequency{core.Daily, core.Weekly, core.Monthly, core.Yearly} {
		for _, interval := range []int{1, 2, 12} {
			rule := rentRule()
			rule.Frequency = freq
			rule.Interval = interval
			if freq == core.Daily {
				rule.Interval = 1
			}
			for _, from := range froms {
				next, err := AdvanceOnce(rule, from)
				require.NoError(t, err)
				assert.Truef(t, next.After(from), "%s/%d from %s gave %s", freq, interval, from, next)
			}
		}
	}
}

func TestAdvanceOnceRejectsMalformedRules(t *testing.T) {
	rule := rentRule()
	rule.Frequency = "fortnightly"
	_, err := AdvanceOnce(rule, rule.StartDate)
	assert.ErrorIs(t, err, core.ErrInvalidFrequency)

	rule = rentRule()
	rule.Interval = 0
	_, err = AdvanceOnce(rule, rule.StartDate)
	assert.ErrorIs(t, err, core.ErrInvalidInterval)
}

func TestFirstOccurrenceAlignsToAnchor(t *testing.T) {
	rule := rentRule()
	rule.DayOfMonthAnchor = 5
	rule.StartDate = core.NewDate(2024, 1, 10)

	first, err := FirstOccurrence(rule)
	require.NoError(t, err)
	assert.Equal(t, core.NewDate(2024, 2, 5), first)

	rule.DayOfMonthAnchor = 20
	first, err = FirstOccurrence(rule)
	require.NoError(t, err)
	assert.Equal(t, core.NewDate(2024, 1, 20), first)
}

func TestNewRecurrenceRule(t *testing.T) {
	now := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

	draft := rentRule()
	draft.ID = ""
	draft.NextDueDate = core.Date{}
	rule, err := NewRecurrenceRule(draft, now)
	require.NoError(t, err)
	assert.NotEmpty(t, rule.ID)
	assert.Equal(t, core.NewDate(2024, 1, 31), rule.NextDueDate)
	assert.False(t, rule.Exhausted)
	assert.Equal(t, now, rule.CreatedAt)

	tests := []struct {
		name   string
		mutate func(*core.RecurrenceRule)
		want   error
	}{
		{"interval below one", func(r *core.RecurrenceRule) { r.Interval = 0 }, core.ErrInvalidInterval},
		{"unsupported frequency", func(r *core.RecurrenceRule) { r.Frequency = "hourly" }, core.ErrInvalidFrequency},
		{"start after end", func(r *core.RecurrenceRule) { r.EndDate = core.NewDate(2024, 1, 1) }, core.ErrReversedDateRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := rentRule()
			tt.mutate(&d)
			_, err := NewRecurrenceRule(d, now)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewRecurrenceRuleWithNoOccurrenceBeforeEnd(t *testing.T) {
	draft := rentRule()
	draft.DayOfMonthAnchor = 5
	draft.StartDate = core.NewDate(2024, 1, 10)
	draft.EndDate = core.NewDate(2024, 1, 20)

	rule, err := NewRecurrenceRule(draft, time.Now())
	require.NoError(t, err)
	assert.True(t, rule.Exhausted)
	assert.True(t, rule.NextDueDate.IsZero())
}

func TestSkipMatchesStepping(t *testing.T) {
	daily := rentRule()
	daily.Frequency = core.Daily
	weekly := rentRule()
	weekly.Frequency = core.Weekly
	weekly.Interval = 2
	quarterly := rentRule()
	quarterly.Interval = 3
	leapDay := rentRule()
	leapDay.Frequency = core.Yearly
	leapDay.StartDate = core.NewDate(2024, 2, 29)
	leapDay.DayOfMonthAnchor = 0

	firstOfMonth := rentRule()
	firstOfMonth.StartDate = core.NewDate(2024, 1, 1)
	firstOfMonth.DayOfMonthAnchor = 1

	rules := map[string]core.RecurrenceRule{
		"daily":          daily,
		"weekly":         weekly,
		"quarterly":      quarterly,
		"first of month": firstOfMonth,
		"yearly":         leapDay,
	}
	targets := []core.Date{
		core.NewDate(2024, 1, 31),
		core.NewDate(2024, 2, 1),
		core.NewDate(2024, 4, 30),
		core.NewDate(2025, 3, 1),
		core.NewDate(2031, 7, 15),
		core.NewDate(2060, 1, 1),
	}

	for name, rule := range rules {
		from, err := FirstOccurrence(rule)
		require.NoError(t, err)
		a, err := GetAdvancer(rule.Frequency)
		require.NoError(t, err)
		skipper, ok := a.(Skipper)
		require.True(t, ok, name)

		for _, target := range targets {
			want := from
			for {
				next, err := AdvanceOnce(rule, want)
				require.NoError(t, err)
				if !next.Before(target) {
					break
				}
				want = next
			}
			assert.Equal(t, want, skipper.Skip(rule, from, target), "%s to %s", name, target)
		}
	}
}
