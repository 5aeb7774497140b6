package schedule

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scadenze/internal/core"
)

func rentOccurrence() core.ScheduledOccurrence {
	return core.ScheduledOccurrence{
		SourceID:      "rent",
		IsRecurring:   true,
		ScheduledDate: core.NewDate(2024, 3, 2),
		Date:          core.NewDate(2024, 3, 1),
		SignedAmount:  decimal.NewFromInt(-900),
		Description:   "Rent",
		Kind:          core.KindExpense,
	}
}

func TestResolveWithoutOverride(t *testing.T) {
	occ := rentOccurrence()
	got, ok := Resolve(occ, IndexOverrides(nil))
	require.True(t, ok)
	assert.Equal(t, occ, got)
	assert.False(t, got.IsOverridden)
}

func TestResolveAmendsPresentFieldsOnly(t *testing.T) {
	desc := "Rent (March)"
	idx := IndexOverrides([]core.Override{{
		RuleID:       "rent",
		OriginalDate: core.NewDate(2024, 3, 2),
		Amount:       decimal.NewNullDecimal(decimal.NewFromInt(950)),
		Description:  &desc,
	}})

	got, ok := Resolve(rentOccurrence(), idx)
	require.True(t, ok)
	assert.True(t, got.IsOverridden)
	assert.True(t, got.SignedAmount.Equal(decimal.NewFromInt(-950)), "expense amounts stay negative")
	assert.Equal(t, desc, got.Description)
	assert.Equal(t, core.NewDate(2024, 3, 1), got.Date, "date untouched without an override date")
	assert.Equal(t, core.NewDate(2024, 3, 2), got.ScheduledDate)
}

func TestResolveOverrideDateIgnoresWeekendPolicy(t *testing.T) {
	idx := IndexOverrides([]core.Override{{
		RuleID:       "rent",
		OriginalDate: core.NewDate(2024, 3, 2),
		Date:         core.NewDate(2024, 3, 10), // a Sunday
	}})

	got, ok := Resolve(rentOccurrence(), idx)
	require.True(t, ok)
	assert.Equal(t, core.NewDate(2024, 3, 10), got.Date)
	assert.True(t, got.IsOverridden)
}

func TestResolveKeysOnRawDate(t *testing.T) {
	// Keyed on the shifted display date, so it must not match.
	idx := IndexOverrides([]core.Override{{
		RuleID:       "rent",
		OriginalDate: core.NewDate(2024, 3, 1),
		IsSkipped:    true,
	}})

	_, ok := Resolve(rentOccurrence(), idx)
	assert.True(t, ok)
}

func TestResolveSkipped(t *testing.T) {
	desc := "kept for later"
	o := core.Override{
		RuleID:       "rent",
		OriginalDate: core.NewDate(2024, 3, 2),
		Description:  &desc,
	}

	_, ok := Resolve(rentOccurrence(), IndexOverrides([]core.Override{o.WithSkipped(true)}))
	assert.False(t, ok)

	got, ok := Resolve(rentOccurrence(), IndexOverrides([]core.Override{o.WithSkipped(true).WithSkipped(false)}))
	require.True(t, ok)
	assert.Equal(t, desc, got.Description, "unskipping restores the amend")
}

func TestIndexOverridesLaterWins(t *testing.T) {
	day := core.NewDate(2024, 3, 2)
	idx := IndexOverrides([]core.Override{
		{RuleID: "rent", OriginalDate: day, IsSkipped: true},
		{RuleID: "rent", OriginalDate: day, Amount: decimal.NewNullDecimal(decimal.NewFromInt(1))},
	})

	o, ok := idx.Lookup("rent", day)
	require.True(t, ok)
	assert.False(t, o.IsSkipped)

	_, ok = idx.Lookup("salary", day)
	assert.False(t, ok)
}
