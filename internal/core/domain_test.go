package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func validRule() RecurrenceRule {
	return RecurrenceRule{
		ID:              "rent",
		Description:     "Rent",
		SourceAccountID: "checking",
		Kind:            KindExpense,
		Amount:          decimal.NewFromInt(1200),
		Category:        "Housing",
		Frequency:       Monthly,
		Interval:        1,
		StartDate:       NewDate(2024, 1, 31),
		WeekendPolicy:   WeekendAfter,
	}
}

func TestRecurrenceRuleValidate(t *testing.T) {
	if err := validRule().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*RecurrenceRule)
		want   error
	}{
		{"zero interval", func(r *RecurrenceRule) { r.Interval = 0 }, ErrInvalidInterval},
		{"negative interval", func(r *RecurrenceRule) { r.Interval = -2 }, ErrInvalidInterval},
		{"daily with interval", func(r *RecurrenceRule) { r.Frequency = Daily; r.Interval = 3 }, ErrInvalidInterval},
		{"unknown frequency", func(r *RecurrenceRule) { r.Frequency = "hourly" }, ErrInvalidFrequency},
		{"reversed range", func(r *RecurrenceRule) { r.EndDate = NewDate(2023, 12, 31) }, ErrReversedDateRange},
		{"zero start", func(r *RecurrenceRule) { r.StartDate = Date{} }, ErrZeroDate},
		{"zero amount", func(r *RecurrenceRule) { r.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(r *RecurrenceRule) { r.Amount = decimal.NewFromInt(-5) }, ErrInvalidAmount},
		{"missing category", func(r *RecurrenceRule) { r.Category = " " }, ErrMissingCategory},
		{"anchor too large", func(r *RecurrenceRule) { r.DayOfMonthAnchor = 32 }, ErrInvalidAnchor},
		{"bad weekend policy", func(r *RecurrenceRule) { r.WeekendPolicy = "never" }, ErrInvalidWeekendPolicy},
		{"bad kind", func(r *RecurrenceRule) { r.Kind = "refund" }, ErrInvalidKind},
		{"missing account", func(r *RecurrenceRule) { r.SourceAccountID = "" }, ErrMissingAccount},
		{"transfer to self", func(r *RecurrenceRule) {
			r.Kind = KindTransfer
			r.DestinationAccountID = r.SourceAccountID
		}, ErrInvalidTransfer},
		{"empty description", func(r *RecurrenceRule) { r.Description = "" }, ErrEmptyDescription},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRule()
			tt.mutate(&r)
			err := r.Validate()
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRecurrenceRuleNormalize(t *testing.T) {
	r := validRule()
	r.Kind = "Transfer"
	r.DestinationAccountID = "savings"
	r.WeekendPolicy = ""
	r = r.Normalize()

	if r.Kind != KindTransfer {
		t.Fatalf("kind not normalized: %q", r.Kind)
	}
	if r.Category != "" {
		t.Fatalf("transfer must not keep a category, got %q", r.Category)
	}
	if r.WeekendPolicy != WeekendOn {
		t.Fatalf("empty weekend policy should default to on, got %q", r.WeekendPolicy)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("normalized transfer should be valid: %v", err)
	}
}

func TestAnchorDayFallsBackToStartDate(t *testing.T) {
	r := validRule()
	if got := r.AnchorDay(); got != 31 {
		t.Fatalf("AnchorDay() = %d, want 31", got)
	}
	r.DayOfMonthAnchor = 15
	if got := r.AnchorDay(); got != 15 {
		t.Fatalf("AnchorDay() = %d, want 15", got)
	}
}

func TestKindSigned(t *testing.T) {
	amt := decimal.NewFromInt(50)
	if !KindIncome.Signed(amt).Equal(decimal.NewFromInt(50)) {
		t.Fatalf("income must be positive")
	}
	if !KindExpense.Signed(amt).Equal(decimal.NewFromInt(-50)) {
		t.Fatalf("expense must be negative")
	}
	if !KindTransfer.Signed(amt).Equal(decimal.NewFromInt(-50)) {
		t.Fatalf("transfer must be an outflow")
	}
}

func TestOverrideWithSkippedKeepsAmendValues(t *testing.T) {
	desc := "Rent (reduced)"
	o := Override{
		RuleID:       "rent",
		OriginalDate: NewDate(2024, 3, 31),
		Amount:       decimal.NewNullDecimal(decimal.NewFromInt(900)),
		Description:  &desc,
	}

	skipped := o.WithSkipped(true)
	restored := skipped.WithSkipped(false)

	if !skipped.IsSkipped || restored.IsSkipped {
		t.Fatalf("skip flag not toggled: %+v %+v", skipped, restored)
	}
	if !restored.Amount.Valid || !restored.Amount.Decimal.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("amount lost on unskip: %+v", restored.Amount)
	}
	if restored.Description == nil || *restored.Description != desc {
		t.Fatalf("description lost on unskip")
	}
}

func TestOneOffItem(t *testing.T) {
	bill := OneOffItem{
		ID:          "car-tax",
		Description: "Car tax",
		Amount:      decimal.NewFromInt(-180),
		DueDate:     NewDate(2024, 6, 1),
		Status:      StatusUnpaid,
	}
	if err := bill.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if bill.Kind() != KindExpense {
		t.Fatalf("negative one-off must be an expense")
	}

	paid := bill.MarkPaid("checking", NewDate(2024, 5, 30))
	if paid.Status != StatusPaid || paid.SettledAccountID != "checking" {
		t.Fatalf("unexpected paid item: %+v", paid)
	}
	if bill.Status != StatusUnpaid {
		t.Fatalf("MarkPaid must not mutate the receiver")
	}

	bill.Amount = decimal.Zero
	if err := bill.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
