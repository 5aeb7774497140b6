package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	KindIncome   Kind = "income"
	KindExpense  Kind = "expense"
	KindTransfer Kind = "transfer"
)

const (
	WeekendOn     WeekendPolicy = "on"
	WeekendBefore WeekendPolicy = "before"
	WeekendAfter  WeekendPolicy = "after"
)

const (
	StatusUnpaid OneOffStatus = "unpaid"
	StatusPaid   OneOffStatus = "paid"
)

// MaxDescriptionLength bounds every user supplied description.
const MaxDescriptionLength = 200

type (
	Frequency     string
	Kind          string
	WeekendPolicy string
	OneOffStatus  string

	// RecurrenceRule is a repeating scheduled cash flow. Amount is always a
	// positive magnitude; direction comes from Kind.
	RecurrenceRule struct {
		ID                   string          `json:"id"`
		Description          string          `json:"description"`
		SourceAccountID      string          `json:"source_account_id"`
		DestinationAccountID string          `json:"destination_account_id,omitempty"`
		Kind                 Kind            `json:"kind"`
		Amount               decimal.Decimal `json:"amount"`
		Category             string          `json:"category,omitempty"`
		Frequency            Frequency       `json:"frequency"`
		Interval             int             `json:"interval"`
		StartDate            Date            `json:"start_date"`
		EndDate              Date            `json:"end_date"`            // zero = open-ended
		DayOfMonthAnchor     int             `json:"day_of_month_anchor"` // 0 = day of StartDate
		WeekendPolicy        WeekendPolicy   `json:"weekend_policy"`
		NextDueDate          Date            `json:"next_due_date"`
		Exhausted            bool            `json:"exhausted"`
		PostedThrough        Date            `json:"posted_through"` // zero = nothing published yet
		CreatedAt            time.Time       `json:"created_at"`
		UpdatedAt            time.Time       `json:"updated_at"`
	}

	// Override is an exception to exactly one occurrence of one rule, keyed by
	// the occurrence's raw scheduled date.
	Override struct {
		RuleID       string              `json:"rule_id"`
		OriginalDate Date                `json:"original_date"`
		IsSkipped    bool                `json:"is_skipped"`
		Date         Date                `json:"date"` // zero = keep computed date
		Amount       decimal.NullDecimal `json:"amount"`
		Description  *string             `json:"description,omitempty"`
		UpdatedAt    time.Time           `json:"updated_at"`
	}

	// OneOffItem is a non-recurring bill (negative amount) or deposit
	// (positive amount).
	OneOffItem struct {
		ID               string          `json:"id"`
		Description      string          `json:"description"`
		Amount           decimal.Decimal `json:"amount"`
		DueDate          Date            `json:"due_date"`
		Status           OneOffStatus    `json:"status"`
		AccountID        string          `json:"account_id,omitempty"`
		SettledAccountID string          `json:"settled_account_id,omitempty"`
		SettledDate      Date            `json:"settled_date"`
		CreatedAt        time.Time       `json:"created_at"`
	}

	// ScheduledOccurrence is derived on every query and never stored.
	// ScheduledDate is the raw date the rule computed; Date is what callers
	// display after weekend policy and overrides.
	ScheduledOccurrence struct {
		SourceID      string          `json:"source_id"`
		IsRecurring   bool            `json:"is_recurring"`
		ScheduledDate Date            `json:"scheduled_date"`
		Date          Date            `json:"date"`
		SignedAmount  decimal.Decimal `json:"signed_amount"`
		Description   string          `json:"description"`
		AccountID     string          `json:"account_id,omitempty"`
		AccountLabel  string          `json:"account_label,omitempty"`
		Currency      string          `json:"currency,omitempty"`
		Kind          Kind            `json:"kind"`
		Category      string          `json:"category,omitempty"`
		IsOverridden  bool            `json:"is_overridden"`
	}

	// Account is the account-management collaborator's view of an account.
	Account struct {
		ID       string `json:"id"`
		Label    string `json:"label"`
		Currency string `json:"currency"`
	}

	// AccountDirectory maps account id to display label and currency.
	AccountDirectory map[string]Account
)

var (
	ErrZeroDate             = errors.New("date cannot be zero")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrEmptyDescription     = errors.New("empty description")
	ErrDescriptionTooLong   = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
	ErrInvalidKind          = errors.New("invalid kind")
	ErrInvalidFrequency     = errors.New("invalid frequency")
	ErrInvalidInterval      = errors.New("invalid interval")
	ErrInvalidAnchor        = errors.New("invalid day of month anchor")
	ErrInvalidWeekendPolicy = errors.New("invalid weekend policy")
	ErrReversedDateRange    = errors.New("end date must not be before start date")
	ErrWindowTooLarge       = errors.New("date range too large")
	ErrMissingCategory      = errors.New("category is required for income and expense rules")
	ErrMissingAccount       = errors.New("source account is required")
	ErrInvalidTransfer      = errors.New("transfer needs a destination account different from the source")
	ErrInvalidStatus        = errors.New("invalid one-off status")
	ErrInvalidAccount       = errors.New("invalid account")

	ErrRuleNotFound     = errors.New("recurrence rule not found")
	ErrOverrideNotFound = errors.New("override not found")
	ErrOneOffNotFound   = errors.New("one-off item not found")
	ErrAccountNotFound  = errors.New("account not found")
)

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	default:
		return false
	}
}

func (k Kind) Valid() bool {
	switch k {
	case KindIncome, KindExpense, KindTransfer:
		return true
	default:
		return false
	}
}

// Signed applies the kind's direction to a positive magnitude. Transfers are
// outflows from the source account.
func (k Kind) Signed(magnitude decimal.Decimal) decimal.Decimal {
	if k == KindIncome {
		return magnitude.Abs()
	}
	return magnitude.Abs().Neg()
}

func (p WeekendPolicy) Valid() bool {
	switch p {
	case WeekendOn, WeekendBefore, WeekendAfter:
		return true
	default:
		return false
	}
}

// AnchorDay is the intended day of month for monthly and yearly rules.
// Without an explicit anchor it follows StartDate, so editing StartDate
// moves every future occurrence.
func (r RecurrenceRule) AnchorDay() int {
	if r.DayOfMonthAnchor > 0 {
		return r.DayOfMonthAnchor
	}
	return r.StartDate.Day()
}

// HasEnd reports whether the rule has an inclusive end date.
func (r RecurrenceRule) HasEnd() bool {
	return !r.EndDate.IsZero()
}

// Normalize fills defaults and drops fields the rule's kind ignores.
func (r RecurrenceRule) Normalize() RecurrenceRule {
	r.Description = strings.TrimSpace(r.Description)
	r.Category = strings.TrimSpace(r.Category)
	r.Frequency = Frequency(strings.ToLower(strings.TrimSpace(string(r.Frequency))))
	r.Kind = Kind(strings.ToLower(strings.TrimSpace(string(r.Kind))))
	r.WeekendPolicy = WeekendPolicy(strings.ToLower(strings.TrimSpace(string(r.WeekendPolicy))))
	if r.WeekendPolicy == "" {
		r.WeekendPolicy = WeekendOn
	}
	if r.Kind == KindTransfer {
		r.Category = ""
	} else {
		r.DestinationAccountID = ""
	}
	return r
}

// Validate reports the first configuration error in the rule definition.
func (r RecurrenceRule) Validate() error {
	if err := r.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if r.HasEnd() && r.EndDate.Before(r.StartDate) {
		return fmt.Errorf("%w: start %s, end %s", ErrReversedDateRange, r.StartDate, r.EndDate)
	}

	if !r.Frequency.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, r.Frequency)
	}
	if r.Interval < 1 {
		return fmt.Errorf("%w: %d must be at least 1", ErrInvalidInterval, r.Interval)
	}
	if r.Frequency == Daily && r.Interval != 1 {
		return fmt.Errorf("%w: daily rules repeat every day", ErrInvalidInterval)
	}
	if r.DayOfMonthAnchor < 0 || r.DayOfMonthAnchor > 31 {
		return fmt.Errorf("%w: %d", ErrInvalidAnchor, r.DayOfMonthAnchor)
	}
	if !r.WeekendPolicy.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidWeekendPolicy, r.WeekendPolicy)
	}

	if err := validateDescription(r.Description); err != nil {
		return err
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}

	if !r.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, r.Kind)
	}
	if strings.TrimSpace(r.SourceAccountID) == "" {
		return ErrMissingAccount
	}
	switch r.Kind {
	case KindTransfer:
		if r.DestinationAccountID == "" || r.DestinationAccountID == r.SourceAccountID {
			return ErrInvalidTransfer
		}
	default:
		if strings.TrimSpace(r.Category) == "" {
			return ErrMissingCategory
		}
	}

	return nil
}

// IsAmend reports whether the override replaces at least one field.
func (o Override) IsAmend() bool {
	return !o.Date.IsZero() || o.Amount.Valid || o.Description != nil
}

// WithSkipped returns a copy with the skip flag set. Amend values are kept so
// that un-skipping restores the previous edit.
func (o Override) WithSkipped(skipped bool) Override {
	o.IsSkipped = skipped
	return o
}

func (o Override) Validate() error {
	if strings.TrimSpace(o.RuleID) == "" {
		return ErrRuleNotFound
	}
	if err := o.OriginalDate.Validate(); err != nil {
		return fmt.Errorf("invalid original date: %w", err)
	}
	if o.Amount.Valid && !o.Amount.Decimal.IsPositive() {
		return ErrInvalidAmount
	}
	if o.Description != nil {
		if err := validateDescription(*o.Description); err != nil {
			return err
		}
	}
	return nil
}

// Kind derives income or expense from the sign of the amount.
func (i OneOffItem) Kind() Kind {
	if i.Amount.IsNegative() {
		return KindExpense
	}
	return KindIncome
}

// MarkPaid returns a settled copy of the item.
func (i OneOffItem) MarkPaid(accountID string, settled Date) OneOffItem {
	i.Status = StatusPaid
	i.SettledAccountID = accountID
	i.SettledDate = settled
	return i
}

func (i OneOffItem) Validate() error {
	if err := i.DueDate.Validate(); err != nil {
		return fmt.Errorf("invalid due date: %w", err)
	}
	if err := validateDescription(i.Description); err != nil {
		return err
	}
	if i.Amount.IsZero() {
		return ErrInvalidAmount
	}
	switch i.Status {
	case StatusUnpaid, StatusPaid:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, i.Status)
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Label) == "" {
		return fmt.Errorf("%w: label cannot be empty", ErrInvalidAccount)
	}
	if len(strings.TrimSpace(a.Currency)) != 3 {
		return fmt.Errorf("%w: currency %q must be a 3-letter code", ErrInvalidAccount, a.Currency)
	}
	return nil
}

// Lookup returns the account or a zero Account when the id is unknown.
func (d AccountDirectory) Lookup(id string) Account {
	if d == nil {
		return Account{}
	}
	return d[id]
}

func validateDescription(s string) error {
	if len(strings.TrimSpace(s)) == 0 {
		return ErrEmptyDescription
	}
	if len(s) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}
