package core

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrPostingNotFound = errors.New("posting not found")
	ErrMissingRule     = errors.New("rule id is required")
)

// Posting is an occurrence that came due and was materialized into the
// ledger. A rule posts each raw scheduled date at most once.
type Posting struct {
	ID            int64           `json:"id"`
	RuleID        string          `json:"rule_id"`
	ScheduledDate Date            `json:"scheduled_date"`
	Date          Date            `json:"date"`
	SignedAmount  decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	AccountID     string          `json:"account_id"`
	Kind          Kind            `json:"kind"`
	Category      string          `json:"category,omitempty"`
	LedgerRef     string          `json:"ledger_ref,omitempty"`
	PostedAt      time.Time       `json:"posted_at"`
}

// PostingOf builds the posting for a resolved recurring occurrence.
func PostingOf(occ ScheduledOccurrence, now time.Time) Posting {
	return Posting{
		RuleID:        occ.SourceID,
		ScheduledDate: occ.ScheduledDate,
		Date:          occ.Date,
		SignedAmount:  occ.SignedAmount,
		Description:   occ.Description,
		AccountID:     occ.AccountID,
		Kind:          occ.Kind,
		Category:      occ.Category,
		PostedAt:      now.UTC(),
	}
}

// IsLedgered reports whether the ledger already holds this posting.
func (p Posting) IsLedgered() bool {
	return p.LedgerRef != ""
}

func (p Posting) Validate() error {
	if p.RuleID == "" {
		return ErrMissingRule
	}
	if err := p.ScheduledDate.Validate(); err != nil {
		return err
	}
	if err := p.Date.Validate(); err != nil {
		return err
	}
	if !p.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}
