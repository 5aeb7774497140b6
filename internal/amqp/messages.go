package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"scadenze/internal/core"
)

// OccurrenceDueMessage announces that one occurrence of a rule came due.
// It carries the resolved occurrence so the worker posts exactly what was
// due at publish time.
type OccurrenceDueMessage struct {
	RuleID        string          `json:"rule_id"`
	ScheduledDate core.Date       `json:"scheduled_date"`
	Date          core.Date       `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	AccountID     string          `json:"account_id"`
	Kind          core.Kind       `json:"kind"`
	Category      string          `json:"category,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewOccurrenceDueMessage creates a message for a resolved recurring occurrence.
func NewOccurrenceDueMessage(occ core.ScheduledOccurrence) *OccurrenceDueMessage {
	return &OccurrenceDueMessage{
		RuleID:        occ.SourceID,
		ScheduledDate: occ.ScheduledDate,
		Date:          occ.Date,
		Amount:        occ.SignedAmount,
		Description:   occ.Description,
		AccountID:     occ.AccountID,
		Kind:          occ.Kind,
		Category:      occ.Category,
		Timestamp:     time.Now(),
	}
}

// Occurrence rebuilds the occurrence the message was created from.
func (m *OccurrenceDueMessage) Occurrence() core.ScheduledOccurrence {
	return core.ScheduledOccurrence{
		SourceID:      m.RuleID,
		IsRecurring:   true,
		ScheduledDate: m.ScheduledDate,
		Date:          m.Date,
		SignedAmount:  m.Amount,
		Description:   m.Description,
		AccountID:     m.AccountID,
		Kind:          m.Kind,
		Category:      m.Category,
	}
}

// ToJSON converts the message to JSON bytes
func (m *OccurrenceDueMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// OccurrenceDueMessageFromJSON creates a message from JSON bytes
func OccurrenceDueMessageFromJSON(data []byte) (*OccurrenceDueMessage, error) {
	var msg OccurrenceDueMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.RuleID == "" || msg.ScheduledDate.IsZero() {
		return nil, errors.New("occurrence due message needs rule_id and scheduled_date")
	}
	return &msg, nil
}
