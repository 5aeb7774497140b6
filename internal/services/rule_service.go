package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"scadenze/internal/core"
	"scadenze/internal/schedule"
	"scadenze/internal/storage"
)

// Invalidator is told whenever data a schedule is built from changes.
type Invalidator interface {
	Invalidate()
}

// RuleService owns every write to rules, overrides, one-off items and
// accounts. Each successful write invalidates the projection cache.
type RuleService struct {
	storage *storage.SQLiteRepository
	cache   Invalidator
	now     func() time.Time
}

func NewRuleService(storage *storage.SQLiteRepository, cache Invalidator) *RuleService {
	return &RuleService{
		storage: storage,
		cache:   cache,
		now:     time.Now,
	}
}

func (s *RuleService) invalidate() {
	if s.cache != nil {
		s.cache.Invalidate()
	}
}

// CreateRule validates the draft, places its cursor on the first occurrence
// and stores it.
func (s *RuleService) CreateRule(ctx context.Context, draft core.RecurrenceRule) (core.RecurrenceRule, error) {
	draft.ID = ""
	draft.PostedThrough = core.Date{}
	rule, err := schedule.NewRecurrenceRule(draft, s.now())
	if err != nil {
		return core.RecurrenceRule{}, err
	}
	if err := s.storage.CreateRule(ctx, rule); err != nil {
		return core.RecurrenceRule{}, fmt.Errorf("create rule: %w", err)
	}
	s.invalidate()
	return rule, nil
}

// UpdateRule replaces a rule's definition. When schedule fields change the
// cursor is recomputed from the new definition and moved forward to where
// the old cursor stood. PostedThrough is kept, so already-processed dates
// are not owed again.
func (s *RuleService) UpdateRule(ctx context.Context, id string, draft core.RecurrenceRule) (core.RecurrenceRule, error) {
	current, err := s.storage.GetRule(ctx, id)
	if err != nil {
		return core.RecurrenceRule{}, err
	}

	rule := draft.Normalize()
	rule.ID = current.ID
	rule.CreatedAt = current.CreatedAt
	rule.PostedThrough = current.PostedThrough
	rule.UpdatedAt = s.now().UTC()
	if err := rule.Validate(); err != nil {
		return core.RecurrenceRule{}, err
	}

	if scheduleChanged(current, rule) {
		if rule, err = schedule.Reset(rule); err != nil {
			return core.RecurrenceRule{}, err
		}
		if !current.NextDueDate.IsZero() {
			if rule, err = schedule.FastForward(rule, current.NextDueDate); err != nil {
				return core.RecurrenceRule{}, err
			}
		}
	} else {
		rule.NextDueDate = current.NextDueDate
		rule.Exhausted = current.Exhausted
	}

	if err := s.storage.UpdateRule(ctx, rule); err != nil {
		return core.RecurrenceRule{}, err
	}
	s.invalidate()

	slog.InfoContext(ctx, "Recurrence rule updated",
		"rule_id", rule.ID,
		"next_due_date", rule.NextDueDate,
		"exhausted", rule.Exhausted)
	return rule, nil
}

func scheduleChanged(a, b core.RecurrenceRule) bool {
	return a.Frequency != b.Frequency ||
		a.Interval != b.Interval ||
		!a.StartDate.Equal(b.StartDate) ||
		!a.EndDate.Equal(b.EndDate) ||
		a.DayOfMonthAnchor != b.DayOfMonthAnchor
}

func (s *RuleService) DeleteRule(ctx context.Context, id string) error {
	if err := s.storage.DeleteRule(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	slog.InfoContext(ctx, "Recurrence rule deleted", "rule_id", id)
	return nil
}

func (s *RuleService) GetRule(ctx context.Context, id string) (core.RecurrenceRule, error) {
	return s.storage.GetRule(ctx, id)
}

func (s *RuleService) ListRules(ctx context.Context) ([]core.RecurrenceRule, error) {
	return s.storage.ListRules(ctx)
}

// OverrideEdit carries the replacement values of an amend. Nil fields keep
// the computed value.
type OverrideEdit struct {
	Date        *core.Date
	Amount      *decimal.Decimal
	Description *string
}

// AmendOverride replaces values of the occurrence originally scheduled on
// original. An existing skip flag is kept.
func (s *RuleService) AmendOverride(ctx context.Context, ruleID string, original core.Date, edit OverrideEdit) (core.Override, error) {
	if _, err := s.storage.GetRule(ctx, ruleID); err != nil {
		return core.Override{}, err
	}

	o := core.Override{RuleID: ruleID, OriginalDate: original}
	if existing, err := s.storage.GetOverride(ctx, ruleID, original); err == nil {
		o.IsSkipped = existing.IsSkipped
	}
	if edit.Date != nil {
		o.Date = *edit.Date
	}
	if edit.Amount != nil {
		o.Amount = decimal.NewNullDecimal(*edit.Amount)
	}
	if edit.Description != nil {
		desc := strings.TrimSpace(*edit.Description)
		o.Description = &desc
	}
	o.UpdatedAt = s.now().UTC()

	if err := o.Validate(); err != nil {
		return core.Override{}, err
	}
	if err := s.storage.UpsertOverride(ctx, o); err != nil {
		return core.Override{}, err
	}
	s.invalidate()
	return o, nil
}

// SkipOccurrence hides one occurrence without touching any amend values.
func (s *RuleService) SkipOccurrence(ctx context.Context, ruleID string, original core.Date) error {
	return s.setSkipped(ctx, ruleID, original, true)
}

// UnskipOccurrence restores a skipped occurrence with its previous amend.
func (s *RuleService) UnskipOccurrence(ctx context.Context, ruleID string, original core.Date) error {
	return s.setSkipped(ctx, ruleID, original, false)
}

func (s *RuleService) setSkipped(ctx context.Context, ruleID string, original core.Date, skipped bool) error {
	if _, err := s.storage.GetRule(ctx, ruleID); err != nil {
		return err
	}
	if err := original.Validate(); err != nil {
		return fmt.Errorf("invalid original date: %w", err)
	}
	if err := s.storage.SetOverrideSkipped(ctx, ruleID, original, skipped, s.now()); err != nil {
		return err
	}
	s.invalidate()
	slog.InfoContext(ctx, "Occurrence skip toggled",
		"rule_id", ruleID,
		"scheduled_date", original,
		"skipped", skipped)
	return nil
}

// RevertOverride drops the override so the occurrence shows computed values.
func (s *RuleService) RevertOverride(ctx context.Context, ruleID string, original core.Date) error {
	if err := s.storage.DeleteOverride(ctx, ruleID, original); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *RuleService) ListRuleOverrides(ctx context.Context, ruleID string) ([]core.Override, error) {
	if _, err := s.storage.GetRule(ctx, ruleID); err != nil {
		return nil, err
	}
	return s.storage.ListRuleOverrides(ctx, ruleID)
}

// CreateOneOff stores a new unpaid one-off item.
func (s *RuleService) CreateOneOff(ctx context.Context, item core.OneOffItem) (core.OneOffItem, error) {
	item.ID = uuid.NewString()
	item.Description = strings.TrimSpace(item.Description)
	item.Status = core.StatusUnpaid
	item.SettledAccountID = ""
	item.SettledDate = core.Date{}
	item.CreatedAt = s.now().UTC()
	if err := item.Validate(); err != nil {
		return core.OneOffItem{}, err
	}
	if err := s.storage.CreateOneOff(ctx, item); err != nil {
		return core.OneOffItem{}, err
	}
	s.invalidate()
	return item, nil
}

func (s *RuleService) ListOneOffs(ctx context.Context) ([]core.OneOffItem, error) {
	return s.storage.ListOneOffs(ctx)
}

// MarkOneOffPaid settles an item; paid items no longer appear in schedules.
// An empty accountID settles against the item's own account.
func (s *RuleService) MarkOneOffPaid(ctx context.Context, id, accountID string, settled core.Date) (core.OneOffItem, error) {
	item, err := s.storage.GetOneOff(ctx, id)
	if err != nil {
		return core.OneOffItem{}, err
	}
	if accountID == "" {
		accountID = item.AccountID
	}
	if settled.IsZero() {
		settled = core.DateOf(s.now())
	}
	item = item.MarkPaid(accountID, settled)
	if err := s.storage.SettleOneOff(ctx, item); err != nil {
		return core.OneOffItem{}, err
	}
	s.invalidate()
	return item, nil
}

// CreateAccount registers an account label and currency.
func (s *RuleService) CreateAccount(ctx context.Context, acc core.Account) (core.Account, error) {
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	acc.Label = strings.TrimSpace(acc.Label)
	acc.Currency = strings.ToUpper(strings.TrimSpace(acc.Currency))
	if err := acc.Validate(); err != nil {
		return core.Account{}, err
	}
	if err := s.storage.CreateAccount(ctx, acc, s.now()); err != nil {
		return core.Account{}, err
	}
	s.invalidate()
	return acc, nil
}

func (s *RuleService) ListAccounts(ctx context.Context) ([]core.Account, error) {
	return s.storage.ListAccounts(ctx)
}
