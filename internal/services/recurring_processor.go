package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scadenze/internal/amqp"
	"scadenze/internal/core"
	"scadenze/internal/schedule"
	"scadenze/internal/storage"
)

// DuePublisher hands a due occurrence to whoever posts it.
type DuePublisher interface {
	PublishOccurrenceDue(ctx context.Context, msg *amqp.OccurrenceDueMessage) error
}

// RecurringProcessor publishes the occurrences of every active rule that
// came due, marks each rule posted through today and settles its cursor.
type RecurringProcessor struct {
	storage   *storage.SQLiteRepository
	publisher DuePublisher
	cache     Invalidator
}

// NewRecurringProcessor creates a new recurring occurrence processor
func NewRecurringProcessor(storage *storage.SQLiteRepository, publisher DuePublisher, cache Invalidator) *RecurringProcessor {
	return &RecurringProcessor{
		storage:   storage,
		publisher: publisher,
		cache:     cache,
	}
}

// ProcessResult counts what one run did.
type ProcessResult struct {
	Rules     int
	Published int
	Skipped   int
	Failed    int
}

// ProcessDue publishes every resolved, unskipped occurrence with a raw date
// after PostedThrough and on or before today, then persists PostedThrough =
// today and the settled cursor. The cursor never passes today's occurrences,
// so views of today keep showing them. A rule whose publish fails keeps its
// cursor and mark so the next run retries it; per-rule errors are logged and
// the run goes on.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (ProcessResult, error) {
	if p.storage == nil || p.publisher == nil {
		return ProcessResult{}, fmt.Errorf("processor not properly initialized")
	}

	rules, err := p.storage.ListActiveRules(ctx)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("failed to get active rules: %w", err)
	}
	overrides, err := p.storage.ListOverrides(ctx)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("failed to get overrides: %w", err)
	}
	idx := schedule.IndexOverrides(overrides)
	today := core.DateOf(now)

	slog.InfoContext(ctx, "Processing recurring rules",
		"total_active", len(rules),
		"processing_date", today)

	res := ProcessResult{Rules: len(rules)}
	changed := false
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		published, skipped, err := p.publishDue(ctx, rule, today, idx)
		res.Published += published
		res.Skipped += skipped
		if err != nil {
			res.Failed++
			slog.ErrorContext(ctx, "Failed to publish due occurrences",
				"rule_id", rule.ID,
				"error", err)
			continue
		}

		advanced, err := schedule.Settle(rule, today)
		if err != nil {
			res.Failed++
			slog.ErrorContext(ctx, "Failed to fast-forward rule",
				"rule_id", rule.ID,
				"error", err)
			continue
		}
		if advanced.PostedThrough.Before(today) {
			advanced.PostedThrough = today
		}
		moved := !advanced.NextDueDate.Equal(rule.NextDueDate) || advanced.Exhausted != rule.Exhausted
		if !moved && advanced.PostedThrough.Equal(rule.PostedThrough) {
			continue
		}

		advanced.UpdatedAt = now.UTC()
		if err := p.storage.UpdateRuleCursor(ctx, advanced); err != nil {
			res.Failed++
			slog.ErrorContext(ctx, "Failed to update rule cursor",
				"rule_id", rule.ID,
				"error", err)
			continue
		}
		if moved {
			changed = true
		}

		slog.InfoContext(ctx, "Advanced recurring rule",
			"rule_id", rule.ID,
			"next_due_date", advanced.NextDueDate,
			"posted_through", advanced.PostedThrough,
			"exhausted", advanced.Exhausted)
	}

	if changed && p.cache != nil {
		p.cache.Invalidate()
	}

	slog.InfoContext(ctx, "Recurring rule processing complete",
		"published", res.Published,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"total_checked", res.Rules)
	return res, nil
}

func (p *RecurringProcessor) publishDue(ctx context.Context, rule core.RecurrenceRule, today core.Date, idx schedule.OverrideIndex) (published, skipped int, err error) {
	if err := rule.Validate(); err != nil {
		return 0, 0, err
	}
	for occ := range schedule.Due(rule, today) {
		resolved, keep := schedule.Resolve(occ, idx)
		if !keep {
			skipped++
			continue
		}
		if err := p.publisher.PublishOccurrenceDue(ctx, amqp.NewOccurrenceDueMessage(resolved)); err != nil {
			return published, skipped, fmt.Errorf("publish %s: %w", occ.ScheduledDate, err)
		}
		published++
	}
	return published, skipped, nil
}
