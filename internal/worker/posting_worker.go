package worker

import (
	"context"
	"fmt"
	"log/slog"

	"scadenze/internal/amqp"
	"scadenze/internal/core"
)

// Poster materializes a due occurrence.
type Poster interface {
	Post(ctx context.Context, occ core.ScheduledOccurrence) (core.Posting, error)
	RetryPending(ctx context.Context, limit int) (int, error)
}

// PostingWorker turns OccurrenceDue messages into ledger postings.
type PostingWorker struct {
	poster    Poster
	batchSize int
}

func NewPostingWorker(poster Poster, batchSize int) *PostingWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	return &PostingWorker{
		poster:    poster,
		batchSize: batchSize,
	}
}

// HandleOccurrenceDue posts the occurrence carried by msg. Returning an
// error makes the consumer requeue the message.
func (w *PostingWorker) HandleOccurrenceDue(ctx context.Context, msg *amqp.OccurrenceDueMessage) error {
	slog.InfoContext(ctx, "Processing occurrence due message",
		"rule_id", msg.RuleID,
		"scheduled_date", msg.ScheduledDate)

	if _, err := w.poster.Post(ctx, msg.Occurrence()); err != nil {
		return fmt.Errorf("post occurrence: %w", err)
	}
	return nil
}

// ProcessPending retries postings whose ledger append failed. This is a
// backup for appends that failed after the message was already handled.
func (w *PostingWorker) ProcessPending(ctx context.Context) error {
	n, err := w.poster.RetryPending(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.InfoContext(ctx, "Pending postings appended", "count", n)
	}
	return nil
}

// StartupCheck drains a larger batch of pending postings at startup, to
// recover from worker downtime.
func (w *PostingWorker) StartupCheck(ctx context.Context) error {
	n, err := w.poster.RetryPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup pending check: %w", err)
	}
	slog.InfoContext(ctx, "Startup posting check completed", "appended", n)
	return nil
}
