package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scadenze/internal/core"
	ports "scadenze/internal/sheets"
	"scadenze/internal/storage"
)

// PostingService materializes due occurrences: each (rule, scheduled date)
// is recorded once in SQLite and appended once to the ledger.
type PostingService struct {
	storage *storage.SQLiteRepository
	ledger  ports.LedgerWriter
	now     func() time.Time
}

func NewPostingService(storage *storage.SQLiteRepository, ledger ports.LedgerWriter) *PostingService {
	return &PostingService{
		storage: storage,
		ledger:  ledger,
		now:     time.Now,
	}
}

// Post records occ and appends it to the ledger. Redelivering an occurrence
// that is already in the ledger is a no-op. When an earlier append failed
// the stored posting is appended again.
func (s *PostingService) Post(ctx context.Context, occ core.ScheduledOccurrence) (core.Posting, error) {
	p := core.PostingOf(occ, s.now())
	if err := p.Validate(); err != nil {
		return core.Posting{}, fmt.Errorf("invalid posting: %w", err)
	}

	stored, created, err := s.storage.RecordPosting(ctx, p)
	if err != nil {
		return core.Posting{}, err
	}
	if stored.IsLedgered() {
		slog.InfoContext(ctx, "Occurrence already posted",
			"rule_id", stored.RuleID,
			"scheduled_date", stored.ScheduledDate,
			"ledger_ref", stored.LedgerRef)
		return stored, nil
	}
	if !created {
		slog.WarnContext(ctx, "Retrying ledger append for recorded posting",
			"rule_id", stored.RuleID,
			"scheduled_date", stored.ScheduledDate)
	}

	ref, err := s.ledger.Append(ctx, stored)
	if err != nil {
		return stored, fmt.Errorf("append to ledger: %w", err)
	}
	if err := s.storage.MarkPostingLedgered(ctx, stored.ID, ref); err != nil {
		return stored, err
	}
	stored.LedgerRef = ref

	slog.InfoContext(ctx, "Occurrence posted",
		"rule_id", stored.RuleID,
		"scheduled_date", stored.ScheduledDate,
		"date", stored.Date,
		"amount", stored.SignedAmount,
		"ledger_ref", ref)
	return stored, nil
}

// ListPostings returns what was posted with a display date in [from, to].
func (s *PostingService) ListPostings(ctx context.Context, from, to core.Date) ([]core.Posting, error) {
	return s.storage.ListPostings(ctx, from, to)
}

// RetryPending appends up to limit recorded postings whose earlier ledger
// append failed. It returns how many now reached the ledger.
func (s *PostingService) RetryPending(ctx context.Context, limit int) (int, error) {
	pending, err := s.storage.ListUnledgeredPostings(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending postings: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending postings", "count", len(pending))

	done := 0
	for _, p := range pending {
		ref, err := s.ledger.Append(ctx, p)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to append pending posting",
				"rule_id", p.RuleID,
				"scheduled_date", p.ScheduledDate,
				"error", err)
			continue
		}
		if err := s.storage.MarkPostingLedgered(ctx, p.ID, ref); err != nil {
			slog.ErrorContext(ctx, "Failed to mark posting ledgered", "id", p.ID, "error", err)
			continue
		}
		done++
	}
	return done, nil
}
