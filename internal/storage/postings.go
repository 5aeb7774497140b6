package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"scadenze/internal/core"
)

const postingColumns = `id, rule_id, scheduled_date, posted_date, amount, description, account_id,
	kind, category, ledger_ref, posted_at`

// RecordPosting inserts the posting unless (rule, scheduled date) is already
// recorded. It returns the stored row and whether this call created it.
func (r *SQLiteRepository) RecordPosting(ctx context.Context, p core.Posting) (core.Posting, bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO posted_occurrences (rule_id, scheduled_date, posted_date, amount, description,
			account_id, kind, category, ledger_ref, posted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(rule_id, scheduled_date) DO NOTHING`,
		p.RuleID, p.ScheduledDate.String(), p.Date.String(), p.SignedAmount.String(), p.Description,
		p.AccountID, string(p.Kind), stringArg(p.Category), stringArg(p.LedgerRef), timeArg(p.PostedAt),
	)
	if err != nil {
		return core.Posting{}, false, fmt.Errorf("record posting %s@%s: %w", p.RuleID, p.ScheduledDate, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Posting{}, false, fmt.Errorf("rows affected: %w", err)
	}

	stored, err := r.GetPosting(ctx, p.RuleID, p.ScheduledDate)
	if err != nil {
		return core.Posting{}, false, err
	}
	return stored, n > 0, nil
}

func (r *SQLiteRepository) GetPosting(ctx context.Context, ruleID string, scheduled core.Date) (core.Posting, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+postingColumns+` FROM posted_occurrences WHERE rule_id = ? AND scheduled_date = ?`,
		ruleID, scheduled.String())
	p, err := scanPosting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Posting{}, fmt.Errorf("get posting %s@%s: %w", ruleID, scheduled, core.ErrPostingNotFound)
	}
	if err != nil {
		return core.Posting{}, fmt.Errorf("get posting %s@%s: %w", ruleID, scheduled, err)
	}
	return p, nil
}

// MarkPostingLedgered stores the ledger's reference for a posting.
func (r *SQLiteRepository) MarkPostingLedgered(ctx context.Context, id int64, ref string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE posted_occurrences SET ledger_ref = ? WHERE id = ?`, ref, id)
	if err != nil {
		return fmt.Errorf("mark posting %d ledgered: %w", id, err)
	}
	if err := expectOne(res, core.ErrPostingNotFound); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Posting marked as ledgered", "id", id, "ledger_ref", ref)
	return nil
}

// ListPostings returns postings whose posted date lies in [from, to].
func (r *SQLiteRepository) ListPostings(ctx context.Context, from, to core.Date) ([]core.Posting, error) {
	return r.queryPostings(ctx,
		`SELECT `+postingColumns+` FROM posted_occurrences
		WHERE posted_date BETWEEN ? AND ? ORDER BY posted_date, id`,
		from.String(), to.String())
}

// ListUnledgeredPostings returns up to limit recorded postings whose ledger
// append has not succeeded yet, oldest first.
func (r *SQLiteRepository) ListUnledgeredPostings(ctx context.Context, limit int) ([]core.Posting, error) {
	return r.queryPostings(ctx,
		`SELECT `+postingColumns+` FROM posted_occurrences
		WHERE ledger_ref IS NULL OR ledger_ref = '' ORDER BY id LIMIT ?`,
		limit)
}

func (r *SQLiteRepository) queryPostings(ctx context.Context, query string, args ...any) ([]core.Posting, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query postings: %w", err)
	}
	defer rows.Close()

	var out []core.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Append implements sheets.LedgerWriter for the sqlite ledger backend: the
// posted_occurrences table is the ledger, so the row id is the reference.
func (r *SQLiteRepository) Append(ctx context.Context, p core.Posting) (string, error) {
	if p.ID == 0 {
		stored, err := r.GetPosting(ctx, p.RuleID, p.ScheduledDate)
		if err != nil {
			return "", err
		}
		p.ID = stored.ID
	}
	return "sqlite:" + strconv.FormatInt(p.ID, 10), nil
}

func scanPosting(s scanner) (core.Posting, error) {
	var (
		p                               core.Posting
		scheduled, posted, amount, kind string
		category, ledgerRef             sql.NullString
		postedAt                        string
	)
	err := s.Scan(&p.ID, &p.RuleID, &scheduled, &posted, &amount, &p.Description, &p.AccountID,
		&kind, &category, &ledgerRef, &postedAt)
	if err != nil {
		return core.Posting{}, err
	}

	p.Kind = core.Kind(kind)
	p.Category = category.String
	p.LedgerRef = ledgerRef.String
	if p.ScheduledDate, err = core.ParseDate(scheduled); err != nil {
		return core.Posting{}, err
	}
	if p.Date, err = core.ParseDate(posted); err != nil {
		return core.Posting{}, err
	}
	if p.SignedAmount, err = parseAmount(amount); err != nil {
		return core.Posting{}, err
	}
	if p.PostedAt, err = parseTime(postedAt); err != nil {
		return core.Posting{}, err
	}
	return p, nil
}
