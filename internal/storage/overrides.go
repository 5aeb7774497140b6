package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"scadenze/internal/core"
)

const overrideColumns = `rule_id, original_date, is_skipped, new_date, new_amount, new_description, updated_at`

// UpsertOverride stores the override for (rule, original date), replacing
// any earlier one.
func (r *SQLiteRepository) UpsertOverride(ctx context.Context, o core.Override) error {
	var amount any
	if o.Amount.Valid {
		amount = o.Amount.Decimal.String()
	}
	var desc any
	if o.Description != nil {
		desc = *o.Description
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO occurrence_overrides (`+overrideColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(rule_id, original_date) DO UPDATE SET
			is_skipped = excluded.is_skipped,
			new_date = excluded.new_date,
			new_amount = excluded.new_amount,
			new_description = excluded.new_description,
			updated_at = excluded.updated_at`,
		o.RuleID, o.OriginalDate.String(), boolArg(o.IsSkipped), dateArg(o.Date), amount, desc,
		timeArg(o.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert override %s@%s: %w", o.RuleID, o.OriginalDate, err)
	}
	return nil
}

// SetOverrideSkipped flips only the skip flag, creating a bare skip override
// when none exists. Amend values survive a skip/unskip round trip.
func (r *SQLiteRepository) SetOverrideSkipped(ctx context.Context, ruleID string, original core.Date, skipped bool, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO occurrence_overrides (rule_id, original_date, is_skipped, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(rule_id, original_date) DO UPDATE SET
			is_skipped = excluded.is_skipped,
			updated_at = excluded.updated_at`,
		ruleID, original.String(), boolArg(skipped), timeArg(now),
	)
	if err != nil {
		return fmt.Errorf("set override skipped %s@%s: %w", ruleID, original, err)
	}
	return nil
}

// DeleteOverride reverts an occurrence to its computed values.
func (r *SQLiteRepository) DeleteOverride(ctx context.Context, ruleID string, original core.Date) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM occurrence_overrides WHERE rule_id = ? AND original_date = ?`,
		ruleID, original.String())
	if err != nil {
		return fmt.Errorf("delete override %s@%s: %w", ruleID, original, err)
	}
	return expectOne(res, core.ErrOverrideNotFound)
}

func (r *SQLiteRepository) GetOverride(ctx context.Context, ruleID string, original core.Date) (core.Override, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+overrideColumns+` FROM occurrence_overrides WHERE rule_id = ? AND original_date = ?`,
		ruleID, original.String())
	o, err := scanOverride(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Override{}, fmt.Errorf("get override %s@%s: %w", ruleID, original, core.ErrOverrideNotFound)
	}
	if err != nil {
		return core.Override{}, fmt.Errorf("get override %s@%s: %w", ruleID, original, err)
	}
	return o, nil
}

// ListOverrides returns every override.
func (r *SQLiteRepository) ListOverrides(ctx context.Context) ([]core.Override, error) {
	return r.queryOverrides(ctx, `SELECT `+overrideColumns+` FROM occurrence_overrides ORDER BY rule_id, original_date`)
}

// ListRuleOverrides returns the overrides of a single rule.
func (r *SQLiteRepository) ListRuleOverrides(ctx context.Context, ruleID string) ([]core.Override, error) {
	return r.queryOverrides(ctx,
		`SELECT `+overrideColumns+` FROM occurrence_overrides WHERE rule_id = ? ORDER BY original_date`, ruleID)
}

func (r *SQLiteRepository) queryOverrides(ctx context.Context, query string, args ...any) ([]core.Override, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query overrides: %w", err)
	}
	defer rows.Close()

	var out []core.Override
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOverride(s scanner) (core.Override, error) {
	var (
		o                    core.Override
		original, updatedAt  string
		skipped              int
		newDate, amount, des sql.NullString
	)
	if err := s.Scan(&o.RuleID, &original, &skipped, &newDate, &amount, &des, &updatedAt); err != nil {
		return core.Override{}, err
	}

	var err error
	o.IsSkipped = skipped != 0
	if o.OriginalDate, err = core.ParseDate(original); err != nil {
		return core.Override{}, err
	}
	if o.Date, err = parseNullDate(newDate); err != nil {
		return core.Override{}, err
	}
	if amount.Valid {
		d, err := parseAmount(amount.String)
		if err != nil {
			return core.Override{}, err
		}
		o.Amount = decimal.NewNullDecimal(d)
	}
	if des.Valid {
		text := des.String
		o.Description = &text
	}
	if o.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Override{}, err
	}
	return o, nil
}
