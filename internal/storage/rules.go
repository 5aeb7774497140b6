package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"scadenze/internal/core"
)

const ruleColumns = `id, description, source_account_id, destination_account_id, kind, amount,
	category, frequency, interval_n, start_date, end_date, day_of_month_anchor,
	weekend_policy, next_due_date, exhausted, posted_through, created_at, updated_at`

// CreateRule inserts a validated rule.
func (r *SQLiteRepository) CreateRule(ctx context.Context, rule core.RecurrenceRule) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.Description, rule.SourceAccountID, stringArg(rule.DestinationAccountID),
		string(rule.Kind), rule.Amount.String(), stringArg(rule.Category), string(rule.Frequency),
		rule.Interval, rule.StartDate.String(), dateArg(rule.EndDate), rule.DayOfMonthAnchor,
		string(rule.WeekendPolicy), dateArg(rule.NextDueDate), boolArg(rule.Exhausted),
		dateArg(rule.PostedThrough), timeArg(rule.CreatedAt), timeArg(rule.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}

	slog.InfoContext(ctx, "Recurrence rule saved to SQLite",
		"rule_id", rule.ID,
		"description", rule.Description,
		"frequency", rule.Frequency,
		"next_due_date", rule.NextDueDate)
	return nil
}

// UpdateRule replaces every column of an existing rule except created_at and
// posted_through, which only the processor moves.
func (r *SQLiteRepository) UpdateRule(ctx context.Context, rule core.RecurrenceRule) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_rules SET
			description = ?, source_account_id = ?, destination_account_id = ?, kind = ?,
			amount = ?, category = ?, frequency = ?, interval_n = ?, start_date = ?,
			end_date = ?, day_of_month_anchor = ?, weekend_policy = ?, next_due_date = ?,
			exhausted = ?, updated_at = ?
		WHERE id = ?`,
		rule.Description, rule.SourceAccountID, stringArg(rule.DestinationAccountID), string(rule.Kind),
		rule.Amount.String(), stringArg(rule.Category), string(rule.Frequency), rule.Interval,
		rule.StartDate.String(), dateArg(rule.EndDate), rule.DayOfMonthAnchor,
		string(rule.WeekendPolicy), dateArg(rule.NextDueDate), boolArg(rule.Exhausted),
		timeArg(rule.UpdatedAt), rule.ID,
	)
	if err != nil {
		return fmt.Errorf("update rule %s: %w", rule.ID, err)
	}
	return expectOne(res, core.ErrRuleNotFound)
}

// UpdateRuleCursor persists only the cursor fields (next due date,
// exhaustion and posted-through), leaving the definition untouched.
func (r *SQLiteRepository) UpdateRuleCursor(ctx context.Context, rule core.RecurrenceRule) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_rules SET next_due_date = ?, exhausted = ?, posted_through = ?, updated_at = ?
		WHERE id = ?`,
		dateArg(rule.NextDueDate), boolArg(rule.Exhausted), dateArg(rule.PostedThrough),
		timeArg(rule.UpdatedAt), rule.ID,
	)
	if err != nil {
		return fmt.Errorf("update rule cursor %s: %w", rule.ID, err)
	}
	return expectOne(res, core.ErrRuleNotFound)
}

func (r *SQLiteRepository) GetRule(ctx context.Context, id string) (core.RecurrenceRule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM recurring_rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurrenceRule{}, fmt.Errorf("get rule %s: %w", id, core.ErrRuleNotFound)
	}
	if err != nil {
		return core.RecurrenceRule{}, fmt.Errorf("get rule %s: %w", id, err)
	}
	return rule, nil
}

// ListRules returns every rule in creation order.
func (r *SQLiteRepository) ListRules(ctx context.Context) ([]core.RecurrenceRule, error) {
	return r.queryRules(ctx, `SELECT `+ruleColumns+` FROM recurring_rules ORDER BY created_at, id`)
}

// ListActiveRules returns the rules that are not exhausted.
func (r *SQLiteRepository) ListActiveRules(ctx context.Context) ([]core.RecurrenceRule, error) {
	return r.queryRules(ctx, `SELECT `+ruleColumns+` FROM recurring_rules WHERE exhausted = 0 ORDER BY created_at, id`)
}

// DeleteRule removes a rule together with its overrides.
func (r *SQLiteRepository) DeleteRule(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM occurrence_overrides WHERE rule_id = ?`, id); err != nil {
			return fmt.Errorf("delete overrides of rule %s: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM recurring_rules WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete rule %s: %w", id, err)
		}
		return expectOne(res, core.ErrRuleNotFound)
	})
}

func (r *SQLiteRepository) queryRules(ctx context.Context, query string, args ...any) ([]core.RecurrenceRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var rules []core.RecurrenceRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func scanRule(s scanner) (core.RecurrenceRule, error) {
	var (
		rule                       core.RecurrenceRule
		dest, category             sql.NullString
		kind, freq, policy, amount string
		start                      string
		end, next, postedThrough   sql.NullString
		exhausted                  int
		createdAt, updatedAt       string
	)
	err := s.Scan(&rule.ID, &rule.Description, &rule.SourceAccountID, &dest, &kind, &amount,
		&category, &freq, &rule.Interval, &start, &end, &rule.DayOfMonthAnchor,
		&policy, &next, &exhausted, &postedThrough, &createdAt, &updatedAt)
	if err != nil {
		return core.RecurrenceRule{}, err
	}

	rule.DestinationAccountID = dest.String
	rule.Category = category.String
	rule.Kind = core.Kind(kind)
	rule.Frequency = core.Frequency(freq)
	rule.WeekendPolicy = core.WeekendPolicy(policy)
	rule.Exhausted = exhausted != 0

	if rule.Amount, err = parseAmount(amount); err != nil {
		return core.RecurrenceRule{}, err
	}
	if rule.StartDate, err = core.ParseDate(start); err != nil {
		return core.RecurrenceRule{}, err
	}
	if rule.EndDate, err = parseNullDate(end); err != nil {
		return core.RecurrenceRule{}, err
	}
	if rule.NextDueDate, err = parseNullDate(next); err != nil {
		return core.RecurrenceRule{}, err
	}
	if rule.PostedThrough, err = parseNullDate(postedThrough); err != nil {
		return core.RecurrenceRule{}, err
	}
	if rule.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.RecurrenceRule{}, err
	}
	if rule.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.RecurrenceRule{}, err
	}
	return rule, nil
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
