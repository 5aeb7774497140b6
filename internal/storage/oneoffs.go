package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"scadenze/internal/core"
)

const oneOffColumns = `id, description, amount, due_date, status, account_id, settled_account_id, settled_date, created_at`

func (r *SQLiteRepository) CreateOneOff(ctx context.Context, item core.OneOffItem) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO one_off_items (`+oneOffColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Description, item.Amount.String(), item.DueDate.String(), string(item.Status),
		stringArg(item.AccountID), stringArg(item.SettledAccountID), dateArg(item.SettledDate),
		timeArg(item.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create one-off item: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetOneOff(ctx context.Context, id string) (core.OneOffItem, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+oneOffColumns+` FROM one_off_items WHERE id = ?`, id)
	item, err := scanOneOff(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.OneOffItem{}, fmt.Errorf("get one-off item %s: %w", id, core.ErrOneOffNotFound)
	}
	if err != nil {
		return core.OneOffItem{}, fmt.Errorf("get one-off item %s: %w", id, err)
	}
	return item, nil
}

// ListOneOffs returns every one-off item ordered by due date.
func (r *SQLiteRepository) ListOneOffs(ctx context.Context) ([]core.OneOffItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+oneOffColumns+` FROM one_off_items ORDER BY due_date, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query one-off items: %w", err)
	}
	defer rows.Close()

	var items []core.OneOffItem
	for rows.Next() {
		item, err := scanOneOff(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SettleOneOff stores the paid status and settlement details.
func (r *SQLiteRepository) SettleOneOff(ctx context.Context, item core.OneOffItem) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE one_off_items SET status = ?, settled_account_id = ?, settled_date = ?
		WHERE id = ?`,
		string(item.Status), stringArg(item.SettledAccountID), dateArg(item.SettledDate), item.ID,
	)
	if err != nil {
		return fmt.Errorf("settle one-off item %s: %w", item.ID, err)
	}
	return expectOne(res, core.ErrOneOffNotFound)
}

func scanOneOff(s scanner) (core.OneOffItem, error) {
	var (
		item                                    core.OneOffItem
		amount, due, status, createdAt          string
		accountID, settledAccountID, settledDay sql.NullString
	)
	err := s.Scan(&item.ID, &item.Description, &amount, &due, &status,
		&accountID, &settledAccountID, &settledDay, &createdAt)
	if err != nil {
		return core.OneOffItem{}, err
	}

	item.Status = core.OneOffStatus(status)
	item.AccountID = accountID.String
	item.SettledAccountID = settledAccountID.String
	if item.Amount, err = parseAmount(amount); err != nil {
		return core.OneOffItem{}, err
	}
	if item.DueDate, err = core.ParseDate(due); err != nil {
		return core.OneOffItem{}, err
	}
	if item.SettledDate, err = parseNullDate(settledDay); err != nil {
		return core.OneOffItem{}, err
	}
	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.OneOffItem{}, err
	}
	return item, nil
}
