package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"scadenze/internal/core"
)

func (r *SQLiteRepository) CreateAccount(ctx context.Context, acc core.Account, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, label, currency, created_at) VALUES (?, ?, ?, ?)`,
		acc.ID, acc.Label, acc.Currency, timeArg(now))
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id string) (core.Account, error) {
	var acc core.Account
	err := r.db.QueryRowContext(ctx,
		`SELECT id, label, currency FROM accounts WHERE id = ?`, id,
	).Scan(&acc.ID, &acc.Label, &acc.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("get account %s: %w", id, core.ErrAccountNotFound)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account %s: %w", id, err)
	}
	return acc, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, label, currency FROM accounts ORDER BY label, id`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var acc core.Account
		if err := rows.Scan(&acc.ID, &acc.Label, &acc.Currency); err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// AccountDirectory loads every account keyed by id.
func (r *SQLiteRepository) AccountDirectory(ctx context.Context) (core.AccountDirectory, error) {
	accounts, err := r.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	dir := make(core.AccountDirectory, len(accounts))
	for _, acc := range accounts {
		dir[acc.ID] = acc
	}
	return dir, nil
}
