package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rappenlabs/rappen/internal/model"
)

// SaveAccount inserts or updates an account record.
func (s *SQLiteStorage) SaveAccount(ctx context.Context, account *model.Account) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAccount(account); err != nil {
		return err
	}
	return s.saveAccountTx(ctx, s.db, account)
}

func (s *SQLiteStorage) saveAccountTx(ctx context.Context, q queryable, account *model.Account) error {
	query := `
		INSERT INTO accounts (id, name, institution, type, is_active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			institution = excluded.institution,
			type = excluded.type,
			is_active = excluded.is_active`

	_, err := q.ExecContext(ctx, query,
		account.ID, account.Name, account.Institution, string(account.Type), account.IsActive)
	if err != nil {
		return fmt.Errorf("failed to save account %s: %w", account.ID, err)
	}
	return nil
}

// GetAccount retrieves an account by ID. Returns nil if not found.
func (s *SQLiteStorage) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getAccountTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getAccountTx(ctx context.Context, q queryable, id string) (*model.Account, error) {
	query := `SELECT id, name, institution, type, is_active FROM accounts WHERE id = ?`

	var account model.Account
	var accountType string
	err := q.QueryRowContext(ctx, query, id).Scan(
		&account.ID, &account.Name, &account.Institution, &accountType, &account.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}
	account.Type = model.AccountType(accountType)
	return &account, nil
}

// GetActiveAccounts retrieves all active accounts ordered by name.
func (s *SQLiteStorage) GetActiveAccounts(ctx context.Context) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getActiveAccountsTx(ctx, s.db)
}

func (s *SQLiteStorage) getActiveAccountsTx(ctx context.Context, q queryable) ([]model.Account, error) {
	query := `SELECT id, name, institution, type, is_active FROM accounts WHERE is_active = 1 ORDER BY name`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.Account
	for rows.Next() {
		var account model.Account
		var accountType string
		if err := rows.Scan(&account.ID, &account.Name, &account.Institution, &accountType, &account.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		account.Type = model.AccountType(accountType)
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}
