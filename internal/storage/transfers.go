package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rappenlabs/rappen/internal/common"
	"github.com/rappenlabs/rappen/internal/model"
)

const transferColumns = `id, from_account_id, to_account_id, from_transaction_id, to_transaction_id, description, pattern_id, amount, date, is_confirmed, created_at`

const transferPatternColumns = `id, name, from_account_pattern, to_account_pattern, description_pattern, amount_pattern, typical_amount, amount_tolerance, confidence_threshold, max_days_between, times_matched, version, auto_confirm, is_active, last_matched_at, created_at, updated_at`

// CreateTransfer records a confirmed transfer and flags both transaction legs
// in one transaction. Either everything lands or nothing does.
func (s *SQLiteStorage) CreateTransfer(ctx context.Context, transfer *model.Transfer) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransfer(transfer); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.createTransferTx(ctx, tx, transfer); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transfer %s: %w", transfer.ID, err)
	}
	return nil
}

func (s *SQLiteStorage) createTransferTx(ctx context.Context, q queryable, transfer *model.Transfer) error {
	for _, legID := range []string{transfer.FromTransactionID, transfer.ToTransactionID} {
		leg, err := s.getTransactionByIDTx(ctx, q, legID)
		if err != nil {
			return err
		}
		if leg == nil {
			return fmt.Errorf("transfer leg %s: %w", legID, common.ErrNotFound)
		}
		if leg.IsTransfer {
			return fmt.Errorf("transaction %s is already part of a transfer: %w", legID, common.ErrDuplicateEntry)
		}
	}

	if transfer.CreatedAt.IsZero() {
		transfer.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO transfers (` + transferColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := q.ExecContext(ctx, query,
		transfer.ID, transfer.FromAccountID, transfer.ToAccountID,
		transfer.FromTransactionID, transfer.ToTransactionID,
		transfer.Description, nullableString(transfer.PatternID),
		transfer.Amount, transfer.Date, transfer.IsConfirmed, transfer.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transfer %s: %w", transfer.ID, err)
	}

	if err := s.markTransferLegs(ctx, q, transfer, true); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStorage) markTransferLegs(ctx context.Context, q queryable, transfer *model.Transfer, isTransfer bool) error {
	result, err := q.ExecContext(ctx,
		`UPDATE transactions SET is_transfer = ?, needs_review = 0 WHERE id IN (?, ?)`,
		isTransfer, transfer.FromTransactionID, transfer.ToTransactionID)
	if err != nil {
		return fmt.Errorf("failed to flag transfer legs: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check leg update result: %w", err)
	}
	if affected != 2 {
		return fmt.Errorf("expected to flag 2 transfer legs, flagged %d: %w", affected, common.ErrNotFound)
	}
	return nil
}

// GetTransfer retrieves a transfer by ID. Returns nil if not found.
func (s *SQLiteStorage) GetTransfer(ctx context.Context, id string) (*model.Transfer, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getTransferTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getTransferTx(ctx context.Context, q queryable, id string) (*model.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = ?`

	row := q.QueryRowContext(ctx, query, id)
	transfer, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer %s: %w", id, err)
	}
	return transfer, nil
}

// GetTransfers retrieves recent transfers newest first. A non-positive limit
// returns everything.
func (s *SQLiteStorage) GetTransfers(ctx context.Context, limit int) ([]model.Transfer, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getTransfersTx(ctx, s.db, limit)
}

func (s *SQLiteStorage) getTransfersTx(ctx context.Context, q queryable, limit int) ([]model.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers ORDER BY date DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transfers []model.Transfer
	for rows.Next() {
		transfer, scanErr := scanTransfer(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", scanErr)
		}
		transfers = append(transfers, *transfer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transfers: %w", err)
	}
	return transfers, nil
}

// DeleteTransfer removes a transfer and reverts both legs to regular
// transactions, again in a single database transaction.
func (s *SQLiteStorage) DeleteTransfer(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.deleteTransferTx(ctx, tx, id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transfer deletion %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStorage) deleteTransferTx(ctx context.Context, q queryable, id string) error {
	transfer, err := s.getTransferTx(ctx, q, id)
	if err != nil {
		return err
	}
	if transfer == nil {
		return fmt.Errorf("transfer %s: %w", id, common.ErrNotFound)
	}

	if err := s.markTransferLegs(ctx, q, transfer, false); err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM transfers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete transfer %s: %w", id, err)
	}
	return nil
}

// SaveTransferPattern inserts a newly learned pattern.
func (s *SQLiteStorage) SaveTransferPattern(ctx context.Context, pattern *model.TransferPattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if pattern == nil {
		return fmt.Errorf("%w: pattern", ErrNilParameter)
	}
	if err := pattern.Validate(); err != nil {
		return fmt.Errorf("%w: %s", common.ErrInvalidInput, err)
	}
	return s.saveTransferPatternTx(ctx, s.db, pattern)
}

func (s *SQLiteStorage) saveTransferPatternTx(ctx context.Context, q queryable, pattern *model.TransferPattern) error {
	now := time.Now()
	if pattern.CreatedAt.IsZero() {
		pattern.CreatedAt = now
	}
	if pattern.UpdatedAt.IsZero() {
		pattern.UpdatedAt = now
	}

	query := `
		INSERT INTO transfer_patterns (` + transferPatternColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := q.ExecContext(ctx, query,
		pattern.ID, pattern.Name, pattern.FromAccountPattern, pattern.ToAccountPattern,
		nullableString(pattern.DescriptionPattern), nullableString(pattern.AmountPattern),
		pattern.TypicalAmount, pattern.AmountTolerance, pattern.ConfidenceThreshold,
		pattern.MaxDaysBetween, pattern.TimesMatched, pattern.Version,
		pattern.AutoConfirm, pattern.IsActive,
		nullableTime(pattern.LastMatchedAt), pattern.CreatedAt, pattern.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save transfer pattern %s: %w", pattern.ID, err)
	}
	return nil
}

// GetTransferPattern retrieves a pattern by ID. Returns nil if not found.
func (s *SQLiteStorage) GetTransferPattern(ctx context.Context, id string) (*model.TransferPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getTransferPatternTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getTransferPatternTx(ctx context.Context, q queryable, id string) (*model.TransferPattern, error) {
	query := `SELECT ` + transferPatternColumns + ` FROM transfer_patterns WHERE id = ?`

	row := q.QueryRowContext(ctx, query, id)
	pattern, err := scanTransferPattern(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer pattern %s: %w", id, err)
	}
	return pattern, nil
}

// GetTransferPatterns retrieves every transfer pattern ordered by match count.
func (s *SQLiteStorage) GetTransferPatterns(ctx context.Context) ([]model.TransferPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getTransferPatternsTx(ctx, s.db, false)
}

// GetActiveTransferPatterns retrieves active patterns ordered by match count.
func (s *SQLiteStorage) GetActiveTransferPatterns(ctx context.Context) ([]model.TransferPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getTransferPatternsTx(ctx, s.db, true)
}

func (s *SQLiteStorage) getTransferPatternsTx(ctx context.Context, q queryable, activeOnly bool) ([]model.TransferPattern, error) {
	query := `SELECT ` + transferPatternColumns + ` FROM transfer_patterns`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY times_matched DESC, name`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patterns []model.TransferPattern
	for rows.Next() {
		pattern, scanErr := scanTransferPattern(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan transfer pattern: %w", scanErr)
		}
		patterns = append(patterns, *pattern)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transfer patterns: %w", err)
	}
	return patterns, nil
}

// UpdateTransferPattern writes back a pattern read earlier, guarded by its
// version. A concurrent write since that read surfaces as
// common.ErrConcurrencyConflict.
func (s *SQLiteStorage) UpdateTransferPattern(ctx context.Context, pattern *model.TransferPattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if pattern == nil {
		return fmt.Errorf("%w: pattern", ErrNilParameter)
	}
	if err := pattern.Validate(); err != nil {
		return fmt.Errorf("%w: %s", common.ErrInvalidInput, err)
	}
	return s.updateTransferPatternTx(ctx, s.db, pattern)
}

func (s *SQLiteStorage) updateTransferPatternTx(ctx context.Context, q queryable, pattern *model.TransferPattern) error {
	now := time.Now()
	result, err := q.ExecContext(ctx, `
		UPDATE transfer_patterns
		SET name = ?, from_account_pattern = ?, to_account_pattern = ?,
		    description_pattern = ?, amount_pattern = ?, typical_amount = ?,
		    amount_tolerance = ?, confidence_threshold = ?, max_days_between = ?,
		    times_matched = ?, auto_confirm = ?, is_active = ?,
		    last_matched_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		pattern.Name, pattern.FromAccountPattern, pattern.ToAccountPattern,
		nullableString(pattern.DescriptionPattern), nullableString(pattern.AmountPattern),
		pattern.TypicalAmount, pattern.AmountTolerance, pattern.ConfidenceThreshold,
		pattern.MaxDaysBetween, pattern.TimesMatched, pattern.AutoConfirm, pattern.IsActive,
		nullableTime(pattern.LastMatchedAt), now,
		pattern.ID, pattern.Version)
	if err != nil {
		return fmt.Errorf("failed to update transfer pattern %s: %w", pattern.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check pattern update result: %w", err)
	}
	if affected == 0 {
		existing, getErr := s.getTransferPatternTx(ctx, q, pattern.ID)
		if getErr != nil {
			return getErr
		}
		if existing == nil {
			return fmt.Errorf("transfer pattern %s: %w", pattern.ID, common.ErrNotFound)
		}
		return fmt.Errorf("transfer pattern %s: %w", pattern.ID, common.ErrConcurrencyConflict)
	}

	pattern.Version++
	pattern.UpdatedAt = now
	return nil
}

// DeleteTransferPattern removes a pattern permanently.
func (s *SQLiteStorage) DeleteTransferPattern(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.deleteTransferPatternTx(ctx, s.db, id)
}

func (s *SQLiteStorage) deleteTransferPatternTx(ctx context.Context, q queryable, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM transfer_patterns WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transfer pattern %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check pattern deletion result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transfer pattern %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func scanTransfer(row scanner) (*model.Transfer, error) {
	var t model.Transfer
	var description, patternID sql.NullString
	var dateStr, createdAtStr string

	err := row.Scan(&t.ID, &t.FromAccountID, &t.ToAccountID,
		&t.FromTransactionID, &t.ToTransactionID,
		&description, &patternID, &t.Amount, &dateStr, &t.IsConfirmed, &createdAtStr)
	if err != nil {
		return nil, err
	}

	t.Description = description.String
	t.PatternID = patternID.String
	if t.Date, err = parseStoredTime(dateStr); err != nil {
		return nil, fmt.Errorf("failed to parse transfer date %q: %w", dateStr, err)
	}
	if t.CreatedAt, err = parseStoredTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("failed to parse transfer created_at %q: %w", createdAtStr, err)
	}
	return &t, nil
}

func scanTransferPattern(row scanner) (*model.TransferPattern, error) {
	var p model.TransferPattern
	var descPattern, amountPattern, lastMatchedAt sql.NullString
	var createdAtStr, updatedAtStr string

	err := row.Scan(&p.ID, &p.Name, &p.FromAccountPattern, &p.ToAccountPattern,
		&descPattern, &amountPattern, &p.TypicalAmount, &p.AmountTolerance,
		&p.ConfidenceThreshold, &p.MaxDaysBetween, &p.TimesMatched, &p.Version,
		&p.AutoConfirm, &p.IsActive, &lastMatchedAt, &createdAtStr, &updatedAtStr)
	if err != nil {
		return nil, err
	}

	p.DescriptionPattern = descPattern.String
	p.AmountPattern = amountPattern.String
	if lastMatchedAt.Valid && strings.TrimSpace(lastMatchedAt.String) != "" {
		if t, parseErr := parseStoredTime(lastMatchedAt.String); parseErr == nil {
			p.LastMatchedAt = t
		}
	}
	if p.CreatedAt, err = parseStoredTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("failed to parse pattern created_at %q: %w", createdAtStr, err)
	}
	if p.UpdatedAt, err = parseStoredTime(updatedAtStr); err != nil {
		return nil, fmt.Errorf("failed to parse pattern updated_at %q: %w", updatedAtStr, err)
	}
	return &p, nil
}
