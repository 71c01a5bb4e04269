package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rappenlabs/rappen/internal/model"
)

const transactionColumns = `id, hash, date, description, account_id, category_id, vendor_id, amount, confidence, is_transfer, needs_review`

// SaveTransactions saves transactions to the database, skipping rows whose
// hash already exists. Duplicate detection is content-based so re-imports of
// the same CSV export are safe.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}
	return s.saveTransactionsTx(ctx, s.db, transactions)
}

func (s *SQLiteStorage) saveTransactionsTx(ctx context.Context, q queryable, transactions []model.Transaction) error {
	query := `
		INSERT OR IGNORE INTO transactions
		(` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for i := range transactions {
		txn := &transactions[i]
		if txn.Hash == "" {
			txn.Hash = txn.GenerateHash()
		}
		_, err := q.ExecContext(ctx, query,
			txn.ID, txn.Hash, txn.Date, txn.Description, txn.AccountID,
			nullableString(txn.CategoryID), nullableString(txn.VendorID),
			txn.Amount, txn.Confidence, txn.IsTransfer, txn.NeedsReview)
		if err != nil {
			return fmt.Errorf("failed to save transaction %s: %w", txn.ID, err)
		}
	}
	return nil
}

// GetTransactionByID retrieves a single transaction. Returns nil if not found.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getTransactionByIDTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getTransactionByIDTx(ctx context.Context, q queryable, id string) (*model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

	row := q.QueryRowContext(ctx, query, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", id, err)
	}
	return txn, nil
}

// GetTransactionsSince retrieves all transactions on or after the given date,
// ordered by date then ID for deterministic scans.
func (s *SQLiteStorage) GetTransactionsSince(ctx context.Context, since time.Time) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getTransactionsSinceTx(ctx, s.db, since)
}

func (s *SQLiteStorage) getTransactionsSinceTx(ctx context.Context, q queryable, since time.Time) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE date >= ? ORDER BY date, id`
	return queryTransactions(ctx, q, query, since)
}

// GetTransactionsInWindow retrieves transactions within [start, end] inclusive.
func (s *SQLiteStorage) GetTransactionsInWindow(ctx context.Context, start, end time.Time) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, end, start)
	}
	return s.getTransactionsInWindowTx(ctx, s.db, start, end)
}

func (s *SQLiteStorage) getTransactionsInWindowTx(ctx context.Context, q queryable, start, end time.Time) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE date >= ? AND date <= ? ORDER BY date, id`
	return queryTransactions(ctx, q, query, start, end)
}

func queryTransactions(ctx context.Context, q queryable, query string, args ...any) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", scanErr)
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return transactions, nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*model.Transaction, error) {
	var txn model.Transaction
	var categoryID, vendorID sql.NullString
	var dateStr string

	err := row.Scan(
		&txn.ID, &txn.Hash, &dateStr, &txn.Description, &txn.AccountID,
		&categoryID, &vendorID, &txn.Amount, &txn.Confidence,
		&txn.IsTransfer, &txn.NeedsReview)
	if err != nil {
		return nil, err
	}

	txn.Date, err = parseStoredTime(dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transaction date %q: %w", dateStr, err)
	}
	txn.CategoryID = categoryID.String
	txn.VendorID = vendorID.String
	return &txn, nil
}

// parseStoredTime handles the formats SQLite hands back for DATETIME columns.
func parseStoredTime(value string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	value = strings.TrimSpace(value)
	for _, format := range formats {
		if t, err := time.Parse(format, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format %q", value)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
