package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rappenlabs/rappen/internal/model"
	"github.com/rappenlabs/rappen/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

var (
	_ service.Storage     = (*SQLiteStorage)(nil)
	_ service.Transaction = (*sqliteTransaction)(nil)
)

// queryable abstracts *sql.DB and *sql.Tx so repository methods can run
// either standalone or inside a transaction.
type queryable interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	patternCacheAt time.Time
	db             *sql.DB
	patternCache   []model.VendorPattern
	dbPath         string
	cacheMutex     sync.RWMutex
}

// patternCacheTTL bounds how stale the active-pattern cache may get. The
// suggestion path reads all active patterns on every call; the cache keeps
// that from hitting the database for each keystroke of a review session.
const patternCacheTTL = 30 * time.Second

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

func (s *SQLiteStorage) cachedActivePatterns() []model.VendorPattern {
	s.cacheMutex.RLock()
	defer s.cacheMutex.RUnlock()
	if s.patternCache == nil || time.Since(s.patternCacheAt) > patternCacheTTL {
		return nil
	}
	patterns := make([]model.VendorPattern, len(s.patternCache))
	copy(patterns, s.patternCache)
	return patterns
}

func (s *SQLiteStorage) setPatternCache(patterns []model.VendorPattern) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()
	s.patternCache = make([]model.VendorPattern, len(patterns))
	copy(s.patternCache, patterns)
	s.patternCacheAt = time.Now()
}

func (s *SQLiteStorage) invalidatePatternCache() {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()
	s.patternCache = nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Transaction methods delegate to the main storage with the transaction.
func (t *sqliteTransaction) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}
	return t.storage.saveTransactionsTx(ctx, t.tx, transactions)
}

func (t *sqliteTransaction) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getTransactionByIDTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetTransactionsSince(ctx context.Context, since time.Time) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getTransactionsSinceTx(ctx, t.tx, since)
}

func (t *sqliteTransaction) GetTransactionsInWindow(ctx context.Context, start, end time.Time) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, end, start)
	}
	return t.storage.getTransactionsInWindowTx(ctx, t.tx, start, end)
}

func (t *sqliteTransaction) SaveAccount(ctx context.Context, account *model.Account) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAccount(account); err != nil {
		return err
	}
	return t.storage.saveAccountTx(ctx, t.tx, account)
}

func (t *sqliteTransaction) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getAccountTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetActiveAccounts(ctx context.Context) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getActiveAccountsTx(ctx, t.tx)
}

func (t *sqliteTransaction) SaveVendor(ctx context.Context, vendor *model.Vendor) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateVendor(vendor); err != nil {
		return err
	}
	return t.storage.saveVendorTx(ctx, t.tx, vendor)
}

func (t *sqliteTransaction) GetVendor(ctx context.Context, id string) (*model.Vendor, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getVendorTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetAllVendors(ctx context.Context) ([]model.Vendor, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getVendorsTx(ctx, t.tx, false)
}

func (t *sqliteTransaction) GetActiveVendors(ctx context.Context) ([]model.Vendor, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getVendorsTx(ctx, t.tx, true)
}

func (t *sqliteTransaction) DeactivateVendor(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.storage.deactivateVendorTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) SaveVendorPattern(ctx context.Context, pattern *model.VendorPattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.saveVendorPatternTx(ctx, t.tx, pattern)
}

func (t *sqliteTransaction) GetVendorPatternByKey(ctx context.Context, vendorID, normalized string) (*model.VendorPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getVendorPatternByKeyTx(ctx, t.tx, vendorID, normalized)
}

func (t *sqliteTransaction) GetVendorPatterns(ctx context.Context, vendorID string) ([]model.VendorPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getVendorPatternsTx(ctx, t.tx, vendorID)
}

func (t *sqliteTransaction) GetActiveVendorPatterns(ctx context.Context) ([]model.VendorPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getActiveVendorPatternsTx(ctx, t.tx)
}

func (t *sqliteTransaction) RecordVendorPatternMatch(ctx context.Context, pattern *model.VendorPattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.recordVendorPatternMatchTx(ctx, t.tx, pattern)
}

func (t *sqliteTransaction) CreateTransfer(ctx context.Context, transfer *model.Transfer) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransfer(transfer); err != nil {
		return err
	}
	return t.storage.createTransferTx(ctx, t.tx, transfer)
}

func (t *sqliteTransaction) GetTransfer(ctx context.Context, id string) (*model.Transfer, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getTransferTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetTransfers(ctx context.Context, limit int) ([]model.Transfer, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getTransfersTx(ctx, t.tx, limit)
}

func (t *sqliteTransaction) DeleteTransfer(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.storage.deleteTransferTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) SaveTransferPattern(ctx context.Context, pattern *model.TransferPattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.saveTransferPatternTx(ctx, t.tx, pattern)
}

func (t *sqliteTransaction) GetTransferPattern(ctx context.Context, id string) (*model.TransferPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getTransferPatternTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetTransferPatterns(ctx context.Context) ([]model.TransferPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getTransferPatternsTx(ctx, t.tx, false)
}

func (t *sqliteTransaction) GetActiveTransferPatterns(ctx context.Context) ([]model.TransferPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getTransferPatternsTx(ctx, t.tx, true)
}

func (t *sqliteTransaction) UpdateTransferPattern(ctx context.Context, pattern *model.TransferPattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.updateTransferPatternTx(ctx, t.tx, pattern)
}

func (t *sqliteTransaction) DeleteTransferPattern(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.storage.deleteTransferPatternTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}
