// Package service defines the interfaces between the inference engines and
// the persistence layer.
package service

import (
	"context"
	"time"

	"github.com/rappenlabs/rappen/internal/model"
)

// Storage defines the contract for the persistence layer. Lookups for a
// single record return (nil, nil) when nothing matches; errors are reserved
// for actual failures. Counter updates on patterns go through an optimistic
// version check and return common.ErrConcurrencyConflict when another
// writer got there first.
type Storage interface {
	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactionsSince(ctx context.Context, since time.Time) ([]model.Transaction, error)
	GetTransactionsInWindow(ctx context.Context, start, end time.Time) ([]model.Transaction, error)

	// Account operations
	SaveAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetActiveAccounts(ctx context.Context) ([]model.Account, error)

	// Vendor operations
	SaveVendor(ctx context.Context, vendor *model.Vendor) error
	GetVendor(ctx context.Context, id string) (*model.Vendor, error)
	GetAllVendors(ctx context.Context) ([]model.Vendor, error)
	GetActiveVendors(ctx context.Context) ([]model.Vendor, error)
	DeactivateVendor(ctx context.Context, id string) error

	// Vendor pattern operations
	SaveVendorPattern(ctx context.Context, pattern *model.VendorPattern) error
	GetVendorPatternByKey(ctx context.Context, vendorID, normalized string) (*model.VendorPattern, error)
	GetVendorPatterns(ctx context.Context, vendorID string) ([]model.VendorPattern, error)
	GetActiveVendorPatterns(ctx context.Context) ([]model.VendorPattern, error)
	RecordVendorPatternMatch(ctx context.Context, pattern *model.VendorPattern) error

	// Transfer operations
	CreateTransfer(ctx context.Context, transfer *model.Transfer) error
	GetTransfer(ctx context.Context, id string) (*model.Transfer, error)
	GetTransfers(ctx context.Context, limit int) ([]model.Transfer, error)
	DeleteTransfer(ctx context.Context, id string) error

	// Transfer pattern operations
	SaveTransferPattern(ctx context.Context, pattern *model.TransferPattern) error
	GetTransferPattern(ctx context.Context, id string) (*model.TransferPattern, error)
	GetTransferPatterns(ctx context.Context) ([]model.TransferPattern, error)
	GetActiveTransferPatterns(ctx context.Context) ([]model.TransferPattern, error)
	UpdateTransferPattern(ctx context.Context, pattern *model.TransferPattern) error
	DeleteTransferPattern(ctx context.Context, id string) error

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within a transaction
	Storage
}
