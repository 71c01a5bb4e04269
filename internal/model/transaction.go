// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Transaction represents a single bank transaction as ingested from a CSV export.
// Records are immutable after ingestion; only categorization and transfer
// confirmation mutate the vendor/category/transfer fields.
type Transaction struct {
	Date        time.Time
	ID          string
	Description string // Raw bank statement description
	AccountID   string
	CategoryID  string
	VendorID    string
	Hash        string
	Amount      float64 // Signed; negative = debit
	Confidence  float64 // Set by the matcher, 0..1
	IsTransfer  bool
	NeedsReview bool
}

// IsDebit reports whether money left the account.
func (t *Transaction) IsDebit() bool {
	return t.Amount < 0
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount,
		t.Description,
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
