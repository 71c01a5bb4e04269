// Package testutil provides shared helpers for package tests, most notably
// an in-memory database wired up with the full schema.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/rappenlabs/rappen/internal/model"
	"github.com/rappenlabs/rappen/internal/storage"
)

// SetupTestDB creates a migrated in-memory SQLite database. Cleanup is
// registered automatically.
func SetupTestDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// SeedAccounts saves the given accounts, failing the test on error.
func SeedAccounts(t *testing.T, store *storage.SQLiteStorage, accounts ...model.Account) {
	t.Helper()
	ctx := context.Background()
	for i := range accounts {
		if err := store.SaveAccount(ctx, &accounts[i]); err != nil {
			t.Fatalf("failed to seed account %s: %v", accounts[i].ID, err)
		}
	}
}

// SeedTransactions saves the given transactions, failing the test on error.
func SeedTransactions(t *testing.T, store *storage.SQLiteStorage, transactions ...model.Transaction) {
	t.Helper()
	if err := store.SaveTransactions(context.Background(), transactions); err != nil {
		t.Fatalf("failed to seed transactions: %v", err)
	}
}

// CheckingAccount returns a ready-to-seed checking account.
func CheckingAccount(id, name string) model.Account {
	return model.Account{
		ID:          id,
		Name:        name,
		Institution: "Test Bank",
		Type:        model.AccountChecking,
		IsActive:    true,
	}
}

// SavingsAccount returns a ready-to-seed savings account.
func SavingsAccount(id, name string) model.Account {
	return model.Account{
		ID:          id,
		Name:        name,
		Institution: "Test Bank",
		Type:        model.AccountSavings,
		IsActive:    true,
	}
}

// Transaction returns a transaction with sensible defaults for tests.
func Transaction(id, accountID, description string, amount float64, date time.Time) model.Transaction {
	return model.Transaction{
		ID:          id,
		AccountID:   accountID,
		Description: description,
		Amount:      amount,
		Date:        date,
	}
}
