package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS accounts (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					institution TEXT,
					type TEXT,
					is_active BOOLEAN DEFAULT 1
				)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					hash TEXT UNIQUE NOT NULL,
					date DATETIME NOT NULL,
					description TEXT NOT NULL,
					account_id TEXT NOT NULL,
					category_id TEXT,
					vendor_id TEXT,
					amount REAL NOT NULL,
					confidence REAL DEFAULT 0,
					is_transfer BOOLEAN DEFAULT 0,
					needs_review BOOLEAN DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (account_id) REFERENCES accounts(id)
				)`,

				`CREATE TABLE IF NOT EXISTS vendors (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					parent_id TEXT,
					category_id TEXT,
					use_count INTEGER DEFAULT 0,
					is_active BOOLEAN DEFAULT 1,
					last_updated DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (parent_id) REFERENCES vendors(id)
				)`,

				`CREATE TABLE IF NOT EXISTS vendor_patterns (
					id TEXT PRIMARY KEY,
					vendor_id TEXT NOT NULL,
					normalized TEXT NOT NULL,
					type TEXT NOT NULL,
					confidence_threshold REAL DEFAULT 0.5,
					times_matched INTEGER DEFAULT 0,
					version INTEGER DEFAULT 0,
					is_active BOOLEAN DEFAULT 1,
					last_matched_at DATETIME,
					UNIQUE(vendor_id, normalized),
					FOREIGN KEY (vendor_id) REFERENCES vendors(id)
				)`,

				`CREATE TABLE IF NOT EXISTS transfers (
					id TEXT PRIMARY KEY,
					from_account_id TEXT NOT NULL,
					to_account_id TEXT NOT NULL,
					from_transaction_id TEXT NOT NULL,
					to_transaction_id TEXT NOT NULL,
					description TEXT,
					pattern_id TEXT,
					amount REAL NOT NULL,
					date DATETIME NOT NULL,
					is_confirmed BOOLEAN DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (from_transaction_id) REFERENCES transactions(id),
					FOREIGN KEY (to_transaction_id) REFERENCES transactions(id)
				)`,

				`CREATE TABLE IF NOT EXISTS transfer_patterns (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					from_account_pattern TEXT NOT NULL,
					to_account_pattern TEXT NOT NULL,
					description_pattern TEXT,
					amount_pattern TEXT,
					typical_amount REAL DEFAULT 0,
					amount_tolerance REAL DEFAULT 0.05,
					confidence_threshold REAL DEFAULT 0.8,
					max_days_between INTEGER DEFAULT 3,
					times_matched INTEGER DEFAULT 0,
					version INTEGER DEFAULT 0,
					auto_confirm BOOLEAN DEFAULT 0,
					is_active BOOLEAN DEFAULT 1,
					last_matched_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add lookup indexes for detection scans",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_is_transfer ON transactions(is_transfer)`,
				`CREATE INDEX IF NOT EXISTS idx_vendor_patterns_normalized ON vendor_patterns(normalized)`,
				`CREATE INDEX IF NOT EXISTS idx_vendor_patterns_vendor ON vendor_patterns(vendor_id)`,
				`CREATE INDEX IF NOT EXISTS idx_transfers_date ON transfers(date)`,
				`CREATE INDEX IF NOT EXISTS idx_transfer_patterns_active ON transfer_patterns(is_active)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending migrations to bring the schema to the
// expected version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
