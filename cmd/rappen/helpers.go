package main

import (
	"context"
	"fmt"

	"github.com/rappenlabs/rappen/internal/config"
	"github.com/rappenlabs/rappen/internal/storage"
	"github.com/spf13/viper"
)

// initStorage opens the configured database and brings the schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.DatabasePath(viper.GetString("database.path"))

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}
