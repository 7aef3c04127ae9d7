package database

import (
	"fmt"
	"os"
	"path/filepath"

	"applister/internal/applister"
	"applister/internal/config"
)

// FileName is the database file created under the configured data dir.
const FileName = "applister.db"

// NewStoreFromConfig creates a Store implementation based on the database
// config type and brings its schema up to date.
func NewStoreFromConfig(cfg config.DatabaseConfig, clock applister.Clock) (*SQLiteStore, error) {
	var path string
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		path = filepath.Join(cfg.DataDir, FileName)
	case "memory":
		path = ":memory:"
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	store, err := NewSQLiteStore(path, clock)
	if err != nil {
		return nil, err
	}
	if err := store.MigrateUp(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	if err := store.CheckMigrations(); err != nil {
		store.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}
	return store, nil
}
