package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"applister/internal/applister"
	"applister/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements applister.Store using SQLite.
// Timestamps are stored as Unix seconds; 0 means "never".
type SQLiteStore struct {
	db    *sql.DB
	clock applister.Clock
	path  string
}

var _ applister.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database at path (a file path or ":memory:").
// A nil clock uses the wall clock. The schema is not touched; see MigrateUp.
func NewSQLiteStore(path string, clock applister.Clock) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStoreFromDB(db, clock, path), nil
}

// NewSQLiteStoreFromDB wraps an existing connection opened with OpenConnection.
func NewSQLiteStoreFromDB(db *sql.DB, clock applister.Clock, path string) *SQLiteStore {
	if clock == nil {
		clock = applister.RealClock{}
	}
	return &SQLiteStore{db: db, clock: clock, path: path}
}

// OpenConnection opens and configures a SQLite connection.
// The pool is limited to one connection: the store is single-writer, and every
// ":memory:" connection would otherwise see its own empty database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Freshness

func (s *SQLiteStore) WasScannedWithinHours(hours int) (bool, error) {
	meta, err := s.ScanMetadata()
	if err != nil {
		return false, err
	}
	if meta == nil || meta.LastScanAt.IsZero() {
		return false, nil
	}
	return s.clock.Now().Sub(meta.LastScanAt) < time.Duration(hours)*time.Hour, nil
}

func (s *SQLiteStore) WasThreatCheckedWithinHours(hours int) (bool, error) {
	meta, err := s.ScanMetadata()
	if err != nil {
		return false, err
	}
	if meta == nil || !meta.ThreatChecked() {
		return false, nil
	}
	return s.clock.Now().Sub(meta.LastThreatCheckAt) < time.Duration(hours)*time.Hour, nil
}

// UpdateThreatCheckTimestamp records a threat check. When no metadata row
// exists yet, the new row also takes now as its last scan time.
func (s *SQLiteStore) UpdateThreatCheckTimestamp() error {
	now := s.clock.Now().Unix()
	_, err := s.db.Exec(`
		INSERT INTO scan_metadata (id, last_scan_at, last_threat_check_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_threat_check_at = excluded.last_threat_check_at`,
		now, now)
	if err != nil {
		return fmt.Errorf("updating threat check timestamp: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ScanMetadata() (*applister.ScanMetadata, error) {
	var scanned, checked int64
	err := s.db.QueryRow("SELECT last_scan_at, last_threat_check_at FROM scan_metadata WHERE id = 1").
		Scan(&scanned, &checked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading scan metadata: %w", err)
	}
	return &applister.ScanMetadata{
		LastScanAt:        fromUnix(scanned),
		LastThreatCheckAt: fromUnix(checked),
	}, nil
}

// Inventory

// ReplaceInventory tags every upserted row with a new scan generation and then
// deletes rows from older generations, so eviction does not depend on the
// clock advancing between two scans.
func (s *SQLiteStore) ReplaceInventory(entries []applister.InventoryEntry) error {
	if err := s.replaceInventory(entries); err != nil {
		return fmt.Errorf("%w: %w", applister.ErrStoreTransaction, err)
	}
	return nil
}

func (s *SQLiteStore) replaceInventory(entries []applister.InventoryEntry) error {
	ctx := context.Background()
	now := s.clock.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var generation int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(scan_generation), 0) + 1 FROM apps").Scan(&generation); err != nil {
		return fmt.Errorf("reading scan generation: %w", err)
	}

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO apps (name, source, identifier, version, origin, last_seen_at, scan_generation)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, source) DO UPDATE SET
			identifier = excluded.identifier,
			version = excluded.version,
			origin = excluded.origin,
			last_seen_at = excluded.last_seen_at,
			scan_generation = excluded.scan_generation`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer upsert.Close()

	for _, e := range entries {
		_, err := upsert.ExecContext(ctx, e.Name, string(e.Source),
			nullString(e.Identifier), nullString(e.Version), nullString(e.Origin), now, generation)
		if err != nil {
			return fmt.Errorf("upserting %s/%s: %w", e.Source, e.Name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM apps WHERE scan_generation < ?", generation); err != nil {
		return fmt.Errorf("evicting stale apps: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scan_metadata (id, last_scan_at) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET last_scan_at = excluded.last_scan_at`, now)
	if err != nil {
		return fmt.Errorf("updating last scan time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AllApps() ([]applister.InventoryEntry, error) {
	rows, err := s.db.Query(`
		SELECT name, source, identifier, version, origin
		FROM apps
		ORDER BY source, name`)
	if err != nil {
		return nil, fmt.Errorf("listing apps: %w", err)
	}
	defer rows.Close()

	var apps []applister.InventoryEntry
	for rows.Next() {
		var (
			e                           applister.InventoryEntry
			source                      string
			identifier, version, origin sql.NullString
		)
		if err := rows.Scan(&e.Name, &source, &identifier, &version, &origin); err != nil {
			return nil, fmt.Errorf("scanning app row: %w", err)
		}
		e.Source = applister.Source(source)
		e.Identifier = identifier.String
		e.Version = version.String
		e.Origin = origin.String
		apps = append(apps, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing apps: %w", err)
	}
	return apps, nil
}

// History

func (s *SQLiteStore) CreateScanRun(id, operation string) (*applister.ScanRun, error) {
	run := &applister.ScanRun{
		ID:        id,
		Operation: operation,
		StartedAt: time.Unix(s.clock.Now().Unix(), 0),
		Status:    applister.RunStatusRunning,
	}
	_, err := s.db.Exec(
		"INSERT INTO scan_runs (id, operation, started_at, status) VALUES (?, ?, ?, ?)",
		run.ID, run.Operation, run.StartedAt.Unix(), run.Status)
	if err != nil {
		return nil, fmt.Errorf("creating scan run: %w", err)
	}
	return run, nil
}

func (s *SQLiteStore) FinishScanRun(run *applister.ScanRun) error {
	finished := s.clock.Now()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}

	sources := make([]string, len(run.FailedSources))
	for i, src := range run.FailedSources {
		sources[i] = string(src)
	}

	res, err := s.db.Exec(`
		UPDATE scan_runs
		SET finished_at = ?, status = ?, entry_count = ?, failed_sources = ?, error = ?
		WHERE id = ?`,
		finished.Unix(), run.Status, run.EntryCount, strings.Join(sources, ","), run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("finishing scan run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finishing scan run: no run with id %s", run.ID)
	}
	return nil
}

func (s *SQLiteStore) ListScanRuns(limit int) ([]*applister.ScanRun, error) {
	rows, err := s.db.Query(`
		SELECT id, operation, started_at, finished_at, status, entry_count, failed_sources, error
		FROM scan_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing scan runs: %w", err)
	}
	defer rows.Close()

	var runs []*applister.ScanRun
	for rows.Next() {
		var (
			run      applister.ScanRun
			started  int64
			finished sql.NullInt64
			failed   string
		)
		if err := rows.Scan(&run.ID, &run.Operation, &started, &finished, &run.Status, &run.EntryCount, &failed, &run.Error); err != nil {
			return nil, fmt.Errorf("scanning scan run row: %w", err)
		}
		run.StartedAt = time.Unix(started, 0)
		if finished.Valid {
			t := time.Unix(finished.Int64, 0)
			run.FinishedAt = &t
		}
		if failed != "" {
			for _, src := range strings.Split(failed, ",") {
				run.FailedSources = append(run.FailedSources, applister.Source(src))
			}
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing scan runs: %w", err)
	}
	return runs, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteStore) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrateUp applies any pending schema migrations.
func (s *SQLiteStore) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
