package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"applister/internal/applister"
	"applister/internal/collectors"
	"applister/internal/config"
	"applister/internal/database"
	"applister/internal/encryption"
	"applister/internal/export"
	"applister/internal/feed"
	"applister/internal/process"
)

// Options override host facts for tests. Zero values use the real host.
type Options struct {
	GOOS   string
	Getenv func(string) string
	Runner applister.CommandRunner
	Clock  applister.Clock
	IDGen  applister.IDGenerator
	Stderr io.Writer
	Host   string
}

// App is the application layer between the CLI and applister.Service.
// It constructs all dependencies from config and closes them on Close.
type App struct {
	cfg     *config.Config
	store   *database.SQLiteStore
	service *applister.Service
	host    string
	logFile *os.File
}

// NewApp creates a fully wired App from the given config.
// operation names the CLI command and tags every log line of this run.
// The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, operation string, opts Options) (*App, error) {
	opts = withHostDefaults(opts)

	opID := opts.Clock.Now().UTC().Format("20060102T150405Z") + "-" + operation
	logger, logFile, err := newLogger(cfg.LogDir, opID, parseLevel(cfg.LogLevel), opts.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	a, err := wire(ctx, cfg, opts, log)
	if err != nil {
		logFile.Close()
		return nil, err
	}
	a.logFile = logFile
	return a, nil
}

func wire(ctx context.Context, cfg *config.Config, opts Options, log applister.Logger) (*App, error) {
	colls, err := collectors.NewCollectorsFromConfig(cfg.Collectors, opts.Runner,
		collectors.Env{GOOS: opts.GOOS, Getenv: opts.Getenv}, log)
	if err != nil {
		return nil, fmt.Errorf("creating collectors: %w", err)
	}

	threatFeed, err := feed.NewFeedFromConfig(cfg.Feed, opts.Getenv, log)
	if err != nil {
		return nil, fmt.Errorf("creating threat feed: %w", err)
	}

	sink, err := export.NewSinkFromConfig(ctx, cfg.Export, opts.Getenv)
	if err != nil {
		return nil, fmt.Errorf("creating report sink: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Export, cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	store, err := database.NewStoreFromConfig(cfg.Database, opts.Clock)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	intervals := applister.Intervals{
		ScanHours:        cfg.Scan.IntervalHours,
		ThreatCheckHours: cfg.Scan.ThreatCheckIntervalHours,
	}
	svc := applister.NewService(store, colls, threatFeed, sink, enc, log, opts.Clock, opts.IDGen, intervals)

	return &App{
		cfg:     cfg,
		store:   store,
		service: svc,
		host:    opts.Host,
	}, nil
}

func withHostDefaults(opts Options) Options {
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.Runner == nil {
		opts.Runner = process.NewRunner()
	}
	if opts.Clock == nil {
		opts.Clock = applister.RealClock{}
	}
	if opts.IDGen == nil {
		opts.IDGen = applister.UUIDGenerator{}
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Host == "" {
		if h, err := os.Hostname(); err == nil && h != "" {
			opts.Host = h
		} else {
			opts.Host = "localhost"
		}
	}
	return opts
}

// Inventory returns the cached inventory when fresh, scanning otherwise.
func (a *App) Inventory(ctx context.Context, force bool) (*applister.InventoryResult, error) {
	return a.service.Inventory(ctx, force)
}

// CachedInventory returns the stored inventory without scanning.
func (a *App) CachedInventory() ([]applister.InventoryEntry, error) {
	return a.service.CachedInventory()
}

// CheckThreats matches the stored inventory against the threat feed.
func (a *App) CheckThreats(ctx context.Context, force bool) (*applister.ThreatCheckResult, error) {
	return a.service.CheckThreats(ctx, force)
}

// Status returns the scan and threat-check timestamps.
func (a *App) Status() (*applister.ScanMetadata, error) {
	return a.service.Status()
}

// GetHistory returns the most recent scan runs.
func (a *App) GetHistory(limit int) ([]*applister.ScanRun, error) {
	return a.service.GetHistory(limit)
}

// Export writes a report of the stored inventory. With withThreats set the
// threat feed is queried first, ignoring the check interval, and the matches
// are included in the report.
func (a *App) Export(ctx context.Context, withThreats bool) (string, error) {
	var threats []applister.ThreatRecord
	if withThreats {
		res, err := a.service.CheckThreats(ctx, true)
		if err != nil {
			return "", err
		}
		if res.FeedErr != nil {
			return "", fmt.Errorf("threat check for report: %w", res.FeedErr)
		}
		threats = res.Matches
	}
	return a.service.Export(ctx, a.host, threats)
}

// DatabasePath returns the path of the inventory database.
func (a *App) DatabasePath() string {
	return a.store.Path()
}

// ScanInterval returns the scan freshness window.
func (a *App) ScanInterval() time.Duration {
	return time.Duration(a.cfg.Scan.IntervalHours) * time.Hour
}

// Close closes the database and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
