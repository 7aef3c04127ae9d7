package applister

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Intervals are the freshness windows for the inventory cache and the threat feed.
type Intervals struct {
	ScanHours        int
	ThreatCheckHours int
}

// DefaultIntervals re-scan after 20 hours and re-query the threat feed after 5.
var DefaultIntervals = Intervals{ScanHours: 20, ThreatCheckHours: 5}

// Service is the orchestration layer that coordinates collectors, the store and
// the threat feed to perform the operations needed by the CLI.
// It is not safe for concurrent use; run one operation at a time per Store.
type Service struct {
	store      Store
	collectors []Collector
	feed       ThreatFeed
	sink       ReportSink
	encryptor  Encryptor
	logger     Logger
	clock      Clock
	idgen      IDGenerator
	intervals  Intervals
}

// NewService creates a Service with the provided dependencies.
// Collectors run in the order given. feed, sink and encryptor may be nil:
// a nil feed reports ErrFeedUnavailable, a nil sink makes Export fail and a
// nil encryptor exports plaintext.
func NewService(store Store, collectors []Collector, feed ThreatFeed, sink ReportSink, encryptor Encryptor, logger Logger, clock Clock, idgen IDGenerator, intervals Intervals) *Service {
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	if idgen == nil {
		idgen = UUIDGenerator{}
	}
	return &Service{
		store:      store,
		collectors: collectors,
		feed:       feed,
		sink:       sink,
		encryptor:  encryptor,
		logger:     logger,
		clock:      clock,
		idgen:      idgen,
		intervals:  intervals,
	}
}

// InventoryResult is the inventory returned by Inventory or Scan.
type InventoryResult struct {
	Entries   []InventoryEntry
	FromCache bool

	// Results holds one entry per collector for a fresh scan; nil for cached results.
	Results []CollectorResult
}

// FailedSources lists the collectors that failed during a fresh scan.
func (r *InventoryResult) FailedSources() []Source {
	var failed []Source
	for _, res := range r.Results {
		if res.Failed() {
			failed = append(failed, res.Source)
		}
	}
	return failed
}

// Inventory returns the cached inventory when the last scan is within the scan
// interval, and performs a fresh scan otherwise. force always scans.
func (s *Service) Inventory(ctx context.Context, force bool) (*InventoryResult, error) {
	if !force {
		fresh, err := s.store.WasScannedWithinHours(s.intervals.ScanHours)
		if err != nil {
			return nil, fmt.Errorf("checking scan freshness: %w", err)
		}
		if fresh {
			apps, err := s.store.AllApps()
			if err != nil {
				return nil, fmt.Errorf("reading cached inventory: %w", err)
			}
			s.logger.Info("using cached inventory", "apps", len(apps), "interval_hours", s.intervals.ScanHours)
			return &InventoryResult{Entries: apps, FromCache: true}, nil
		}
	}
	return s.Scan(ctx)
}

// CachedInventory returns the stored inventory without scanning.
func (s *Service) CachedInventory() ([]InventoryEntry, error) {
	apps, err := s.store.AllApps()
	if err != nil {
		return nil, fmt.Errorf("reading cached inventory: %w", err)
	}
	return apps, nil
}

// Scan runs every collector, replaces the stored inventory with the combined
// result and returns it. A failing collector contributes no entries but does not
// fail the scan; only a failed store write does, leaving the old snapshot in place.
func (s *Service) Scan(ctx context.Context) (*InventoryResult, error) {
	run := s.startRun(OperationScan)
	s.logger.Info("scan started", "run", run.ID, "collectors", len(s.collectors))

	results := make([]CollectorResult, 0, len(s.collectors))
	var entries []InventoryEntry
	for _, c := range s.collectors {
		res := s.runCollector(ctx, c)
		results = append(results, res)
		if res.Failed() {
			run.FailedSources = append(run.FailedSources, res.Source)
			s.logger.Warn("collector failed", "source", res.Source, "error", res.Err)
			continue
		}
		s.logger.Debug("collector finished", "source", res.Source, "entries", len(res.Entries), "duration", res.Duration)
		entries = append(entries, res.Entries...)
	}

	if err := s.store.ReplaceInventory(entries); err != nil {
		run.Status = RunStatusError
		run.Error = err.Error()
		s.finishRun(run)
		return nil, fmt.Errorf("saving inventory: %w", err)
	}

	run.EntryCount = len(entries)
	run.Status = RunStatusSuccess
	if len(run.FailedSources) > 0 {
		run.Status = RunStatusPartial
	}
	s.finishRun(run)
	s.logger.Info("scan finished", "run", run.ID, "entries", len(entries), "failed", len(run.FailedSources))

	return &InventoryResult{Entries: entries, Results: results}, nil
}

// runCollector invokes one collector, converting errors and panics into a failed result.
func (s *Service) runCollector(ctx context.Context, c Collector) (res CollectorResult) {
	res.Source = c.Source()
	start := s.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Entries = nil
			res.Err = fmt.Errorf("collector %s panicked: %v", res.Source, r)
		}
		res.Duration = s.clock.Now().Sub(start)
	}()

	entries, err := c.Collect(ctx)
	if err != nil {
		res.Err = fmt.Errorf("collecting %s: %w", res.Source, err)
		return res
	}
	res.Entries = entries
	return res
}

// ThreatCheckResult is the outcome of CheckThreats.
type ThreatCheckResult struct {
	Matches []ThreatRecord

	// Skipped is set when the feed was consulted within the check interval.
	Skipped bool

	// FeedErr is set when the feed could not be read. Matches is then empty.
	FeedErr error

	// FeedSize is the number of records the feed returned.
	FeedSize int
}

// CheckThreats matches the stored inventory against the threat feed. The feed is
// queried at most once per threat-check interval unless force is set. Feed
// failures are reported in the result, not as an error; store failures are errors.
func (s *Service) CheckThreats(ctx context.Context, force bool) (*ThreatCheckResult, error) {
	if !force {
		checked, err := s.store.WasThreatCheckedWithinHours(s.intervals.ThreatCheckHours)
		if err != nil {
			return nil, fmt.Errorf("checking threat-check freshness: %w", err)
		}
		if checked {
			s.logger.Info("threat check skipped", "interval_hours", s.intervals.ThreatCheckHours)
			return &ThreatCheckResult{Skipped: true}, nil
		}
	}

	apps, err := s.store.AllApps()
	if err != nil {
		return nil, fmt.Errorf("reading cached inventory: %w", err)
	}

	run := s.startRun(OperationThreatCheck)

	records, err := s.fetchThreats(ctx)
	if err != nil {
		s.logger.Warn("threat check failed", "error", err)
		run.Status = RunStatusError
		run.Error = err.Error()
		s.finishRun(run)
		return &ThreatCheckResult{FeedErr: err}, nil
	}

	if err := s.store.UpdateThreatCheckTimestamp(); err != nil {
		run.Status = RunStatusError
		run.Error = err.Error()
		s.finishRun(run)
		return nil, fmt.Errorf("recording threat check: %w", err)
	}

	matches := MatchThreats(apps, records)
	run.Status = RunStatusSuccess
	run.EntryCount = len(matches)
	s.finishRun(run)
	s.logger.Info("threat check finished", "feed", len(records), "matches", len(matches))

	return &ThreatCheckResult{Matches: matches, FeedSize: len(records)}, nil
}

func (s *Service) fetchThreats(ctx context.Context) ([]ThreatRecord, error) {
	if s.feed == nil {
		return nil, fmt.Errorf("no threat feed configured: %w", ErrFeedUnavailable)
	}
	records, err := s.feed.FetchThreats(ctx)
	if err != nil {
		if errors.Is(err, ErrFeedUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w: %w", s.feed.Name(), ErrFeedUnavailable, err)
	}
	return records, nil
}

// Status returns the freshness record, or nil if no scan or check was ever recorded.
func (s *Service) Status() (*ScanMetadata, error) {
	meta, err := s.store.ScanMetadata()
	if err != nil {
		return nil, fmt.Errorf("reading scan metadata: %w", err)
	}
	return meta, nil
}

// startRun records the start of an operation. History is best-effort: when the
// run cannot be recorded the operation continues with a detached run.
func (s *Service) startRun(operation string) *ScanRun {
	id := s.idgen.New()
	run, err := s.store.CreateScanRun(id, operation)
	if err != nil {
		s.logger.Warn("recording run start failed", "run", id, "operation", operation, "error", err)
		return &ScanRun{
			ID:        id,
			Operation: operation,
			StartedAt: s.clock.Now(),
			Status:    RunStatusRunning,
			detached:  true,
		}
	}
	return run
}

// finishRun stamps and persists a run. Failures are logged.
func (s *Service) finishRun(run *ScanRun) {
	now := s.clock.Now()
	run.FinishedAt = &now
	if run.detached {
		return
	}
	if err := s.store.FinishScanRun(run); err != nil {
		s.logger.Warn("recording run outcome failed", "run", run.ID, "error", err)
	}
}

// scanAge is how long ago the last scan happened, or zero if never.
func (s *Service) scanAge(meta *ScanMetadata) time.Duration {
	if meta == nil || meta.LastScanAt.IsZero() {
		return 0
	}
	return s.clock.Now().Sub(meta.LastScanAt)
}
