package applister

import (
	"context"
	"time"
)

// Collector queries one OS-specific source of installed-application metadata.
// Collect returns (nil, nil) when the source does not apply to the host; an
// error means the source applied but could not be read.
type Collector interface {
	Source() Source
	Collect(ctx context.Context) ([]InventoryEntry, error)
}

// CommandRunner runs external tools on behalf of collectors.
type CommandRunner interface {
	// IsToolAvailable reports whether name resolves on the search path.
	IsToolAvailable(name string) bool

	// RunLines runs name with args and returns its merged stdout/stderr split into lines.
	RunLines(ctx context.Context, timeout time.Duration, name string, args ...string) ([]string, error)
}

// CollectorResult is the outcome of one collector within a scan.
// Exactly one of Entries or Err is meaningful.
type CollectorResult struct {
	Source   Source
	Entries  []InventoryEntry
	Err      error
	Duration time.Duration
}

// Failed reports whether the collector failed.
func (r CollectorResult) Failed() bool { return r.Err != nil }
