package applister

// Store persists the inventory snapshot and the scan/threat-check bookkeeping.
// Implementations must apply ReplaceInventory atomically.
type Store interface {
	// Freshness

	// WasScannedWithinHours reports whether a scan was recorded less than hours ago.
	WasScannedWithinHours(hours int) (bool, error)

	// WasThreatCheckedWithinHours reports whether a threat check was recorded less than hours ago.
	// It is false when no threat check was ever recorded.
	WasThreatCheckedWithinHours(hours int) (bool, error)

	// UpdateThreatCheckTimestamp records a threat check at the current time.
	UpdateThreatCheckTimestamp() error

	// ScanMetadata returns the freshness record, or nil if nothing was ever recorded.
	ScanMetadata() (*ScanMetadata, error)

	// Inventory

	// ReplaceInventory upserts entries by (name, source), evicts every entry not in
	// this call and records the scan time, all in one transaction.
	ReplaceInventory(entries []InventoryEntry) error

	// AllApps returns the stored inventory ordered by source then name.
	AllApps() ([]InventoryEntry, error)

	// History

	// CreateScanRun records the start of an operation and returns it.
	CreateScanRun(id, operation string) (*ScanRun, error)

	// FinishScanRun records the outcome of an operation started with CreateScanRun.
	FinishScanRun(run *ScanRun) error

	// ListScanRuns returns the most recent runs, newest first.
	ListScanRuns(limit int) ([]*ScanRun, error)

	// CheckMigrations verifies the schema is at the latest version.
	CheckMigrations() error

	// Close closes the underlying connection.
	Close() error
}
