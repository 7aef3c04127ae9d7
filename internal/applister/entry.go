package applister

import "time"

// Source tags the OS facility an InventoryEntry was read from.
type Source string

const (
	SourceSnap     Source = "snap"
	SourceFlatpak  Source = "flatpak"
	SourceApt      Source = "apt"
	SourceDesktop  Source = "desktop"
	SourceRegistry Source = "windows-registry"
)

// DefaultSources is the fixed collector order used for every scan.
var DefaultSources = []Source{SourceSnap, SourceFlatpak, SourceApt, SourceDesktop, SourceRegistry}

// ParseSource returns the Source for a tag, or false if the tag is unknown.
func ParseSource(s string) (Source, bool) {
	for _, src := range DefaultSources {
		if string(src) == s {
			return src, true
		}
	}
	return "", false
}

func (s Source) String() string { return string(s) }

// InventoryEntry is one detected application.
// Identifier, Version and Origin are empty when the source does not provide them.
type InventoryEntry struct {
	Name       string `json:"name"`
	Source     Source `json:"source"`
	Identifier string `json:"identifier,omitempty"`
	Version    string `json:"version,omitempty"`
	Origin     string `json:"origin,omitempty"`
}

// ScanMetadata is the singleton freshness record kept by the Store.
// A zero LastThreatCheckAt means the threat feed was never consulted.
type ScanMetadata struct {
	LastScanAt        time.Time `json:"last_scan_at"`
	LastThreatCheckAt time.Time `json:"last_threat_check_at"`
}

// ThreatChecked reports whether a threat check was ever recorded.
func (m *ScanMetadata) ThreatChecked() bool {
	return !m.LastThreatCheckAt.IsZero()
}

// Operations recorded in the scan history.
const (
	OperationScan        = "scan"
	OperationThreatCheck = "threat-check"
)

// Run statuses recorded in the scan history.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusPartial = "partial"
	RunStatusError   = "error"
)

// ScanRun is one row of the operation history.
type ScanRun struct {
	ID            string
	Operation     string
	StartedAt     time.Time
	FinishedAt    *time.Time
	Status        string
	EntryCount    int
	FailedSources []Source
	Error         string

	// detached runs could not be recorded and are not persisted on finish.
	detached bool
}
