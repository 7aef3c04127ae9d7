package applister

import "fmt"

// GetHistory returns the most recent scan and threat-check runs, newest first.
func (s *Service) GetHistory(limit int) ([]*ScanRun, error) {
	runs, err := s.store.ListScanRuns(limit)
	if err != nil {
		return nil, fmt.Errorf("listing scan runs: %w", err)
	}
	return runs, nil
}
