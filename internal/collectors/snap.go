package collectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"applister/internal/applister"
)

// SnapCollector lists installed snaps.
type SnapCollector struct {
	runner  applister.CommandRunner
	timeout time.Duration
}

var _ applister.Collector = (*SnapCollector)(nil)

func NewSnapCollector(runner applister.CommandRunner, timeout time.Duration) *SnapCollector {
	return &SnapCollector{runner: runner, timeout: timeout}
}

func (c *SnapCollector) Source() applister.Source { return applister.SourceSnap }

func (c *SnapCollector) Collect(ctx context.Context) ([]applister.InventoryEntry, error) {
	if !c.runner.IsToolAvailable("snap") {
		return nil, nil
	}

	lines, err := c.runner.RunLines(ctx, c.timeout, "snap", "list")
	if err != nil {
		return nil, fmt.Errorf("listing snaps: %w", err)
	}

	return parseSnapList(lines), nil
}

// parseSnapList parses the "Name Version Rev Tracking Publisher Notes" table.
// The first line is the header.
func parseSnapList(lines []string) []applister.InventoryEntry {
	var out []applister.InventoryEntry
	for i, line := range lines {
		if i == 0 {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		out = append(out, applister.InventoryEntry{
			Name:       fields[0],
			Source:     applister.SourceSnap,
			Identifier: fields[0],
			Version:    fields[1],
		})
	}
	return out
}
