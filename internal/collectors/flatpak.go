package collectors

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"applister/internal/applister"
)

var multiSpace = regexp.MustCompile(`\s{2,}`)

// FlatpakCollector lists installed Flatpak applications.
type FlatpakCollector struct {
	runner  applister.CommandRunner
	goos    string
	timeout time.Duration
}

var _ applister.Collector = (*FlatpakCollector)(nil)

func NewFlatpakCollector(runner applister.CommandRunner, goos string, timeout time.Duration) *FlatpakCollector {
	return &FlatpakCollector{runner: runner, goos: goos, timeout: timeout}
}

func (c *FlatpakCollector) Source() applister.Source { return applister.SourceFlatpak }

func (c *FlatpakCollector) Collect(ctx context.Context) ([]applister.InventoryEntry, error) {
	if c.goos == "windows" || !c.runner.IsToolAvailable("flatpak") {
		return nil, nil
	}

	lines, err := c.runner.RunLines(ctx, c.timeout, "flatpak", "list", "--app", "--columns=application,name,version,origin")
	if err != nil {
		return nil, fmt.Errorf("listing flatpak apps: %w", err)
	}

	return parseFlatpakList(lines), nil
}

// parseFlatpakList parses "application, name, version, origin" rows, which are
// tab separated on current releases and padded with spaces on some older ones.
func parseFlatpakList(lines []string) []applister.InventoryEntry {
	var out []applister.InventoryEntry
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		parts := strings.Split(trimmed, "\t")
		if len(parts) < 2 {
			parts = multiSpace.Split(trimmed, -1)
		}
		if len(parts) < 2 {
			continue
		}

		appID := strings.TrimSpace(parts[0])
		name := strings.TrimSpace(parts[1])
		if name == "" {
			name = appID
		}

		entry := applister.InventoryEntry{
			Name:       name,
			Source:     applister.SourceFlatpak,
			Identifier: appID,
		}
		if len(parts) >= 3 {
			entry.Version = strings.TrimSpace(parts[2])
		}
		if len(parts) >= 4 {
			entry.Origin = strings.TrimSpace(parts[3])
		}
		out = append(out, entry)
	}
	return out
}
