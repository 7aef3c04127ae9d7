package collectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"applister/internal/applister"
)

// AptCollector lists Debian/Ubuntu packages through dpkg-query.
//
// When apt-mark is available its "showmanual" set restricts the listing to
// packages the user asked for, so dependencies are not reported as apps. If
// apt-mark is missing or fails, every installed package is listed.
type AptCollector struct {
	runner      applister.CommandRunner
	listTimeout time.Duration
	markTimeout time.Duration
	logger      applister.Logger
}

var _ applister.Collector = (*AptCollector)(nil)

// NewAptCollector creates an AptCollector. listTimeout bounds dpkg-query and
// markTimeout bounds apt-mark.
func NewAptCollector(runner applister.CommandRunner, listTimeout, markTimeout time.Duration, logger applister.Logger) *AptCollector {
	return &AptCollector{
		runner:      runner,
		listTimeout: listTimeout,
		markTimeout: markTimeout,
		logger:      logger,
	}
}

func (c *AptCollector) Source() applister.Source { return applister.SourceApt }

func (c *AptCollector) Collect(ctx context.Context) ([]applister.InventoryEntry, error) {
	if !c.runner.IsToolAvailable("dpkg-query") {
		return nil, nil
	}

	manual := c.manualPackages(ctx)

	lines, err := c.runner.RunLines(ctx, c.listTimeout, "dpkg-query", "-W", "-f=${Package}\\t${Version}\\n")
	if err != nil {
		return nil, fmt.Errorf("listing packages: %w", err)
	}

	return parseDpkgQuery(lines, manual), nil
}

// manualPackages returns the lower-cased manually installed packages, or an
// empty set when apt-mark cannot tell.
func (c *AptCollector) manualPackages(ctx context.Context) map[string]struct{} {
	if !c.runner.IsToolAvailable("apt-mark") {
		return nil
	}

	lines, err := c.runner.RunLines(ctx, c.markTimeout, "apt-mark", "showmanual")
	if err != nil {
		c.logger.Debug("apt-mark failed, listing all packages", "error", err)
		return nil
	}

	pkgs := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		pkg := strings.ToLower(strings.TrimSpace(line))
		if pkg != "" {
			pkgs[pkg] = struct{}{}
		}
	}
	return pkgs
}

// parseDpkgQuery parses "package<TAB>version" lines. A non-empty manual set
// filters the result to its members.
func parseDpkgQuery(lines []string, manual map[string]struct{}) []applister.InventoryEntry {
	var out []applister.InventoryEntry
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		pkg, version, _ := strings.Cut(trimmed, "\t")
		pkg = strings.TrimSpace(pkg)
		if pkg == "" {
			continue
		}

		if len(manual) > 0 {
			if _, ok := manual[pkg]; !ok {
				continue
			}
		}

		out = append(out, applister.InventoryEntry{
			Name:       pkg,
			Source:     applister.SourceApt,
			Identifier: pkg,
			Version:    strings.TrimSpace(version),
		})
	}
	return out
}
