package collectors

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"applister/internal/applister"
)

// UninstallRoots are the registry keys listing installed programs: machine-wide,
// 32-bit programs on 64-bit Windows, and per-user.
var UninstallRoots = []string{
	`HKLM\SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`,
	`HKLM\SOFTWARE\WOW6432Node\Microsoft\Windows\CurrentVersion\Uninstall`,
	`HKCU\SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`,
}

// DefaultExcludePatterns match updates, hotfixes, runtimes and SDKs that are
// registered as programs but are not user-facing applications.
var DefaultExcludePatterns = []string{
	`^update for`,
	`^security update`,
	`kb\d+`,
	`microsoft visual c\+\+.*redistributable`,
	`redistributable.*microsoft visual c\+\+`,
	`microsoft \.net`,
	`\.net framework`,
	`windows software development kit`,
	`microsoft sdk`,
	`windows driver`,
}

// NameFilter rejects display names matching any of its patterns (case-insensitive).
type NameFilter struct {
	patterns []*regexp.Regexp
}

// NewNameFilter compiles patterns. An empty list yields a filter built from
// DefaultExcludePatterns.
func NewNameFilter(patterns []string) (*NameFilter, error) {
	if len(patterns) == 0 {
		patterns = DefaultExcludePatterns
	}
	f := &NameFilter{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compiling exclude pattern %q: %w", p, err)
		}
		f.patterns = append(f.patterns, re)
	}
	return f, nil
}

// Excludes reports whether name matches any pattern.
func (f *NameFilter) Excludes(name string) bool {
	for _, re := range f.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// RegistryCollector lists Windows programs from the uninstall registry keys
// using reg.exe.
type RegistryCollector struct {
	runner  applister.CommandRunner
	goos    string
	timeout time.Duration
	filter  *NameFilter
	roots   []string
	logger  applister.Logger
}

var _ applister.Collector = (*RegistryCollector)(nil)

func NewRegistryCollector(runner applister.CommandRunner, goos string, timeout time.Duration, filter *NameFilter, logger applister.Logger) *RegistryCollector {
	return &RegistryCollector{
		runner:  runner,
		goos:    goos,
		timeout: timeout,
		filter:  filter,
		roots:   UninstallRoots,
		logger:  logger,
	}
}

func (c *RegistryCollector) Source() applister.Source { return applister.SourceRegistry }

func (c *RegistryCollector) Collect(ctx context.Context) ([]applister.InventoryEntry, error) {
	if c.goos != "windows" {
		return nil, nil
	}

	var out []applister.InventoryEntry
	for _, root := range c.roots {
		entries, err := c.readUninstallKey(ctx, root)
		if err != nil {
			c.logger.Warn("reading uninstall key failed", "key", root, "error", err)
			continue
		}
		c.logger.Debug("read uninstall key", "key", root, "entries", len(entries))
		out = append(out, entries...)
	}
	return out, nil
}

func (c *RegistryCollector) readUninstallKey(ctx context.Context, root string) ([]applister.InventoryEntry, error) {
	lines, err := c.runner.RunLines(ctx, c.timeout, "reg", "query", root)
	if err != nil {
		return nil, err
	}

	var out []applister.InventoryEntry
	for _, subkey := range subkeysOf(root, lines) {
		if entry, ok := c.readApp(ctx, subkey); ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (c *RegistryCollector) readApp(ctx context.Context, subkey string) (applister.InventoryEntry, bool) {
	name, ok := c.value(ctx, subkey, "DisplayName")
	if !ok || name == "" {
		return applister.InventoryEntry{}, false
	}
	if c.isSystemComponent(ctx, subkey) || c.filter.Excludes(name) {
		return applister.InventoryEntry{}, false
	}

	version, _ := c.value(ctx, subkey, "DisplayVersion")
	return applister.InventoryEntry{
		Name:    name,
		Source:  applister.SourceRegistry,
		Version: version,
	}, true
}

func (c *RegistryCollector) isSystemComponent(ctx context.Context, subkey string) bool {
	v, ok := c.value(ctx, subkey, "SystemComponent")
	return ok && strings.Contains(v, "0x1")
}

// value reads one registry value. Missing values make reg.exe exit non-zero,
// which is reported as absent.
func (c *RegistryCollector) value(ctx context.Context, subkey, name string) (string, bool) {
	lines, err := c.runner.RunLines(ctx, c.timeout, "reg", "query", subkey, "/v", name)
	if err != nil {
		return "", false
	}
	return parseRegValue(lines, name)
}

var hiveAbbreviations = map[string]string{
	"HKLM": "HKEY_LOCAL_MACHINE",
	"HKCU": "HKEY_CURRENT_USER",
	"HKCR": "HKEY_CLASSES_ROOT",
	"HKU":  "HKEY_USERS",
}

// expandHive rewrites a leading hive abbreviation to the long form reg.exe prints.
func expandHive(key string) string {
	hive, rest, _ := strings.Cut(key, `\`)
	if long, ok := hiveAbbreviations[strings.ToUpper(hive)]; ok {
		return long + `\` + rest
	}
	return key
}

// subkeysOf returns the lines of a "reg query <root>" listing that name keys
// strictly below root. reg.exe prints hives in long form, so both forms are accepted.
func subkeysOf(root string, lines []string) []string {
	prefixes := []string{strings.ToLower(root) + `\`, strings.ToLower(expandHive(root)) + `\`}

	var out []string
	for _, line := range lines {
		key := strings.TrimSpace(line)
		lower := strings.ToLower(key)
		for _, p := range prefixes {
			if strings.HasPrefix(lower, p) && len(lower) > len(p) {
				out = append(out, key)
				break
			}
		}
	}
	return out
}

// parseRegValue extracts the data of value name from "reg query /v" output,
// whose value lines look like "    DisplayName    REG_SZ    Acme Editor".
func parseRegValue(lines []string, name string) (string, bool) {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, name) {
			continue
		}
		rest := trimmed[len(name):]
		if rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
			continue
		}
		rest = strings.TrimLeft(rest, " \t")
		typ, data := rest, ""
		if sep := strings.IndexAny(rest, " \t"); sep >= 0 {
			typ, data = rest[:sep], rest[sep+1:]
		}
		if !strings.HasPrefix(typ, "REG_") {
			continue
		}
		return strings.TrimSpace(data), true
	}
	return "", false
}
