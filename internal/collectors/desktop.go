package collectors

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"applister/internal/applister"
)

// DesktopEntryCollector reads freedesktop.org *.desktop launchers.
type DesktopEntryCollector struct {
	goos    string
	dirs    []string
	exclude *GlobMatcher
}

var _ applister.Collector = (*DesktopEntryCollector)(nil)

// NewDesktopEntryCollector creates a collector that walks dirs, skipping files
// matched by exclude (which may be nil).
// See DesktopSearchDirs for the standard search path.
func NewDesktopEntryCollector(goos string, dirs []string, exclude *GlobMatcher) *DesktopEntryCollector {
	return &DesktopEntryCollector{goos: goos, dirs: dirs, exclude: exclude}
}

// DesktopSearchDirs returns the application directories to search: every
// $XDG_DATA_DIRS entry (or /usr/share and /usr/local/share when unset), the
// Flatpak sandbox host view, the user's data dir, Snap and Flatpak export
// directories, then extra.
func DesktopSearchDirs(getenv func(string) string, extra []string) []string {
	var dirs []string

	if xdg := getenv("XDG_DATA_DIRS"); strings.TrimSpace(xdg) != "" {
		for _, dir := range strings.Split(xdg, ":") {
			if dir = strings.TrimSpace(dir); dir != "" {
				dirs = append(dirs, filepath.Join(dir, "applications"))
			}
		}
	} else {
		dirs = append(dirs, "/usr/share/applications", "/usr/local/share/applications")
	}

	dirs = append(dirs, "/run/host/usr/share/applications")

	home := strings.TrimSpace(getenv("HOME"))
	if home != "" {
		dirs = append(dirs, filepath.Join(home, ".local", "share", "applications"))
	}

	dirs = append(dirs,
		"/var/lib/snapd/desktop/applications",
		"/var/lib/flatpak/exports/share/applications",
	)
	if home != "" {
		dirs = append(dirs, filepath.Join(home, ".local", "share", "flatpak", "exports", "share", "applications"))
	}

	return append(dirs, extra...)
}

func (c *DesktopEntryCollector) Source() applister.Source { return applister.SourceDesktop }

func (c *DesktopEntryCollector) Collect(ctx context.Context) ([]applister.InventoryEntry, error) {
	if c.goos == "windows" {
		return nil, nil
	}

	var out []applister.InventoryEntry
	for _, root := range c.dirs {
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			continue
		}

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Unreadable subtree; keep walking the rest.
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".desktop") {
				return nil
			}
			if rel, err := filepath.Rel(root, path); err == nil && c.exclude.Match(rel) {
				return nil
			}
			if entry, ok := parseDesktopFile(path); ok {
				out = append(out, entry)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}
	return out, nil
}

// parseDesktopFile turns one launcher into an entry. It rejects unreadable
// files, non-Application types, hidden entries and entries without a Name.
func parseDesktopFile(path string) (applister.InventoryEntry, bool) {
	f, err := os.Open(path)
	if err != nil {
		return applister.InventoryEntry{}, false
	}
	defer f.Close()

	kv, err := ReadDesktopEntrySection(f)
	if err != nil {
		return applister.InventoryEntry{}, false
	}

	if !strings.EqualFold(kv["Type"], "Application") {
		return applister.InventoryEntry{}, false
	}
	if isTrue(kv["Hidden"]) {
		return applister.InventoryEntry{}, false
	}
	name := strings.TrimSpace(kv["Name"])
	if name == "" {
		return applister.InventoryEntry{}, false
	}

	return applister.InventoryEntry{
		Name:       name,
		Source:     applister.SourceDesktop,
		Identifier: filepath.Base(path),
		Origin:     strings.TrimSpace(kv["Exec"]),
	}, true
}

// ReadDesktopEntrySection returns the keys of the [Desktop Entry] group.
// Comments, other groups and localized keys such as Name[de] are ignored, and
// the first occurrence of a key wins.
func ReadDesktopEntrySection(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)
	inSection := false

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			inSection = strings.EqualFold(line, "[Desktop Entry]")
			continue
		}
		if !inSection {
			continue
		}

		eq := strings.Index(line, "=")
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		if strings.Contains(key, "[") {
			continue
		}
		if _, exists := out[key]; !exists {
			out[key] = strings.TrimSpace(line[eq+1:])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func isTrue(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
