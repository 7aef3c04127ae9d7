package collectors

import (
	"path/filepath"
	"strings"
)

type globPattern struct {
	pattern   string
	matchPath bool // against the path relative to the search dir, else the basename
}

// GlobMatcher excludes launcher files by shell glob.
// Patterns without '/' match the file's basename only. Patterns with '/' match
// the path relative to the search directory the file was found in.
type GlobMatcher struct {
	patterns []globPattern
}

// NewGlobMatcher creates a GlobMatcher. Blank lines and lines starting with
// '#' are skipped.
func NewGlobMatcher(rawPatterns []string) *GlobMatcher {
	var patterns []globPattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		patterns = append(patterns, globPattern{
			pattern:   raw,
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &GlobMatcher{patterns: patterns}
}

// Match reports whether relativePath is excluded. A nil matcher excludes nothing.
func (m *GlobMatcher) Match(relativePath string) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}

	normalized := filepath.ToSlash(relativePath)
	basename := filepath.Base(relativePath)

	for _, p := range m.patterns {
		subject := basename
		if p.matchPath {
			subject = normalized
		}
		// filepath.Match only fails on malformed patterns; those never match.
		if matched, err := filepath.Match(p.pattern, subject); err == nil && matched {
			return true
		}
	}
	return false
}
