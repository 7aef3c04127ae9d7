package applister

import (
	"sort"
	"strings"
)

// SourceGroup is the de-duplicated entries of one source.
type SourceGroup struct {
	Source  Source
	Entries []InventoryEntry
}

// GroupAndDedup partitions entries by source, keeping the order in which sources
// were first seen. Each group is sorted by case-insensitive name and reduced to
// one entry per trimmed, case-insensitive name; entries with a blank name are dropped.
func GroupAndDedup(entries []InventoryEntry) []SourceGroup {
	var groups []SourceGroup
	index := make(map[Source]int)

	for _, e := range entries {
		i, ok := index[e.Source]
		if !ok {
			i = len(groups)
			index[e.Source] = i
			groups = append(groups, SourceGroup{Source: e.Source})
		}
		groups[i].Entries = append(groups[i].Entries, e)
	}

	for i := range groups {
		sorted := groups[i].Entries
		sort.SliceStable(sorted, func(a, b int) bool {
			return strings.ToLower(sorted[a].Name) < strings.ToLower(sorted[b].Name)
		})
		groups[i].Entries = dedupByName(sorted)
	}

	return groups
}

// dedupByName keeps the first entry for each normalized name.
func dedupByName(sorted []InventoryEntry) []InventoryEntry {
	seen := make(map[string]struct{}, len(sorted))
	out := make([]InventoryEntry, 0, len(sorted))
	for _, e := range sorted {
		key := normalizeName(e.Name)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
