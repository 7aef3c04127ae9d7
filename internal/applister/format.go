package applister

import (
	"fmt"
	"slices"
	"strings"
)

// FormatInventory renders grouped entries as plain text:
//
//	<source> (<count>)
//	- <name> [<version>]
//
// Empty groups are omitted. When nothing is printed the result is "No apps found.\n".
func FormatInventory(groups []SourceGroup) string {
	var sb strings.Builder
	printed := 0
	for _, g := range groups {
		if len(g.Entries) == 0 {
			continue
		}
		printed++

		fmt.Fprintf(&sb, "%s (%d)\n", g.Source, len(g.Entries))
		for _, e := range g.Entries {
			sb.WriteString("- ")
			sb.WriteString(e.Name)
			if e.Version != "" {
				sb.WriteString(" ")
				sb.WriteString(e.Version)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	if printed == 0 {
		sb.WriteString("No apps found.\n")
	}
	return sb.String()
}

// FormatThreats renders matched threats as an alert block, most severe first;
// records of equal severity keep their feed order. It returns the empty string
// when there are no threats. icons selects emoji severity markers, which only
// make sense on a terminal.
func FormatThreats(threats []ThreatRecord, icons bool) string {
	if len(threats) == 0 {
		return ""
	}

	threats = slices.Clone(threats)
	slices.SortStableFunc(threats, func(a, b ThreatRecord) int {
		return b.Severity.Rank() - a.Severity.Rank()
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "!!! %d security alert(s) for installed apps !!!\n\n", len(threats))
	for _, t := range threats {
		marker := "[" + strings.ToUpper(t.Severity.String()) + "]"
		if icons {
			marker = severityIcon(t.Severity) + " " + marker
		}
		title := t.Title
		if title == "" {
			title = "Unknown Threat"
		}
		fmt.Fprintf(&sb, "%s %s\n", marker, title)
		fmt.Fprintf(&sb, "    App: %s\n", t.TargetApp)
		if t.Description != "" {
			fmt.Fprintf(&sb, "    %s\n", t.Description)
		}
		if t.URL != "" {
			fmt.Fprintf(&sb, "    %s\n", t.URL)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func severityIcon(s Severity) string {
	switch s {
	case SeverityCritical:
		return "🔴"
	case SeverityHigh:
		return "🟠"
	case SeverityMedium:
		return "🟡"
	case SeverityLow:
		return "🟢"
	default:
		return "⚠️"
	}
}
