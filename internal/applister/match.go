package applister

import "strings"

// MatchThreats returns the feed records whose target app matches at least one
// inventory entry. A record matches when the lower-cased names are equal or one
// contains the other, so short targets such as "oo" match "Doom"; recall is
// preferred over precision. Each record appears at most once, in feed order.
// Records with a blank target never match.
func MatchThreats(inventory []InventoryEntry, feed []ThreatRecord) []ThreatRecord {
	names := make([]string, 0, len(inventory))
	for _, e := range inventory {
		names = append(names, strings.ToLower(e.Name))
	}

	var matched []ThreatRecord
	for _, threat := range feed {
		target := strings.ToLower(threat.TargetApp)
		if strings.TrimSpace(target) == "" {
			continue
		}
		for _, name := range names {
			if nameMatches(name, target) {
				matched = append(matched, threat)
				break
			}
		}
	}
	return matched
}

func nameMatches(name, target string) bool {
	if name == "" {
		return false
	}
	return name == target || strings.Contains(name, target) || strings.Contains(target, name)
}
