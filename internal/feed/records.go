// Package feed provides the threat feed clients: the hosted Supabase table,
// a local JSON file and a disabled feed.
package feed

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"applister/internal/applister"
)

// threatRow is the wire form shared by every feed.
type threatRow struct {
	TargetApp   string `json:"target_app"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	URL         string `json:"url"`
}

// decodeThreats reads a JSON array of threat rows. Rows without a target app
// or a title cannot be matched or shown and are dropped.
func decodeThreats(r io.Reader) ([]applister.ThreatRecord, error) {
	var rows []threatRow
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding threat list: %w", err)
	}

	records := make([]applister.ThreatRecord, 0, len(rows))
	for _, row := range rows {
		target := strings.TrimSpace(row.TargetApp)
		title := strings.TrimSpace(row.Title)
		if target == "" || title == "" {
			continue
		}
		records = append(records, applister.ThreatRecord{
			TargetApp:   target,
			Title:       title,
			Description: strings.TrimSpace(row.Description),
			Severity:    applister.ParseSeverity(row.Severity),
			URL:         strings.TrimSpace(row.URL),
		})
	}
	return records, nil
}
