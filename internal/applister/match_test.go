package applister_test

import (
	"testing"

	"applister/internal/applister"
	"applister/internal/testutil"
)

func threat(target, title string) applister.ThreatRecord {
	return applister.ThreatRecord{TargetApp: target, Title: title, Severity: applister.SeverityHigh}
}

func TestMatchThreats(t *testing.T) {
	tests := []struct {
		name      string
		inventory []string
		feed      []applister.ThreatRecord
		want      []string
	}{
		{
			name:      "exact match ignoring case",
			inventory: []string{"Firefox"},
			feed:      []applister.ThreatRecord{threat("firefox", "RCE")},
			want:      []string{"RCE"},
		},
		{
			name:      "target contained in name",
			inventory: []string{"Google Chrome"},
			feed:      []applister.ThreatRecord{threat("Chrome", "V8 bug")},
			want:      []string{"V8 bug"},
		},
		{
			name:      "name contained in target",
			inventory: []string{"Zoom"},
			feed:      []applister.ThreatRecord{threat("Zoomable Lens Pro", "Lens leak")},
			want:      []string{"Lens leak"},
		},
		{
			name:      "short target matches unrelated name",
			inventory: []string{"Doom"},
			feed:      []applister.ThreatRecord{threat("oo", "False positive")},
			want:      []string{"False positive"},
		},
		{
			name:      "no match",
			inventory: []string{"vim", "curl"},
			feed:      []applister.ThreatRecord{threat("Slack", "Token leak")},
			want:      nil,
		},
		{
			name:      "blank target never matches",
			inventory: []string{"vim"},
			feed:      []applister.ThreatRecord{threat("  ", "Blank")},
			want:      nil,
		},
		{
			name:      "each record reported once in feed order",
			inventory: []string{"Chrome", "Google Chrome", "Firefox"},
			feed: []applister.ThreatRecord{
				threat("firefox", "first"),
				threat("chrome", "second"),
			},
			want: []string{"first", "second"},
		},
		{
			name:      "empty inventory",
			inventory: nil,
			feed:      []applister.ThreatRecord{threat("firefox", "RCE")},
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var inv []applister.InventoryEntry
			for _, n := range tt.inventory {
				inv = append(inv, testutil.Entry(n, applister.SourceDesktop, ""))
			}

			got := applister.MatchThreats(inv, tt.feed)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d matches, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i].Title != tt.want[i] {
					t.Errorf("match %d = %q, want %q", i, got[i].Title, tt.want[i])
				}
			}
		})
	}
}

func TestParseSeverity(t *testing.T) {
	tests := map[string]applister.Severity{
		"critical": applister.SeverityCritical,
		"HIGH":     applister.SeverityHigh,
		" medium ": applister.SeverityMedium,
		"moderate": applister.SeverityMedium,
		"low":      applister.SeverityLow,
		"":         applister.SeverityUnknown,
		"severe":   applister.SeverityUnknown,
	}
	for in, want := range tests {
		if got := applister.ParseSeverity(in); got != want {
			t.Errorf("ParseSeverity(%q) = %q, want %q", in, got, want)
		}
	}

	if applister.SeverityCritical.Rank() <= applister.SeverityHigh.Rank() {
		t.Error("critical should outrank high")
	}
	if applister.SeverityUnknown.Rank() != 0 {
		t.Errorf("unknown rank = %d, want 0", applister.SeverityUnknown.Rank())
	}
}
