package applister

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Report is the document written by Export.
type Report struct {
	Host        string           `json:"host"`
	GeneratedAt time.Time        `json:"generated_at"`
	Metadata    *ScanMetadata    `json:"metadata,omitempty"`
	ScanAge     string           `json:"scan_age,omitempty"`
	Apps        []InventoryEntry `json:"apps"`
	Threats     []ThreatRecord   `json:"threats,omitempty"`
}

// Export writes the stored inventory and the given threat matches to the report
// sink, encrypting it when an encryptor is configured. It returns the report key.
func (s *Service) Export(ctx context.Context, host string, threats []ThreatRecord) (string, error) {
	if s.sink == nil {
		return "", fmt.Errorf("no report sink configured")
	}

	apps, err := s.store.AllApps()
	if err != nil {
		return "", fmt.Errorf("reading cached inventory: %w", err)
	}
	meta, err := s.store.ScanMetadata()
	if err != nil {
		return "", fmt.Errorf("reading scan metadata: %w", err)
	}

	now := s.clock.Now().UTC()
	report := Report{
		Host:        host,
		GeneratedAt: now,
		Metadata:    meta,
		Apps:        apps,
		Threats:     threats,
	}
	if age := s.scanAge(meta); age > 0 {
		report.ScanAge = age.Truncate(time.Second).String()
	}
	if report.Apps == nil {
		report.Apps = []InventoryEntry{}
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}

	key := fmt.Sprintf("%s/%s-%s.json", host, now.Format("20060102T150405Z"), s.idgen.New())
	if s.encryptor != nil {
		var buf bytes.Buffer
		if err := s.encryptor.Encrypt(bytes.NewReader(data), &buf); err != nil {
			return "", fmt.Errorf("encrypting report: %w", err)
		}
		data = buf.Bytes()
		key += s.encryptor.Extension()
	}

	if err := s.sink.Put(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return "", fmt.Errorf("writing report to %s: %w", s.sink.Name(), err)
	}

	s.logger.Info("report exported", "sink", s.sink.Name(), "key", key, "apps", len(apps), "threats", len(threats))
	return key, nil
}
