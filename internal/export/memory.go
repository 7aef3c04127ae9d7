package export

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"applister/internal/applister"
)

// MemorySink keeps reports in memory. It is safe for concurrent use.
type MemorySink struct {
	mu      sync.RWMutex
	reports map[string][]byte
}

var _ applister.ReportSink = (*MemorySink)(nil)

func NewMemorySink() *MemorySink {
	return &MemorySink{reports: make(map[string][]byte)}
}

func (m *MemorySink) Name() string { return "memory" }

func (m *MemorySink) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[key] = data
	return nil
}

// Get returns the report stored under key.
func (m *MemorySink) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.reports[key]
	return data, ok
}

// Keys returns the stored keys in sorted order.
func (m *MemorySink) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.reports))
	for k := range m.reports {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
