package testutil

import (
	"context"
	"sync"

	"applister/internal/applister"
)

// StubFeed is an applister.ThreatFeed returning fixed records or a fixed error.
type StubFeed struct {
	mu      sync.Mutex
	records []applister.ThreatRecord
	err     error
	fetches int
}

func NewStubFeed(records ...applister.ThreatRecord) *StubFeed {
	return &StubFeed{records: records}
}

func (f *StubFeed) Name() string { return "stub" }

// SetRecords replaces the records returned by subsequent fetches.
func (f *StubFeed) SetRecords(records ...applister.ThreatRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = records
}

// SetError makes subsequent fetches fail with err; nil restores the records.
func (f *StubFeed) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Fetches returns how many times FetchThreats was called.
func (f *StubFeed) Fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *StubFeed) FetchThreats(ctx context.Context) ([]applister.ThreatRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return append([]applister.ThreatRecord(nil), f.records...), nil
}
