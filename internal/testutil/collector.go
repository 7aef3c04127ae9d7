package testutil

import (
	"context"

	"applister/internal/applister"
)

// StubCollector is an applister.Collector returning fixed entries or a fixed error.
type StubCollector struct {
	Src     applister.Source
	Entries []applister.InventoryEntry
	Err     error
	Panic   any
	Calls   int
}

func (c *StubCollector) Source() applister.Source { return c.Src }

func (c *StubCollector) Collect(ctx context.Context) ([]applister.InventoryEntry, error) {
	c.Calls++
	if c.Panic != nil {
		panic(c.Panic)
	}
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Entries, nil
}

// Entry builds an InventoryEntry for tests.
func Entry(name string, source applister.Source, version string) applister.InventoryEntry {
	return applister.InventoryEntry{Name: name, Source: source, Identifier: name, Version: version}
}
