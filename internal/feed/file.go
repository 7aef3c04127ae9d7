package feed

import (
	"context"
	"fmt"
	"os"

	"applister/internal/applister"
)

// FileFeed reads threats from a local JSON file, for offline hosts and mirrors
// of the hosted feed. The file holds an array of rows with the same fields as
// the hosted table.
type FileFeed struct {
	path string
}

var _ applister.ThreatFeed = (*FileFeed)(nil)

func NewFileFeed(path string) *FileFeed {
	return &FileFeed{path: path}
}

func (f *FileFeed) Name() string { return "file" }

func (f *FileFeed) FetchThreats(ctx context.Context) ([]applister.ThreatRecord, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("opening threat file: %w: %w", applister.ErrFeedUnavailable, err)
	}
	defer file.Close()

	records, err := decodeThreats(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", f.path, applister.ErrFeedUnavailable, err)
	}
	return records, nil
}

// NoFeed is the feed used when threat checking is disabled.
type NoFeed struct{}

var _ applister.ThreatFeed = NoFeed{}

func (NoFeed) Name() string { return "none" }

func (NoFeed) FetchThreats(ctx context.Context) ([]applister.ThreatRecord, error) {
	return nil, fmt.Errorf("threat feed disabled: %w", applister.ErrFeedUnavailable)
}
