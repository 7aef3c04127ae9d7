package applister

import (
	"context"
	"io"
)

// ThreatFeed fetches the current list of known-vulnerable applications.
// Implementations return an error wrapping ErrFeedUnavailable when the feed
// cannot be reached or is not configured.
type ThreatFeed interface {
	Name() string
	FetchThreats(ctx context.Context) ([]ThreatRecord, error)
}

// ReportSink stores exported inventory reports.
type ReportSink interface {
	Name() string

	// Put stores size bytes read from r under key. Writing the same key twice replaces it.
	Put(ctx context.Context, key string, r io.Reader, size int64) error
}

// Encryptor encrypts exported reports.
type Encryptor interface {
	// Setup generates key material protected by passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// IsConfigured reports whether key material exists.
	IsConfigured() bool

	// Extension is appended to report keys written through this encryptor.
	Extension() string
}
