// Package export provides the report sinks: a local directory, an S3 bucket
// and an in-memory sink for tests.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"applister/internal/applister"
)

// FileSystemSink writes reports below a root directory. Keys map to relative
// paths, so "host/20240115T103000Z-id.json" lands in <root>/host/.
type FileSystemSink struct {
	root string
}

var _ applister.ReportSink = (*FileSystemSink)(nil)

// NewFileSystemSink creates the root directory if needed.
func NewFileSystemSink(root string) (*FileSystemSink, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	return &FileSystemSink{root: root}, nil
}

func (s *FileSystemSink) Name() string { return "filesystem" }

// Root returns the directory reports are written to.
func (s *FileSystemSink) Root() string { return s.root }

func (s *FileSystemSink) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	destPath, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0700); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	return writeFile(destPath, r, size)
}

// pathFor rejects keys that would escape the root.
func (s *FileSystemSink) pathFor(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid report key: %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

// writeFile writes data from r to destPath using atomic write (temp file + rename).
func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Create temp file in the same directory to ensure atomic rename works
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
