package export

import (
	"context"
	"fmt"
	"os"

	"applister/internal/applister"
	"applister/internal/config"
)

// NewSinkFromConfig creates a ReportSink based on the export config type.
// An empty type disables export and returns nil.
func NewSinkFromConfig(ctx context.Context, cfg config.ExportConfig, getenv func(string) string) (applister.ReportSink, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	switch cfg.Type {
	case "":
		return nil, nil
	case "memory":
		return NewMemorySink(), nil
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem export requires root to be set")
		}
		return NewFileSystemSink(cfg.Root)
	case "s3":
		opts := S3Options{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		}
		if cfg.S3AccessKeyEnv != "" {
			opts.AccessKey = getenv(cfg.S3AccessKeyEnv)
		}
		if cfg.S3SecretKeyEnv != "" {
			opts.SecretKey = getenv(cfg.S3SecretKeyEnv)
		}
		return NewS3Sink(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown export type: %s", cfg.Type)
	}
}
