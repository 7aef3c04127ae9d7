package feed

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"

	"applister/internal/applister"
	"applister/internal/config"
)

// NewFeedFromConfig creates a ThreatFeed based on the feed config type.
// getenv is consulted before the optional dotenv file; pass os.Getenv outside tests.
func NewFeedFromConfig(cfg config.FeedConfig, getenv func(string) string, logger applister.Logger) (applister.ThreatFeed, error) {
	switch cfg.Type {
	case "supabase":
		env, err := loadEnv(cfg.EnvFile, getenv)
		if err != nil {
			return nil, err
		}
		url := cfg.URL
		if url == "" && cfg.URLEnv != "" {
			url = env(cfg.URLEnv)
		}
		var key string
		if cfg.KeyEnv != "" {
			key = env(cfg.KeyEnv)
		}
		return NewSupabaseFeed(SupabaseOptions{
			URL:      url,
			APIKey:   key,
			Timeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
			RetryMax: cfg.RetryMax,
			Logger:   logger,
		}), nil
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("path required for file feed")
		}
		return NewFileFeed(cfg.Path), nil
	case "none":
		return NoFeed{}, nil
	default:
		return nil, fmt.Errorf("unknown feed type: %s", cfg.Type)
	}
}

// loadEnv returns a lookup that prefers getenv and falls back to the
// variables in envFile. A missing envFile is not an error.
func loadEnv(envFile string, getenv func(string) string) (func(string) string, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if envFile == "" {
		return getenv, nil
	}

	vars, err := godotenv.Read(envFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return getenv, nil
		}
		return nil, fmt.Errorf("reading env file %s: %w", envFile, err)
	}

	return func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return vars[key]
	}, nil
}
