package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - APPLISTER_HOME: base directory for applister data (default: ~/.applister)
//   - APPLISTER_CONFIG_PATH: config file location (default: <base dir>/config.toml)
func GetDefaults() (map[string]string, error) {
	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	configPath := os.Getenv("APPLISTER_CONFIG_PATH")
	if configPath == "" {
		configPath = filepath.Join(baseDir, "config.toml")
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getBaseDir returns the base directory for applister data, checking
// APPLISTER_HOME first, then falling back to ~/.applister.
func getBaseDir() (string, error) {
	if path := os.Getenv("APPLISTER_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".applister"), nil
}
