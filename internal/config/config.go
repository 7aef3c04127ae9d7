package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for applister.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	LogLevel   string           `toml:"log_level"` // "debug", "info" (default), "warn" or "error"
	Database   DatabaseConfig   `toml:"database"`
	Scan       ScanConfig       `toml:"scan"`
	Collectors CollectorsConfig `toml:"collectors"`
	Feed       FeedConfig       `toml:"feed"`
	Export     ExportConfig     `toml:"export"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// DatabaseConfig represents configuration for the inventory database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ScanConfig holds the freshness windows.
type ScanConfig struct {
	IntervalHours            int `toml:"interval_hours"`
	ThreatCheckIntervalHours int `toml:"threat_check_interval_hours"`
}

// CollectorsConfig selects and tunes the inventory sources.
type CollectorsConfig struct {
	// Enabled lists source tags in the order they run.
	Enabled               []string       `toml:"enabled"`
	DefaultTimeoutSeconds int            `toml:"default_timeout_seconds"`
	AptTimeoutSeconds     int            `toml:"apt_timeout_seconds"`
	Desktop               DesktopConfig  `toml:"desktop"`
	Registry              RegistryConfig `toml:"registry"`
}

// DesktopConfig holds desktop-entry search settings.
type DesktopConfig struct {
	ExtraDirs []string `toml:"extra_dirs"`

	// Exclude holds shell globs for launcher files to skip; see collectors.GlobMatcher.
	Exclude []string `toml:"exclude"`
}

// RegistryConfig holds Windows registry collector settings.
type RegistryConfig struct {
	// ExcludePatterns are case-insensitive regular expressions; empty means the built-in list.
	ExcludePatterns []string `toml:"exclude_patterns"`
}

// FeedConfig represents configuration for the threat feed.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type FeedConfig struct {
	Type string `toml:"type"` // "supabase", "file" or "none"

	// Supabase-specific fields (only used when Type == "supabase")
	URL            string `toml:"url,omitempty"`
	URLEnv         string `toml:"url_env,omitempty"`
	KeyEnv         string `toml:"key_env,omitempty"`
	EnvFile        string `toml:"env_file,omitempty"`
	TimeoutSeconds int    `toml:"timeout_seconds,omitempty"`
	RetryMax       int    `toml:"retry_max,omitempty"`

	// File-specific fields (only used when Type == "file")
	Path string `toml:"path,omitempty"`
}

// ExportConfig represents configuration for the report sink.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ExportConfig struct {
	Type    string `toml:"type"` // "filesystem", "s3", "memory" or "" (disabled)
	Encrypt bool   `toml:"encrypt"`

	// Filesystem-specific fields (only used when Type == "filesystem")
	Root string `toml:"root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"`

	// S3PathStyle addresses buckets as <endpoint>/<bucket>, as MinIO and most
	// S3-compatible stores require.
	S3PathStyle bool `toml:"s3_path_style,omitempty"`

	// Names of environment variables holding static credentials. When unset the
	// default AWS credential chain is used.
	S3AccessKeyEnv string `toml:"s3_access_key_env,omitempty"`
	S3SecretKeyEnv string `toml:"s3_secret_key_env,omitempty"`
}

// EncryptionConfig describes who can read encrypted reports.
type EncryptionConfig struct {
	// The host key pair created by 'applister keys init'.
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`

	// Recipients are extra age public keys every report is also encrypted to.
	Recipients []string `toml:"recipients,omitempty"`

	// Armor writes reports as PEM-style text instead of binary.
	Armor bool `toml:"armor,omitempty"`
}

// DefaultEnabled is the default source order.
var DefaultEnabled = []string{"snap", "flatpak", "apt", "desktop", "windows-registry"}

const (
	DefaultScanIntervalHours        = 20
	DefaultThreatCheckIntervalHours = 5
	DefaultCommandTimeoutSeconds    = 10
	DefaultAptTimeoutSeconds        = 20
	DefaultFeedTimeoutSeconds       = 10
	DefaultFeedRetryMax             = 2
)

// NewConfig creates a new Config with defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	cfg := &Config{BaseDir: baseDir}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills every unset field. Paths are derived from BaseDir.
func (c *Config) SetDefaults() {
	if c.LogDir == "" && c.BaseDir != "" {
		c.LogDir = filepath.Join(c.BaseDir, "log")
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type == "sqlite" && c.Database.DataDir == "" {
		c.Database.DataDir = c.BaseDir
	}
	if c.Scan.IntervalHours == 0 {
		c.Scan.IntervalHours = DefaultScanIntervalHours
	}
	if c.Scan.ThreatCheckIntervalHours == 0 {
		c.Scan.ThreatCheckIntervalHours = DefaultThreatCheckIntervalHours
	}
	if len(c.Collectors.Enabled) == 0 {
		c.Collectors.Enabled = append([]string(nil), DefaultEnabled...)
	}
	if c.Collectors.DefaultTimeoutSeconds == 0 {
		c.Collectors.DefaultTimeoutSeconds = DefaultCommandTimeoutSeconds
	}
	if c.Collectors.AptTimeoutSeconds == 0 {
		c.Collectors.AptTimeoutSeconds = DefaultAptTimeoutSeconds
	}
	if c.Feed.Type == "" {
		c.Feed.Type = "supabase"
	}
	if c.Feed.Type == "supabase" {
		if c.Feed.URLEnv == "" {
			c.Feed.URLEnv = "SUPABASE_URL"
		}
		if c.Feed.KeyEnv == "" {
			c.Feed.KeyEnv = "SUPABASE_ANON_KEY"
		}
		if c.Feed.EnvFile == "" && c.BaseDir != "" {
			c.Feed.EnvFile = filepath.Join(c.BaseDir, ".env")
		}
	}
	if c.Feed.TimeoutSeconds == 0 {
		c.Feed.TimeoutSeconds = DefaultFeedTimeoutSeconds
	}
	if c.Feed.RetryMax == 0 {
		c.Feed.RetryMax = DefaultFeedRetryMax
	}
	if c.Export.Type == "filesystem" && c.Export.Root == "" && c.BaseDir != "" {
		c.Export.Root = filepath.Join(c.BaseDir, "reports")
	}
	if c.Encryption.PublicKeyPath == "" && c.BaseDir != "" {
		c.Encryption.PublicKeyPath = filepath.Join(c.BaseDir, "keys", "applister.pub")
	}
	if c.Encryption.PrivateKeyPath == "" && c.BaseDir != "" {
		c.Encryption.PrivateKeyPath = filepath.Join(c.BaseDir, "keys", "applister.key")
	}
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Scan.IntervalHours < 0 || c.Scan.ThreatCheckIntervalHours < 0 {
		return fmt.Errorf("scan intervals must not be negative")
	}
	if c.Collectors.DefaultTimeoutSeconds < 0 || c.Collectors.AptTimeoutSeconds < 0 {
		return fmt.Errorf("collector timeouts must not be negative")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %q", c.LogLevel)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader. Defaults are not applied.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads the config at path and applies defaults, using baseDir when the
// file does not set base_dir. A missing file yields NewConfig(baseDir).
func Load(path, baseDir string) (*Config, error) {
	cfg, err := ReadFromFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg = &Config{}
	}
	if cfg.BaseDir == "" {
		cfg.BaseDir = baseDir
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
