package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root server configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server   ServerConfig          `yaml:"server"`
	Database DatabaseConfig        `yaml:"database"`
	Auth     AuthConfig            `yaml:"auth"`
	Sync     SyncConfig            `yaml:"sync"`
	Worker   WorkerConfig          `yaml:"worker"`
	Log      LogConfig             `yaml:"log"`
	Snapshot SnapshotStorageConfig `yaml:"snapshot"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig contains authentication settings. Secrets are env-only.
type AuthConfig struct {
	APIKey    string   `yaml:"-"`
	JWTSecret string   `yaml:"-"`
	TokenTTL  Duration `yaml:"token_ttl"`
}

// SyncConfig bounds the sync endpoints.
type SyncConfig struct {
	MaxMutations    int   `yaml:"max_mutations"`
	SuggestionLimit int   `yaml:"suggestion_limit"`
	MaxBodyBytes    int64 `yaml:"max_body_bytes"`
}

// WorkerConfig contains background worker settings. A zero interval
// disables the worker.
type WorkerConfig struct {
	CompactionInterval Duration `yaml:"compaction_interval"`
	ChangeLogRetention Duration `yaml:"change_log_retention"`
	SnapshotInterval   Duration `yaml:"snapshot_interval"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SnapshotStorageConfig controls where database snapshots are written and,
// when Bucket is set, uploaded.
type SnapshotStorageConfig struct {
	Dir       string   `yaml:"dir"`
	Bucket    string   `yaml:"bucket"`
	Prefix    string   `yaml:"prefix"`
	Endpoint  string   `yaml:"endpoint"`
	Region    string   `yaml:"region"`
	AccessKey string   `yaml:"access_key"`
	SecretKey string   `yaml:"-"`
	UseSSL    *bool    `yaml:"use_ssl"`
	URLExpiry Duration `yaml:"url_expiry"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("SHOPLIST_CONFIG_PATH", "config/shoplist.yaml")

	// Load YAML file if it exists (missing file is not an error)
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and when the caller names the file explicitly.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/shoplist.db",
		},
		Auth: AuthConfig{
			TokenTTL: Duration(720 * time.Hour),
		},
		Sync: SyncConfig{
			MaxMutations:    1000,
			SuggestionLimit: 50,
			MaxBodyBytes:    1 << 20,
		},
		Worker: WorkerConfig{
			CompactionInterval: Duration(1 * time.Hour),
			ChangeLogRetention: Duration(720 * time.Hour),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Snapshot: SnapshotStorageConfig{
			Dir:       "data/snapshots",
			Prefix:    "shoplist",
			URLExpiry: Duration(15 * time.Minute),
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("SHOPLIST_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	envDuration("SHOPLIST_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SHOPLIST_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("SHOPLIST_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Database
	if v := os.Getenv("SHOPLIST_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Auth
	if v := os.Getenv("SHOPLIST_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("SHOPLIST_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	envDuration("SHOPLIST_TOKEN_TTL", &cfg.Auth.TokenTTL)

	// Sync
	envInt("SHOPLIST_SYNC_MAX_MUTATIONS", &cfg.Sync.MaxMutations)
	envInt("SHOPLIST_SYNC_SUGGESTION_LIMIT", &cfg.Sync.SuggestionLimit)

	// Worker
	envDuration("SHOPLIST_COMPACTION_INTERVAL", &cfg.Worker.CompactionInterval)
	envDuration("SHOPLIST_CHANGE_LOG_RETENTION", &cfg.Worker.ChangeLogRetention)
	envDuration("SHOPLIST_SNAPSHOT_INTERVAL", &cfg.Worker.SnapshotInterval)

	// Log
	if v := os.Getenv("SHOPLIST_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SHOPLIST_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	// Snapshot storage
	if v := os.Getenv("SHOPLIST_SNAPSHOT_DIR"); v != "" {
		cfg.Snapshot.Dir = v
	}
	if v := os.Getenv("SHOPLIST_SNAPSHOT_BUCKET"); v != "" {
		cfg.Snapshot.Bucket = v
	}
	if v := os.Getenv("SHOPLIST_SNAPSHOT_PREFIX"); v != "" {
		cfg.Snapshot.Prefix = v
	}
	if v := os.Getenv("SHOPLIST_SNAPSHOT_ENDPOINT"); v != "" {
		cfg.Snapshot.Endpoint = v
	}
	if v := os.Getenv("SHOPLIST_SNAPSHOT_REGION"); v != "" {
		cfg.Snapshot.Region = v
	}
	if v := os.Getenv("SHOPLIST_SNAPSHOT_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.Snapshot.UseSSL = &useSSL
	}
	envDuration("SHOPLIST_SNAPSHOT_URL_EXPIRY", &cfg.Snapshot.URLExpiry)
	if v := os.Getenv("SHOPLIST_SNAPSHOT_ACCESS_KEY"); v != "" {
		cfg.Snapshot.AccessKey = v
	}
	if v := os.Getenv("SHOPLIST_SNAPSHOT_SECRET_KEY"); v != "" {
		cfg.Snapshot.SecretKey = v
	}
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// validate checks that required configuration values are set.
// In dev mode (SHOPLIST_DEV_MODE=true), credential validation is skipped.
func (c *Config) validate() error {
	if c.Sync.MaxMutations <= 0 {
		return errors.New("sync.max_mutations must be positive")
	}
	if c.Sync.SuggestionLimit <= 0 {
		return errors.New("sync.suggestion_limit must be positive")
	}
	if c.Sync.MaxBodyBytes <= 0 {
		return errors.New("sync.max_body_bytes must be positive")
	}
	if c.Snapshot.Bucket != "" && c.Snapshot.Endpoint == "" {
		return errors.New("snapshot.endpoint is required when snapshot.bucket is set")
	}

	if os.Getenv("SHOPLIST_DEV_MODE") == "true" {
		return nil
	}

	if c.Auth.APIKey == "" && c.Auth.JWTSecret == "" {
		return errors.New("SHOPLIST_API_KEY or SHOPLIST_JWT_SECRET is required")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
