package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ClientEnvPrefix prefixes every client setting read from the environment,
// e.g. SHOPLIST_CLIENT_SERVER_URL.
const ClientEnvPrefix = "SHOPLIST_CLIENT"

// ClientConfig configures the shoplist client CLI and SDK.
type ClientConfig struct {
	ServerURL      string        `mapstructure:"server_url" yaml:"server_url"`
	Token          string        `mapstructure:"token" yaml:"token,omitempty"`
	LocalPath      string        `mapstructure:"local_path" yaml:"local_path"`
	ClientID       string        `mapstructure:"client_id" yaml:"client_id,omitempty"`
	SyncInterval   time.Duration `mapstructure:"sync_interval" yaml:"sync_interval"`
	ProbeInterval  time.Duration `mapstructure:"probe_interval" yaml:"probe_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	Offline        bool          `mapstructure:"offline" yaml:"offline"`
}

// DefaultClientConfigPath returns ~/.config/shoplist/client.yaml.
func DefaultClientConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "client.yaml")
	}
	return filepath.Join(home, ".config", "shoplist", "client.yaml")
}

// DefaultLocalPath returns ~/.local/share/shoplist/local.db.
func DefaultLocalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "local.db")
	}
	return filepath.Join(home, ".local", "share", "shoplist", "local.db")
}

func newClientViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(ClientEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Every key needs a default so env-only values reach Unmarshal.
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("token", "")
	v.SetDefault("local_path", DefaultLocalPath())
	v.SetDefault("client_id", "")
	v.SetDefault("sync_interval", 5*time.Second)
	v.SetDefault("probe_interval", 15*time.Second)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("offline", false)
	return v
}

// LoadClient reads the client configuration from path, layering
// SHOPLIST_CLIENT_* environment variables on top. A missing file is not an
// error.
func LoadClient(path string) (*ClientConfig, error) {
	if path == "" {
		path = DefaultClientConfigPath()
	}
	v := newClientViper(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading client config %s: %w", path, err)
		}
	}

	cfg := &ClientConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing client config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveClient writes cfg to path, creating parent directories. The token is
// written only when set; login normally keeps it in the keyring instead.
func SaveClient(path string, cfg *ClientConfig) error {
	if path == "" {
		path = DefaultClientConfigPath()
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server_url", cfg.ServerURL)
	v.Set("local_path", cfg.LocalPath)
	v.Set("sync_interval", cfg.SyncInterval.String())
	v.Set("probe_interval", cfg.ProbeInterval.String())
	v.Set("request_timeout", cfg.RequestTimeout.String())
	v.Set("offline", cfg.Offline)
	if cfg.ClientID != "" {
		v.Set("client_id", cfg.ClientID)
	}
	if cfg.Token != "" {
		v.Set("token", cfg.Token)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

func (c *ClientConfig) validate() error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return errors.New("server_url is required")
	}
	if c.LocalPath == "" {
		return errors.New("local_path is required")
	}
	if c.SyncInterval <= 0 {
		return errors.New("sync_interval must be positive")
	}
	if c.ProbeInterval <= 0 {
		return errors.New("probe_interval must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be positive")
	}
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
	return nil
}
