// Package config loads the client configuration from defaults, an optional
// config.yaml and NOTELOOM_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/and161185/noteloom/internal/syncer"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. NOTELOOM_BACKEND_URL.
const EnvPrefix = "NOTELOOM"

// Keys.
const (
	KeyBackendURL      = "backend_url"
	KeyBackendKey      = "backend_key"
	KeyBackendCAFile   = "backend_ca_file"
	KeyBackendInsecure = "backend_insecure"
	KeyDataDir         = "data_dir"
	KeyPollInterval    = "poll_interval"
	KeyDebounce        = "debounce"
	KeyLogLevel        = "log_level"
)

// Config is the resolved client configuration.
type Config struct {
	BackendURL      string
	BackendKey      string
	BackendCAFile   string
	BackendInsecure bool
	DataDir         string
	PollInterval    time.Duration
	Debounce        time.Duration
	LogLevel        string
}

// SyncEnabled reports whether a backend is configured. Without one the app is local-only.
func (c Config) SyncEnabled() bool { return c.BackendURL != "" && c.BackendKey != "" }

// DBPath is the local SQLite database.
func (c Config) DBPath() string { return filepath.Join(c.DataDir, "noteloom.db") }

// LegacyPath is the flat key-value file of earlier releases.
func (c Config) LegacyPath() string { return filepath.Join(c.DataDir, "legacy-storage.json") }

// Dir returns the default configuration directory.
func Dir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "noteloom")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "noteloom")
}

// Load reads config.yaml from dir (Dir() when empty). A missing file is not an error.
func Load(dir string) (Config, error) {
	if dir == "" {
		dir = Dir()
	}
	v := viper.New()
	v.SetDefault(KeyBackendURL, "")
	v.SetDefault(KeyBackendKey, "")
	v.SetDefault(KeyBackendCAFile, "")
	v.SetDefault(KeyBackendInsecure, false)
	v.SetDefault(KeyDataDir, dir)
	v.SetDefault(KeyPollInterval, syncer.DefaultPollInterval)
	v.SetDefault(KeyDebounce, syncer.DefaultDebounce)
	v.SetDefault(KeyLogLevel, "warn")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	c := Config{
		BackendURL:      v.GetString(KeyBackendURL),
		BackendKey:      v.GetString(KeyBackendKey),
		BackendCAFile:   v.GetString(KeyBackendCAFile),
		BackendInsecure: v.GetBool(KeyBackendInsecure),
		DataDir:         v.GetString(KeyDataDir),
		PollInterval:    v.GetDuration(KeyPollInterval),
		Debounce:        v.GetDuration(KeyDebounce),
		LogLevel:        v.GetString(KeyLogLevel),
	}
	if c.PollInterval <= 0 || c.Debounce <= 0 {
		return Config{}, fmt.Errorf("poll_interval and debounce must be positive")
	}
	return c, nil
}
