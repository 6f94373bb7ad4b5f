// Package config loads the activator's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/logandonley/font-activator/internal/store"
)

// AppDirName is the directory under the user config dir holding all state.
const AppDirName = "font-activator"

// Config holds all activator configuration.
type Config struct {
	// Store selects where the activation registry is persisted
	Store StoreConfig `yaml:"store"`

	// HoldingDir receives deactivated fonts
	HoldingDir string `yaml:"holding_dir"`

	// LibraryDir receives imported fonts
	LibraryDir string `yaml:"library_dir"`

	Notify NotifyConfig `yaml:"notify"`

	// Parallelism bounds concurrent activations in batch commands
	Parallelism int `yaml:"parallelism"`

	Log LogConfig `yaml:"log"`

	dataDir string
}

// StoreConfig configures the key-value store.
type StoreConfig struct {
	Backend string `yaml:"backend"` // json, sqlite, memory
	Path    string `yaml:"path"`
}

// NotifyConfig bounds the external commands run after a font moves.
type NotifyConfig struct {
	Timeout string `yaml:"timeout"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DataDir returns the per-user directory for state, falling back to the
// temp dir when no config dir can be determined.
func DataDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, AppDirName)
	}
	return filepath.Join(os.TempDir(), AppDirName)
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DataDir(), "config.yaml")
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: store.BackendJSON,
		},
		Notify: NotifyConfig{
			Timeout: "15s",
		},
		Parallelism: 4,
		Log: LogConfig{
			Level: "info",
		},
		dataDir: DataDir(),
	}
}

// Load reads configuration from a YAML file, applies environment overrides
// and fills derived paths. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	return LoadWithDataDir(path, DataDir())
}

// LoadWithDataDir is Load with derived paths rooted at dataDir.
func LoadWithDataDir(path, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.dataDir = dataDir

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FA_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("FA_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("FA_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("FA_NOTIFY_TIMEOUT"); v != "" {
		c.Notify.Timeout = v
	}
	if v := os.Getenv("FA_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Parallelism = n
		}
	}
}

func (c *Config) fillDefaults() {
	if c.dataDir == "" {
		c.dataDir = DataDir()
	}
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = store.BackendJSON
	}
	if c.Store.Path == "" && c.Store.Backend != store.BackendMemory {
		c.Store.Path = store.DefaultPath(c.Store.Backend, c.dataDir)
	}
	if c.HoldingDir == "" {
		c.HoldingDir = filepath.Join(c.dataDir, "holding")
	}
	if c.LibraryDir == "" {
		c.LibraryDir = filepath.Join(c.dataDir, "library")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case store.BackendJSON, store.BackendSQLite, store.BackendMemory:
	default:
		return fmt.Errorf("invalid store backend %q (want json, sqlite or memory)", c.Store.Backend)
	}

	if _, err := c.NotifyTimeout(); err != nil {
		return err
	}

	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive, got %d", c.Parallelism)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return nil
}

// NotifyTimeout returns the parsed notification timeout.
func (c *Config) NotifyTimeout() (time.Duration, error) {
	if c.Notify.Timeout == "" {
		return 15 * time.Second, nil
	}
	d, err := time.ParseDuration(c.Notify.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid notify timeout %q: %w", c.Notify.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("notify timeout must be positive, got %s", d)
	}
	return d, nil
}
