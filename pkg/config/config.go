// Package config handles LocalPaste configuration.
//
// Settings come from an optional YAML file and environment variables, with
// the environment taking precedence, following the 12-factor methodology.
// Every knob has a default suitable for a single-user desktop install.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultPort             = 3030
	DefaultMaxPasteSize     = 10 << 20 // 10 MiB
	DefaultAutoSaveInterval = 2000 * time.Millisecond
)

// Config holds all application configuration.
type Config struct {
	// DBPath is the database directory.
	DBPath string `yaml:"db_path"`

	// Port is the loopback HTTP API port.
	Port int `yaml:"port"`

	// MaxPasteSize is the request body / paste content cap in bytes.
	MaxPasteSize int64 `yaml:"max_paste_size"`

	// AutoSaveInterval is the GUI auto-save cadence.
	AutoSaveInterval time.Duration `yaml:"auto_save_interval"`

	// AutoBackup copies the database directory after a clean flush on
	// shutdown.
	AutoBackup bool `yaml:"auto_backup"`

	// AllowPublicAccess switches CORS to allow-any; without it the API
	// binds loopback semantics only.
	AllowPublicAccess bool `yaml:"allow_public_access"`

	// ForceReindex forces a derived-index reconcile on next open.
	ForceReindex bool `yaml:"force_reindex"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBPath:           defaultDBPath(),
		Port:             DefaultPort,
		MaxPasteSize:     DefaultMaxPasteSize,
		AutoSaveInterval: DefaultAutoSaveInterval,
	}
}

func defaultDBPath() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".", "localpaste", "db")
	}
	return filepath.Join(cacheDir, "localpaste", "db")
}

// Load builds the configuration: defaults, then the YAML file (if any),
// then environment overrides.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays the environment variables onto cfg.
func (c *Config) applyEnv() error {
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid PORT %q", v)
		}
		c.Port = port
	}

	if v := os.Getenv("MAX_PASTE_SIZE"); v != "" {
		size, err := parseByteSize(v)
		if err != nil {
			return fmt.Errorf("invalid MAX_PASTE_SIZE %q: %w", v, err)
		}
		c.MaxPasteSize = size
	}

	if v := os.Getenv("AUTO_SAVE_INTERVAL"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			return fmt.Errorf("invalid AUTO_SAVE_INTERVAL %q", v)
		}
		c.AutoSaveInterval = time.Duration(ms) * time.Millisecond
	}

	if v := os.Getenv("AUTO_BACKUP"); v != "" {
		c.AutoBackup = parseBool(v)
	}

	// Presence toggles.
	if _, ok := os.LookupEnv("ALLOW_PUBLIC_ACCESS"); ok {
		c.AllowPublicAccess = true
	}
	if _, ok := os.LookupEnv("LOCALPASTE_REINDEX"); ok {
		c.ForceReindex = true
	}

	return nil
}

// parseByteSize accepts a plain byte count or a human-readable size such as
// "10MB".
func parseByteSize(v string) (int64, error) {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("size must be positive")
		}
		return n, nil
	}
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
		return 0, err
	}
	if size == 0 {
		return 0, fmt.Errorf("size must be positive")
	}
	return int64(size.Bytes()), nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
