// Package config loads the terminal configuration from config.yaml with
// viper. Values resolve in the order: CAJA_* environment variable, then
// config.yaml, then built-in default.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/caja/internal/logger"
	"github.com/mesh-intelligence/caja/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	// EnvPrefix prefixes every environment override, e.g. CAJA_KV_SUBSTRATE.
	EnvPrefix = "CAJA"
)

// Secret store kinds for session persistence.
const (
	SessionStoreKeyring = "keyring"
	SessionStoreFile    = "file"
)

// Config is the full terminal configuration.
type Config struct {
	Backend string             `mapstructure:"backend" yaml:"backend"`
	DataDir string             `mapstructure:"data_dir" yaml:"data_dir,omitempty"`
	SQLite  types.SQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`
	KV      types.KVConfig     `mapstructure:"kv" yaml:"kv"`
	Redis   types.RedisConfig  `mapstructure:"redis" yaml:"redis"`
	Seed    types.SeedConfig   `mapstructure:"seed" yaml:"seed"`
	Session SessionConfig      `mapstructure:"session" yaml:"session"`
	Log     LogConfig          `mapstructure:"log" yaml:"log"`
}

// SessionConfig controls where the persisted session lives and how long it
// stays valid.
type SessionConfig struct {
	Store   string        `mapstructure:"store" yaml:"store"`
	Service string        `mapstructure:"service" yaml:"service"`
	MaxAge  time.Duration `mapstructure:"max_age" yaml:"max_age"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Store returns the storage part of the configuration.
func (c Config) Store() types.Config {
	return types.Config{
		Backend: c.Backend,
		DataDir: c.DataDir,
		SQLite:  c.SQLite,
		KV:      c.KV,
		Redis:   c.Redis,
		Seed:    c.Seed,
	}
}

// Validate reports every invalid section at once.
func (c Config) Validate() error {
	var errs []error
	if err := c.Store().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("store config: %w", err))
	}
	switch c.Session.Store {
	case SessionStoreKeyring, SessionStoreFile:
	default:
		errs = append(errs, fmt.Errorf("session config: unknown store %q", c.Session.Store))
	}
	if c.Session.MaxAge < 0 {
		errs = append(errs, errors.New("session config: max_age must not be negative"))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log config: %w", err))
	}
	switch c.Log.Format {
	case logger.FormatText, logger.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log config: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// defaults are applied before config.yaml is read. Every key is listed so
// that environment overrides reach Unmarshal.
var defaults = map[string]any{
	"backend":                types.BackendAuto,
	"data_dir":               "",
	"sqlite.file":            types.DefaultSQLiteFile,
	"sqlite.busy_timeout_ms": types.DefaultBusyTimeoutMS,
	"kv.substrate":           types.SubstrateFile,
	"kv.prefix":              types.DefaultKVPrefix,
	"kv.seed_examples":       true,
	"redis.addr":             "",
	"redis.password":         "",
	"redis.db":               0,
	"seed.admin_username":    types.DefaultAdminUsername,
	"seed.admin_password":    "",
	"session.store":          SessionStoreKeyring,
	"session.service":        "caja",
	"session.max_age":        "720h",
	"log.level":              "info",
	"log.format":             logger.FormatText,
}

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# caja terminal configuration
# Every key can be overridden with a CAJA_ environment variable,
# e.g. CAJA_BACKEND=kv or CAJA_KV_SUBSTRATE=redis.

# Storage backend: auto, sqlite or kv
backend: auto

# Data directory (optional; overridable by --data-dir flag)
# data_dir:

sqlite:
  file: caja.db
  busy_timeout_ms: 5000

kv:
  substrate: file   # file, redis or memory
  prefix: caja
  seed_examples: true

# redis:
#   addr: localhost:6379

seed:
  admin_username: admin
  # admin_password is read from CAJA_SEED_ADMIN_PASSWORD

session:
  store: keyring    # keyring, or file when no keyring answers
  max_age: 720h

log:
  level: info
  format: text
`

// Load reads config.yaml from configDir using viper. It creates the config
// directory and a default config.yaml on first run.
func Load(configDir string) (*Config, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ensureDefaultConfigFile creates a default config.yaml if the file does not
// exist in the config directory.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
