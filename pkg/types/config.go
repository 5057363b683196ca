package types

import (
	"errors"
	"time"
)

// Config holds backend selection and parameters for opening the store.
type Config struct {
	Backend string       `mapstructure:"backend" yaml:"backend"`
	DataDir string       `mapstructure:"data_dir" yaml:"data_dir,omitempty"`
	SQLite  SQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`
	KV      KVConfig     `mapstructure:"kv" yaml:"kv"`
	Redis   RedisConfig  `mapstructure:"redis" yaml:"redis"`
	Seed    SeedConfig   `mapstructure:"seed" yaml:"seed"`
}

// SQLiteConfig holds native backend parameters.
type SQLiteConfig struct {
	File          string `mapstructure:"file" yaml:"file,omitempty"`
	BusyTimeoutMS int    `mapstructure:"busy_timeout_ms" yaml:"busy_timeout_ms,omitempty"`
}

// KVConfig holds key/value table store parameters.
type KVConfig struct {
	Substrate    string `mapstructure:"substrate" yaml:"substrate,omitempty"`
	Prefix       string `mapstructure:"prefix" yaml:"prefix,omitempty"`
	SeedExamples bool   `mapstructure:"seed_examples" yaml:"seed_examples"`
}

// RedisConfig holds connection parameters for the redis substrate.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	DB       int    `mapstructure:"db" yaml:"db,omitempty"`
}

// SeedConfig names the default administrator created on first use.
// AdminPassword is plaintext input only; it is hashed before storage.
type SeedConfig struct {
	AdminUsername string `mapstructure:"admin_username" yaml:"admin_username,omitempty"`
	AdminPassword string `mapstructure:"admin_password" yaml:"-"`
}

// Supported backend names. BackendAuto probes the native backend and falls
// back to the key/value store when it cannot be opened.
const (
	BackendAuto   = "auto"
	BackendSQLite = "sqlite"
	BackendKV     = "kv"
)

// Supported key/value substrates.
const (
	SubstrateFile   = "file"
	SubstrateRedis  = "redis"
	SubstrateMemory = "memory"
)

// Default parameter values.
const (
	DefaultSQLiteFile    = "caja.db"
	DefaultBusyTimeoutMS = 5000
	DefaultKVPrefix      = "caja"
	DefaultAdminUsername = "admin"
)

// Config validation errors.
var (
	ErrBackendEmpty       = errors.New("backend must not be empty")
	ErrBackendUnknown     = errors.New("unknown backend")
	ErrSubstrateUnknown   = errors.New("unknown key/value substrate")
	ErrRedisAddrEmpty     = errors.New("redis substrate requires an address")
	ErrBusyTimeoutInvalid = errors.New("busy timeout must not be negative")
	ErrPrefixInvalid      = errors.New("key prefix must not contain ':'")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendAuto:   true,
	BackendSQLite: true,
	BackendKV:     true,
}

var knownSubstrates = map[string]bool{
	SubstrateFile:   true,
	SubstrateRedis:  true,
	SubstrateMemory: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.SQLite.BusyTimeoutMS < 0 {
		return ErrBusyTimeoutInvalid
	}
	if !knownSubstrates[c.KV.GetSubstrate()] {
		return ErrSubstrateUnknown
	}
	if c.KV.GetSubstrate() == SubstrateRedis && c.Redis.Addr == "" {
		return ErrRedisAddrEmpty
	}
	for _, r := range c.KV.Prefix {
		if r == ':' {
			return ErrPrefixInvalid
		}
	}
	return nil
}

// GetAdminUsername returns the seed admin username, defaulting to "admin".
func (c SeedConfig) GetAdminUsername() string {
	if c.AdminUsername == "" {
		return DefaultAdminUsername
	}
	return c.AdminUsername
}

// GetFile returns the database file name, defaulting to caja.db.
func (c SQLiteConfig) GetFile() string {
	if c.File == "" {
		return DefaultSQLiteFile
	}
	return c.File
}

// GetBusyTimeout returns the busy timeout, defaulting to five seconds.
func (c SQLiteConfig) GetBusyTimeout() time.Duration {
	if c.BusyTimeoutMS <= 0 {
		return DefaultBusyTimeoutMS * time.Millisecond
	}
	return time.Duration(c.BusyTimeoutMS) * time.Millisecond
}

// GetSubstrate returns the configured substrate, defaulting to file.
func (c KVConfig) GetSubstrate() string {
	if c.Substrate == "" {
		return SubstrateFile
	}
	return c.Substrate
}

// GetPrefix returns the key prefix, defaulting to "caja".
func (c KVConfig) GetPrefix() string {
	if c.Prefix == "" {
		return DefaultKVPrefix
	}
	return c.Prefix
}
