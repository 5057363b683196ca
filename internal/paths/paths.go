// Package paths resolves configuration and data directory locations for the
// terminal. Every resolver returns an absolute path.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// appName is the directory name used under platform base directories.
const appName = "caja"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "CAJA_CONFIG_DIR"
	EnvDataDir   = "CAJA_DATA_DIR"
)

// File names inside the resolved directories.
const (
	ConfigFileName  = "config.yaml"
	SecretsFileName = "secrets.json"
	KVDirName       = "kv"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	goos          string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	goos:          runtime.GOOS,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/caja (fallback ~/.config/caja)
// macOS:   ~/Library/Application Support/caja
// Windows: %APPDATA%/caja
func DefaultConfigDir() (string, error) {
	return platformBase("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform-specific default data directory.
//
// Linux:   $XDG_DATA_HOME/caja (fallback ~/.local/share/caja)
// macOS and Windows share the configuration directory.
func DefaultDataDir() (string, error) {
	return platformBase("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// platformBase resolves <base>/caja where base comes from xdgEnv, then
// ~/homeRel on linux, and os.UserConfigDir elsewhere.
func platformBase(xdgEnv, homeRel string) (string, error) {
	if platformDir.goos != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appName), nil
	}
	if xdg := os.Getenv(xdgEnv); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, homeRel, appName), nil
}

// ResolveConfigDir returns the configuration directory following the
// precedence chain: flag > CAJA_CONFIG_DIR > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	return resolve(flag, "", EnvConfigDir, DefaultConfigDir)
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > data_dir from config.yaml > CAJA_DATA_DIR > DefaultDataDir().
func ResolveDataDir(flag, configValue string) (string, error) {
	return resolve(flag, configValue, EnvDataDir, DefaultDataDir)
}

func resolve(flag, configValue, env string, fallback func() (string, error)) (string, error) {
	for _, v := range []string{flag, configValue, os.Getenv(env)} {
		if v != "" {
			return filepath.Abs(v)
		}
	}
	return fallback()
}

// ConfigFile returns the path of config.yaml inside configDir.
func ConfigFile(configDir string) string {
	return filepath.Join(configDir, ConfigFileName)
}

// SecretsFile returns the path of the file-backed secret store.
func SecretsFile(configDir string) string {
	return filepath.Join(configDir, SecretsFileName)
}

// KVDir returns the directory the file substrate stores keys in.
func KVDir(dataDir string) string {
	return filepath.Join(dataDir, KVDirName)
}
