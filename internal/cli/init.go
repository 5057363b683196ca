package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/caja/internal/auth"
	"github.com/mesh-intelligence/caja/internal/config"
	"github.com/mesh-intelligence/caja/internal/logger"
	"github.com/mesh-intelligence/caja/internal/paths"
	"github.com/mesh-intelligence/caja/pkg/caja"
	"github.com/mesh-intelligence/caja/pkg/types"
)

// configFile holds the structure written to config.yaml by init.
type configFile struct {
	Backend string             `yaml:"backend"`
	DataDir string             `yaml:"data_dir,omitempty"`
	SQLite  types.SQLiteConfig `yaml:"sqlite"`
	KV      types.KVConfig     `yaml:"kv"`
	Seed    seedSection        `yaml:"seed"`
	Session sessionSection     `yaml:"session"`
	Log     logSection         `yaml:"log"`
}

type seedSection struct {
	AdminUsername string `yaml:"admin_username"`
}

type sessionSection struct {
	Store  string `yaml:"store"`
	MaxAge string `yaml:"max_age"`
}

type logSection struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func newInitCmd() *cobra.Command {
	var adminUser, adminPassword string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize caja configuration and storage",
		Long: "Create the configuration and data directories, write config.yaml if it\n" +
			"is missing, create the schema and optionally seed the first administrator.",
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, adminUser, adminPassword)
		},
	}
	cmd.Flags().StringVar(&adminUser, "admin-user", types.DefaultAdminUsername, "username of the first administrator")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "password of the first administrator (skipped when empty)")
	return cmd
}

func runInit(cmd *cobra.Command, adminUser, adminPassword string) error {
	ctx := cmd.Context()
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return sysError(err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return sysError(fmt.Errorf("create config directory: %w", err))
	}
	if err := writeConfigIfMissing(paths.ConfigFile(configDir), flags.dataDir, flags.backend); err != nil {
		return sysError(fmt.Errorf("write config: %w", err))
	}

	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logger.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return userError(err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return sysError(fmt.Errorf("create data directory: %w", err))
	}

	store, err := caja.Open(ctx, cfg.Store(), log)
	if err != nil {
		return sysError(fmt.Errorf("open storage: %w", err))
	}
	defer store.Close()
	if err := store.Initialize(ctx); err != nil {
		return sysError(err)
	}

	result := map[string]any{
		"config_dir": configDir,
		"data_dir":   cfg.DataDir,
		"backend":    store.BackendName(),
	}
	if adminPassword != "" {
		u, err := auth.NewManager(store, nil, log).SeedAdmin(ctx, adminUser, adminPassword)
		if err != nil {
			return err
		}
		result["admin_seeded"] = u != nil
	}

	if flags.jsonMode {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Caja initialized (backend: %s, data: %s)\n", store.BackendName(), cfg.DataDir)
	if seeded, ok := result["admin_seeded"].(bool); ok {
		if seeded {
			fmt.Fprintf(cmd.OutOrStdout(), "Administrator %q created\n", adminUser)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "An administrator already exists")
		}
	}
	return nil
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. If it already exists, the function returns nil.
func writeConfigIfMissing(path, dataDir, backend string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if backend == "" {
		backend = types.BackendAuto
	}

	cfg := configFile{
		Backend: backend,
		DataDir: dataDir,
		SQLite:  types.SQLiteConfig{File: types.DefaultSQLiteFile, BusyTimeoutMS: types.DefaultBusyTimeoutMS},
		KV:      types.KVConfig{Substrate: types.SubstrateFile, Prefix: types.DefaultKVPrefix, SeedExamples: true},
		Seed:    seedSection{AdminUsername: types.DefaultAdminUsername},
		Session: sessionSection{Store: config.SessionStoreKeyring, MaxAge: "720h"},
		Log:     logSection{Level: "info", Format: logger.FormatText},
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
