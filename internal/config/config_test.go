package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/caja/pkg/types"
)

func TestLoadWritesDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cfg")

	cfg, err := Load(dir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err, "default config.yaml should be created")

	assert.Equal(t, types.BackendAuto, cfg.Backend)
	assert.Equal(t, types.SubstrateFile, cfg.KV.Substrate)
	assert.Equal(t, "caja", cfg.KV.Prefix)
	assert.True(t, cfg.KV.SeedExamples)
	assert.Equal(t, 5000, cfg.SQLite.BusyTimeoutMS)
	assert.Equal(t, "admin", cfg.Seed.AdminUsername)
	assert.Equal(t, SessionStoreKeyring, cfg.Session.Store)
	assert.Equal(t, 720*time.Hour, cfg.Session.MaxAge)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `backend: kv
kv:
  substrate: memory
  prefix: shop
  seed_examples: false
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, types.BackendKV, cfg.Backend)
	assert.Equal(t, types.SubstrateMemory, cfg.KV.Substrate)
	assert.Equal(t, "shop", cfg.KV.Prefix)
	assert.False(t, cfg.KV.SeedExamples)
	assert.Equal(t, "json", cfg.Log.Format)

	store := cfg.Store()
	assert.Equal(t, types.BackendKV, store.Backend)
	assert.Equal(t, "shop", store.KV.GetPrefix())
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CAJA_BACKEND", "sqlite")
	t.Setenv("CAJA_SEED_ADMIN_PASSWORD", "Sup3rSecret")
	t.Setenv("CAJA_SQLITE_BUSY_TIMEOUT_MS", "750")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, types.BackendSQLite, cfg.Backend)
	assert.Equal(t, "Sup3rSecret", cfg.Seed.AdminPassword)
	assert.Equal(t, 750, cfg.SQLite.BusyTimeoutMS)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "unknown backend", yaml: "backend: postgres\n"},
		{name: "redis without address", yaml: "backend: kv\nkv:\n  substrate: redis\n"},
		{name: "unknown session store", yaml: "session:\n  store: vault\n"},
		{name: "unknown log level", yaml: "log:\n  level: chatty\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(tt.yaml), 0o644))
			_, err := Load(dir)
			assert.Error(t, err)
		})
	}
}

func TestLoadKeepsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: sqlite\n"), 0o644))

	_, err := Load(dir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "backend: sqlite\n", string(data))
}
