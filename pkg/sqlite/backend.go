// Package sqlite exposes the native SQLite backend while keeping its
// implementation internal.
package sqlite

import (
	"log/slog"

	"github.com/mesh-intelligence/caja/internal/sqlite"
	"github.com/mesh-intelligence/caja/pkg/types"
)

// NewBackend returns a SQLite backend for the database file named in cfg.
// The file is not opened until Initialize or the first operation.
//
// Example:
//
//	backend := sqlite.NewBackend(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: "/var/lib/caja",
//	}, slog.Default())
//	defer backend.Close()
func NewBackend(cfg types.Config, log *slog.Logger) types.Backend {
	return sqlite.New(cfg, log)
}
