// Package caja is the data access façade of the point-of-sale terminal. A
// Store offers one method per logical operation and hides which backend is
// active.
//
// Creates, updates, deletes and lookups by id propagate errors. Listings
// degrade to an empty slice and a logged warning, so a transient read failure
// never takes down a list screen.
package caja

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mesh-intelligence/caja/internal/kv"
	"github.com/mesh-intelligence/caja/internal/password"
	"github.com/mesh-intelligence/caja/internal/sqlite"
	pubsqlite "github.com/mesh-intelligence/caja/pkg/sqlite"
	"github.com/mesh-intelligence/caja/pkg/types"
)

// Version is the release of this module.
const Version = "0.1.0"

// Store is the façade over one types.Backend.
type Store struct {
	backend types.Backend
	seed    types.SeedConfig
	log     *slog.Logger
	now     func() time.Time
}

// New wraps an existing backend.
func New(backend types.Backend, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		backend: backend,
		log:     log,
		now:     time.Now,
	}
}

// Open selects the backend named in cfg. With types.BackendAuto the native
// SQLite file is probed first; if it cannot be opened the key/value store is
// used instead.
func Open(ctx context.Context, cfg types.Config, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var backend types.Backend
	switch cfg.Backend {
	case types.BackendSQLite:
		backend = pubsqlite.NewBackend(cfg, log)
	case types.BackendKV:
		b, err := kv.Open(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("opening key/value store: %w", err)
		}
		backend = b
	case types.BackendAuto:
		b, err := probe(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		backend = b
	}

	log.Info("storage backend selected", "backend", backend.Name())
	s := New(backend, log)
	s.seed = cfg.Seed
	return s, nil
}

// probe opens the SQLite file and falls back to the key/value store.
func probe(ctx context.Context, cfg types.Config, log *slog.Logger) (types.Backend, error) {
	native := sqlite.New(cfg, log)
	_, err := native.Manager().Conn(ctx)
	if err == nil {
		return native, nil
	}
	log.Warn("native storage unavailable, falling back to key/value store", "error", err)
	native.Close()

	b, err := kv.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("opening key/value store: %w", err)
	}
	return b, nil
}

// BackendName reports the active backend.
func (s *Store) BackendName() string { return s.backend.Name() }

// Initialize prepares the backend and, when an administrator password is
// configured, seeds the administrator.
func (s *Store) Initialize(ctx context.Context) error {
	if err := s.backend.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing %s backend: %w", s.backend.Name(), err)
	}
	if s.seed.AdminPassword == "" {
		return nil
	}
	hash, err := password.Hash(s.seed.AdminPassword)
	if err != nil {
		return err
	}
	_, err = s.SeedAdminUser(ctx, s.seed.GetAdminUsername(), hash)
	return err
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// list runs a listing and degrades a failure to an empty slice.
func list[T any](ctx context.Context, s *Store, op string, fn func(context.Context) ([]T, error)) []T {
	rows, err := fn(ctx)
	if err != nil {
		s.log.Warn("listing failed, returning no rows", "op", op, "backend", s.backend.Name(), "error", err)
		return []T{}
	}
	if rows == nil {
		return []T{}
	}
	return rows
}

func isNotFound(err error) bool {
	return errors.Is(err, types.ErrNotFound)
}
