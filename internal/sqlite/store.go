package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/mesh-intelligence/caja/pkg/types"
)

// Store implements types.Backend on a SQLite file reached through a Manager.
type Store struct {
	mgr *Manager
	log *slog.Logger

	mu     sync.RWMutex
	closed bool
}

var _ types.Backend = (*Store)(nil)

// New returns a store for the database file configured in cfg. The file is
// not opened until the first operation or Initialize.
func New(cfg types.Config, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	path := filepath.Join(dataDir, cfg.SQLite.GetFile())
	return NewWithManager(NewManager(path, cfg.SQLite.GetBusyTimeout(), log), log)
}

// NewWithManager returns a store using an existing connection manager.
func NewWithManager(mgr *Manager, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{mgr: mgr, log: log}
}

// Name implements types.Backend.
func (s *Store) Name() string { return types.BackendSQLite }

// Manager exposes the connection manager.
func (s *Store) Manager() *Manager { return s.mgr }

// Initialize creates the schema and seeds the permission catalog once.
func (s *Store) Initialize(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.mgr.Initialize(ctx)
}

// Close releases the connection. Close is idempotent; operations after
// Close return types.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.mgr.Reset()
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return types.ErrClosed
	}
	return nil
}

// conn returns the shared handle for one operation.
func (s *Store) conn(ctx context.Context) (*sql.DB, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.mgr.Conn(ctx)
}

// insert executes an INSERT and returns the new row id.
func (s *Store) insert(ctx context.Context, query string, args ...any) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, translate(err)
	}
	return res.LastInsertId()
}

// exec executes an UPDATE or DELETE and returns the affected row count.
func (s *Store) exec(ctx context.Context, query string, args ...any) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, translate(err)
	}
	return res.RowsAffected()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// queryAll runs query and collects one T per row with scan.
func queryAll[T any](ctx context.Context, s *Store, scan func(scanner) (T, error), query string, args ...any) ([]T, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// queryOne runs query and scans its single row, mapping no rows to
// types.ErrNotFound.
func queryOne[T any](ctx context.Context, s *Store, scan func(scanner) (T, error), query string, args ...any) (*T, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	v, err := scan(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// translate maps driver constraint failures to types.ErrConstraint while
// keeping the driver message.
func translate(err error) error {
	if isConstraint(err) {
		return fmt.Errorf("%w: %v", types.ErrConstraint, err)
	}
	return err
}

// nullID stores 0 as NULL for optional references.
func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
