package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	driver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// State is the connection manager lifecycle state.
type State int

// Connection states. Closed → Opening → Ready; Ready → Closed on Reset;
// Ready → Opening when the liveness probe fails.
const (
	StateClosed State = iota
	StateOpening
	StateReady
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateReady:
		return "ready"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Manager owns the single shared handle to one database file. Callers that
// arrive while an open is in flight wait for it instead of opening the file
// a second time.
type Manager struct {
	path        string
	busyTimeout time.Duration
	log         *slog.Logger

	mu          sync.Mutex
	state       State
	db          *sql.DB
	opening     chan struct{} // closed when the in-flight open finishes
	initialized bool
	recreated   int // number of destructive recreations since construction

	initMu sync.Mutex // serializes Initialize

	openFile func(ctx context.Context) (*sql.DB, error)
}

// NewManager returns a closed manager for the database file at path.
func NewManager(path string, busyTimeout time.Duration, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		path:        path,
		busyTimeout: busyTimeout,
		log:         log.With("component", "sqlite", "path", path),
	}
	m.openFile = m.open
	return m
}

// Path returns the database file path.
func (m *Manager) Path() string { return m.path }

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Conn returns the live shared handle, opening it if needed. A handle that
// fails its liveness probe is discarded and reopened. Open failures that look
// like file corruption trigger one destructive recreate; any other failure,
// or a failure of the recreated file, is returned.
func (m *Manager) Conn(ctx context.Context) (*sql.DB, error) {
	for {
		m.mu.Lock()
		switch m.state {
		case StateReady:
			db := m.db
			m.mu.Unlock()
			err := probe(ctx, db)
			if err == nil {
				return db, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			m.log.Warn("connection probe failed, reopening", "error", err)
			m.discard(db)

		case StateOpening:
			wait := m.opening
			m.mu.Unlock()
			select {
			case <-wait:
			case <-ctx.Done():
				return nil, ctx.Err()
			}

		default:
			done := make(chan struct{})
			m.state = StateOpening
			m.opening = done
			m.mu.Unlock()

			db, err := m.openWithRecovery(ctx)

			m.mu.Lock()
			if err != nil {
				m.state = StateClosed
			} else {
				m.db = db
				m.state = StateReady
			}
			m.opening = nil
			close(done)
			m.mu.Unlock()

			if err != nil {
				return nil, err
			}
			return db, nil
		}
	}
}

// discard closes db and returns the manager to Closed, unless another caller
// already replaced the handle.
func (m *Manager) discard(db *sql.DB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReady || m.db != db {
		return
	}
	db.Close()
	m.db = nil
	m.state = StateClosed
}

// Reset closes the handle and clears all state, including the initialized
// flag, so the next Conn rebuilds everything. An open in flight is waited
// for so its handle is closed here rather than left behind.
func (m *Manager) Reset() error {
	m.mu.Lock()
	for m.opening != nil {
		wait := m.opening
		m.mu.Unlock()
		<-wait
		m.mu.Lock()
	}
	db := m.db
	m.db = nil
	m.state = StateClosed
	m.initialized = false
	m.mu.Unlock()

	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Initialize creates the schema and seeds the permission catalog once.
// Later calls are no-ops until Reset.
func (m *Manager) Initialize(ctx context.Context) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	m.mu.Lock()
	done := m.initialized
	m.mu.Unlock()
	if done {
		return nil
	}

	db, err := m.Conn(ctx)
	if err != nil {
		return err
	}
	if err := createSchema(ctx, db); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	if err := seedPermissions(ctx, db); err != nil {
		return err
	}
	v, err := currentSchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if v > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", v, schemaVersion)
	}
	m.log.Debug("schema ready", "version", v)

	m.mu.Lock()
	m.initialized = true
	m.mu.Unlock()
	return nil
}

// Initialized reports whether Initialize has completed since the last Reset.
func (m *Manager) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// Recreated returns how many times the database file was destroyed and
// recreated after corruption.
func (m *Manager) Recreated() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recreated
}

// openWithRecovery opens the file; on a corruption-class error it deletes
// the file and its WAL siblings, opens a fresh file, and rebuilds the schema.
// It recreates at most once per call.
func (m *Manager) openWithRecovery(ctx context.Context) (*sql.DB, error) {
	db, err := m.openFile(ctx)
	if err == nil {
		return db, nil
	}
	if !isCorruption(err) {
		return nil, err
	}

	m.log.Warn("database file is corrupted, recreating", "error", err)
	if err := m.removeFiles(); err != nil {
		return nil, fmt.Errorf("removing corrupted database: %w", err)
	}
	db, err = m.openFile(ctx)
	if err != nil {
		return nil, fmt.Errorf("recreating database: %w", err)
	}
	if err := createSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("rebuilding schema: %w", err)
	}
	if err := seedPermissions(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	m.mu.Lock()
	m.recreated++
	m.mu.Unlock()
	m.log.Info("database recreated")
	return db, nil
}

// open creates the data directory, opens the file with its pragmas and
// forces the header to be read so a damaged file fails here.
func (m *Manager) open(ctx context.Context) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", m.dsn())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One handle per process; SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master").Scan(&n); err != nil {
		db.Close()
		return nil, fmt.Errorf("reading database header: %w", err)
	}
	return db, nil
}

// dsn encodes the pragmas in the connection string so every pooled
// connection is configured before its first statement.
func (m *Manager) dsn() string {
	return fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)",
		m.path, m.busyTimeout.Milliseconds())
}

func (m *Manager) removeFiles() error {
	for _, p := range []string{m.path, m.path + "-wal", m.path + "-shm", m.path + "-journal"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// probe runs a trivial query to check the handle is usable.
func probe(ctx context.Context, db *sql.DB) error {
	var one int
	return db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// isCorruption reports whether err means the database file is unusable and
// must be recreated.
func isCorruption(err error) bool {
	if err == nil {
		return false
	}
	var se *driver.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB:
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database")
}

// isConstraint reports whether err is a SQLite constraint violation.
func isConstraint(err error) bool {
	var se *driver.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
