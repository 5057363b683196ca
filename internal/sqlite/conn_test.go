package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/caja/internal/logger"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(filepath.Join(t.TempDir(), "data", "caja.db"), time.Second, logger.Discard())
	t.Cleanup(func() { m.Reset() })
	return m
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	assert.Equal(t, StateClosed, m.State())

	db, err := m.Conn(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateReady, m.State())

	again, err := m.Conn(ctx)
	require.NoError(t, err)
	assert.Same(t, db, again, "a live handle is reused")

	require.NoError(t, m.Reset())
	assert.Equal(t, StateClosed, m.State())

	fresh, err := m.Conn(ctx)
	require.NoError(t, err)
	assert.NotSame(t, db, fresh)
}

func TestManagerAppliesPragmas(t *testing.T) {
	db, err := newTestManager(t).Conn(context.Background())
	require.NoError(t, err)

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", strings.ToLower(mode))

	var timeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 1000, timeout)
}

func TestManagerReopensAfterFailedProbe(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	db, err := m.Conn(ctx)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	fresh, err := m.Conn(ctx)
	require.NoError(t, err)
	assert.NotSame(t, db, fresh)
	assert.Equal(t, StateReady, m.State())
	assert.Zero(t, m.Recreated(), "a closed handle is not corruption")
}

func TestManagerConcurrentOpenSharesHandle(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	const callers = 16
	var wg sync.WaitGroup
	handles := make(chan any, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			db, err := m.Conn(ctx)
			assert.NoError(t, err)
			handles <- db
		}()
	}
	wg.Wait()
	close(handles)

	var first any
	for h := range handles {
		if first == nil {
			first = h
			continue
		}
		assert.Same(t, first, h)
	}
}

func TestManagerWaitHonoursContext(t *testing.T) {
	m := newTestManager(t)

	// Pretend another caller is mid-open.
	m.mu.Lock()
	m.state = StateOpening
	m.opening = make(chan struct{})
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.Conn(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	m.mu.Lock()
	m.state = StateClosed
	close(m.opening)
	m.opening = nil
	m.mu.Unlock()
}

func TestManagerRecreatesCorruptedFile(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(m.Path()), 0o755))

	garbage := []byte(strings.Repeat("this is definitely not a database file ", 200))
	require.NoError(t, os.WriteFile(m.Path(), garbage, 0o644))
	require.NoError(t, os.WriteFile(m.Path()+"-wal", []byte("junk"), 0o644))

	db, err := m.Conn(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Recreated())

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM permissions").Scan(&n))
	assert.Positive(t, n, "schema and seed are rebuilt after recreation")
}

func TestManagerPropagatesOtherErrors(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	// The data directory path runs through a regular file, so it cannot be
	// created.
	m := NewManager(filepath.Join(blocker, "sub", "caja.db"), time.Second, logger.Discard())
	_, err := m.Conn(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateClosed, m.State())
	assert.Zero(t, m.Recreated())
}

func TestManagerInitializeRunsOnce(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	require.NoError(t, m.Initialize(ctx))
	assert.True(t, m.Initialized())

	db, err := m.Conn(ctx)
	require.NoError(t, err)
	_, err = db.Exec("DELETE FROM permissions")
	require.NoError(t, err)

	require.NoError(t, m.Initialize(ctx))
	assert.Equal(t, 0, countRows(t, db, "permissions"), "second Initialize is a no-op")

	require.NoError(t, m.Reset())
	assert.False(t, m.Initialized())
	require.NoError(t, m.Initialize(ctx))

	db, err = m.Conn(ctx)
	require.NoError(t, err)
	assert.Positive(t, countRows(t, db, "permissions"), "Initialize runs again after Reset")
}

func TestIsCorruption(t *testing.T) {
	assert.False(t, isCorruption(nil))
	assert.False(t, isCorruption(errors.New("disk I/O error")))
	assert.True(t, isCorruption(errors.New("database disk image is malformed")))
	assert.True(t, isCorruption(errors.New("file is not a database")))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "opening", StateOpening.String())
	assert.Equal(t, "ready", StateReady.String())
}

func TestManagerRecreatesAtMostOnce(t *testing.T) {
	m := newTestManager(t)

	opens := 0
	m.openFile = func(context.Context) (*sql.DB, error) {
		opens++
		return nil, errors.New("file is not a database")
	}

	_, err := m.Conn(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recreating database")
	assert.Equal(t, 2, opens, "one open plus one recreate, no retry loop")
	assert.Zero(t, m.Recreated())
	assert.Equal(t, StateClosed, m.State())
}

func TestManagerResetWaitsForInflightOpen(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	// Pretend another caller is mid-open.
	done := make(chan struct{})
	m.mu.Lock()
	m.state = StateOpening
	m.opening = done
	m.mu.Unlock()

	reset := make(chan error, 1)
	go func() { reset <- m.Reset() }()

	select {
	case <-reset:
		t.Fatal("Reset returned while an open was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, StateOpening, m.State())

	// The opener finishes and publishes its handle.
	db, err := m.open(ctx)
	require.NoError(t, err)
	m.mu.Lock()
	m.db = db
	m.state = StateReady
	m.opening = nil
	close(done)
	m.mu.Unlock()

	require.NoError(t, <-reset)
	assert.Equal(t, StateClosed, m.State())
	assert.Error(t, db.PingContext(ctx), "the handle published by the opener is closed by Reset")
}

func TestManagerRefusesNewerSchema(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	require.NoError(t, m.Initialize(ctx))

	db, err := m.Conn(ctx)
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)", schemaVersion+1, "later")
	require.NoError(t, err)

	require.NoError(t, m.Reset())
	err = m.Initialize(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
	assert.False(t, m.Initialized())
}
