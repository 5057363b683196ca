package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mesh-intelligence/caja/internal/password"
	"github.com/mesh-intelligence/caja/internal/session"
	"github.com/mesh-intelligence/caja/pkg/types"
)

// Errors returned by Require.
var (
	ErrUnauthenticated = errors.New("not logged in")
	ErrForbidden       = errors.New("permission denied")
)

// Directory is the part of the data façade the manager reads and writes
// users through.
type Directory interface {
	GetUserByUsername(ctx context.Context, username string) (*types.User, error)
	GetUserByID(ctx context.Context, id int64) (*types.User, error)
	GetUserPermissions(ctx context.Context, userID int64) []string
	AddUser(ctx context.Context, u types.User) (int64, error)
	UpdateUser(ctx context.Context, u types.User) (int64, error)
	SeedAdminUser(ctx context.Context, username, passwordHash string) (*types.User, error)
}

// Vault persists the session between launches.
type Vault interface {
	Save(ctx context.Context, u types.User) error
	Load(ctx context.Context) (*session.Claims, error)
	Clear(ctx context.Context) error
}

// Manager owns the process's session.
type Manager struct {
	dir   Directory
	vault Vault
	log   *slog.Logger

	mu      sync.RWMutex
	current Session
}

// NewManager returns a manager starting anonymous. vault may be nil, in
// which case sessions are not persisted.
func NewManager(dir Directory, vault Vault, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{dir: dir, vault: vault, log: log.With("component", "auth")}
}

// Init resumes a saved session if one is still valid and reports whether it
// did. A saved session is stale when its user is gone, was renamed or has a
// different password hash; a stale session is cleared.
func (m *Manager) Init(ctx context.Context) bool {
	if m.vault == nil {
		return false
	}
	claims, err := m.vault.Load(ctx)
	if err != nil {
		m.log.Debug("no session to resume", "error", err)
		m.clearVault(ctx)
		return false
	}

	u, err := m.dir.GetUserByID(ctx, claims.UserID)
	if err != nil || u.Username != claims.Username() || session.Fingerprint(u.PasswordHash) != claims.Fingerprint {
		m.log.Info("saved session is stale", "username", claims.Username())
		m.clearVault(ctx)
		return false
	}
	m.setSession(Authenticated(*u, m.dir.GetUserPermissions(ctx, u.ID)))
	m.log.Debug("session resumed", "username", u.Username)
	return true
}

// Login authenticates username and password. Any failure, including an
// unknown user or a storage error, returns false.
func (m *Manager) Login(ctx context.Context, username, plain string) bool {
	u, err := m.dir.GetUserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			m.log.Warn("login lookup failed", "error", err)
		}
		password.VerifyNone(plain)
		return false
	}
	if !password.Verify(u.PasswordHash, plain) {
		return false
	}

	m.setSession(Authenticated(*u, m.dir.GetUserPermissions(ctx, u.ID)))
	if m.vault != nil {
		if err := m.vault.Save(ctx, *u); err != nil {
			m.log.Warn("session not persisted", "error", err)
		}
	}
	m.log.Info("logged in", "username", u.Username)
	return true
}

// Logout returns to the anonymous session and clears the saved one.
func (m *Manager) Logout(ctx context.Context) error {
	m.setSession(Anonymous())
	if m.vault == nil {
		return nil
	}
	return m.vault.Clear(ctx)
}

// Session returns the current session.
func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// CheckPermission reports whether the current session holds name.
func (m *Manager) CheckPermission(name string) bool {
	return m.Session().HasPermission(name)
}

// Require returns ErrUnauthenticated or ErrForbidden unless the current
// session holds name.
func (m *Manager) Require(name string) error {
	s := m.Session()
	if !s.IsAuthenticated() {
		return ErrUnauthenticated
	}
	if !s.HasPermission(name) {
		return ErrForbidden
	}
	return nil
}

// Register validates and stores a new user, returning its id.
func (m *Manager) Register(ctx context.Context, username, plain string, isAdmin bool) (int64, error) {
	if err := ValidateUsername(username); err != nil {
		return 0, err
	}
	if err := ValidatePassword(plain); err != nil {
		return 0, err
	}
	hash, err := password.Hash(plain)
	if err != nil {
		return 0, err
	}
	return m.dir.AddUser(ctx, types.User{Username: username, PasswordHash: hash, IsAdmin: isAdmin})
}

// SeedAdmin creates the first administrator. It returns (nil, nil) when an
// administrator already exists.
func (m *Manager) SeedAdmin(ctx context.Context, username, plain string) (*types.User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidatePassword(plain); err != nil {
		return nil, err
	}
	hash, err := password.Hash(plain)
	if err != nil {
		return nil, err
	}
	return m.dir.SeedAdminUser(ctx, username, hash)
}

// ChangePassword sets a new password for userID. Sessions saved for that
// user before the change no longer resume; the current session, if it is
// that user's, is saved again.
func (m *Manager) ChangePassword(ctx context.Context, userID int64, plain string) error {
	if err := ValidatePassword(plain); err != nil {
		return err
	}
	u, err := m.dir.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	hash, err := password.Hash(plain)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	n, err := m.dir.UpdateUser(ctx, *u)
	if err != nil {
		return err
	}
	if n == 0 {
		return types.ErrNotFound
	}

	if cur := m.Session(); cur.User != nil && cur.User.ID == userID && m.vault != nil {
		if err := m.vault.Save(ctx, *u); err != nil {
			m.log.Warn("session not persisted", "error", err)
		}
	}
	return nil
}

func (m *Manager) setSession(s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = s
}

func (m *Manager) clearVault(ctx context.Context) {
	if err := m.vault.Clear(ctx); err != nil {
		m.log.Warn("clearing saved session failed", "error", err)
	}
}
