package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesh-intelligence/caja/internal/logger"
	"github.com/mesh-intelligence/caja/internal/password"
	"github.com/mesh-intelligence/caja/internal/session"
	"github.com/mesh-intelligence/caja/pkg/caja"
	"github.com/mesh-intelligence/caja/pkg/types"
)

func TestMain(m *testing.M) {
	password.SetCost(bcrypt.MinCost)
	os.Exit(m.Run())
}

type fixture struct {
	store *caja.Store
	vault *session.Vault
	mgr   *Manager
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store, err := caja.Open(ctx, types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, store.Initialize(ctx))
	t.Cleanup(func() { store.Close() })

	vault := session.NewVault(session.NewFileStore(filepath.Join(t.TempDir(), "secrets.json")), time.Hour)
	return fixture{store: store, vault: vault, mgr: NewManager(store, vault, logger.Discard())}
}

// relaunch returns a fresh manager on the same storage, as after a restart.
func (f fixture) relaunch() *Manager {
	return NewManager(f.store, f.vault, logger.Discard())
}

func TestLoginAndPermissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.mgr.Register(ctx, "clerk", "Secret123", false)
	require.NoError(t, err)
	p, err := f.store.GetPermissionByName(ctx, types.PermCashRegister)
	require.NoError(t, err)
	_, err = f.store.AssignPermissionToUser(ctx, id, p.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.mgr.Require(types.PermCashRegister), ErrUnauthenticated)
	assert.False(t, f.mgr.CheckPermission(types.PermCashRegister))

	require.True(t, f.mgr.Login(ctx, "clerk", "Secret123"))
	assert.True(t, f.mgr.Session().IsAuthenticated())
	assert.True(t, f.mgr.CheckPermission(types.PermCashRegister))
	assert.NoError(t, f.mgr.Require(types.PermCashRegister))
	for _, perm := range types.PermissionCatalog {
		if perm != types.PermCashRegister {
			assert.False(t, f.mgr.CheckPermission(perm), perm)
		}
	}
	assert.ErrorIs(t, f.mgr.Require(types.PermUsers), ErrForbidden)
}

func TestAdminBypassesGrants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u, err := f.mgr.SeedAdmin(ctx, "owner", "Owner1234")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Empty(t, f.store.GetUserPermissions(ctx, u.ID))

	require.True(t, f.mgr.Login(ctx, "owner", "Owner1234"))
	for _, perm := range types.PermissionCatalog {
		assert.True(t, f.mgr.CheckPermission(perm), perm)
	}

	again, err := f.mgr.SeedAdmin(ctx, "other", "Other1234")
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.mgr.Register(ctx, "clerk", "Secret123", false)
	require.NoError(t, err)

	assert.False(t, f.mgr.Login(ctx, "clerk", "Wrong1234"))
	assert.False(t, f.mgr.Login(ctx, "nobody", "Secret123"))
	assert.False(t, f.mgr.Login(ctx, "", ""))
	assert.False(t, f.mgr.Session().IsAuthenticated())

	_, err = f.vault.Load(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestUnknownUserCostsAHashComparison(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	prev := password.SetCost(10)
	defer password.SetCost(prev)

	_, err := f.mgr.Register(ctx, "clerk", "Secret123", false)
	require.NoError(t, err)

	start := time.Now()
	require.False(t, f.mgr.Login(ctx, "clerk", "Wrong1234"))
	wrongPassword := time.Since(start)

	start = time.Now()
	require.False(t, f.mgr.Login(ctx, "nobody", "Wrong1234"))
	unknownUser := time.Since(start)

	assert.Greater(t, unknownUser, wrongPassword/4,
		"unknown user took %v, wrong password took %v", unknownUser, wrongPassword)
}

func TestRegisterValidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.mgr.Register(ctx, "ab", "Secret123", false)
	assert.ErrorIs(t, err, ErrInvalidUsername)
	_, err = f.mgr.Register(ctx, "clerk", "secret", false)
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = f.mgr.Register(ctx, "clerk", "Secret123", false)
	require.NoError(t, err)
	_, err = f.mgr.Register(ctx, "clerk", "Secret123", false)
	assert.ErrorIs(t, err, types.ErrUsernameTaken)

	u, err := f.store.GetUserByUsername(ctx, "clerk")
	require.NoError(t, err)
	assert.NotContains(t, u.PasswordHash, "Secret123")
}

func TestResumeAfterRelaunch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.mgr.Register(ctx, "clerk", "Secret123", false)
	require.NoError(t, err)
	require.True(t, f.mgr.Login(ctx, "clerk", "Secret123"))

	next := f.relaunch()
	require.True(t, next.Init(ctx))
	assert.Equal(t, "clerk", next.Session().User.Username)

	require.NoError(t, next.Logout(ctx))
	assert.False(t, next.Session().IsAuthenticated())
	assert.False(t, f.relaunch().Init(ctx))
}

func TestResumeFailsClosedAfterPasswordReset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id, err := f.mgr.Register(ctx, "clerk", "Secret123", false)
	require.NoError(t, err)
	require.True(t, f.mgr.Login(ctx, "clerk", "Secret123"))

	// Another operator resets the password.
	admin := NewManager(f.store, nil, logger.Discard())
	require.NoError(t, admin.ChangePassword(ctx, id, "Changed123"))

	next := f.relaunch()
	assert.False(t, next.Init(ctx))
	assert.False(t, next.Session().IsAuthenticated())
	_, err = f.vault.Load(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession, "stale session is cleared")

	assert.False(t, next.Login(ctx, "clerk", "Secret123"))
	assert.True(t, next.Login(ctx, "clerk", "Changed123"))
}

func TestResumeFailsWhenUserDeleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id, err := f.mgr.Register(ctx, "clerk", "Secret123", false)
	require.NoError(t, err)
	require.True(t, f.mgr.Login(ctx, "clerk", "Secret123"))

	_, err = f.store.DeleteUser(ctx, id)
	require.NoError(t, err)
	assert.False(t, f.relaunch().Init(ctx))
}

func TestChangeOwnPasswordKeepsResume(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id, err := f.mgr.Register(ctx, "clerk", "Secret123", false)
	require.NoError(t, err)
	require.True(t, f.mgr.Login(ctx, "clerk", "Secret123"))

	require.NoError(t, f.mgr.ChangePassword(ctx, id, "Changed123"))
	assert.True(t, f.relaunch().Init(ctx))

	assert.ErrorIs(t, f.mgr.ChangePassword(ctx, id, "weak"), ErrWeakPassword)
	assert.ErrorIs(t, f.mgr.ChangePassword(ctx, 404, "Changed123"), types.ErrNotFound)
}

func TestInitWithoutVault(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.store, nil, logger.Discard())
	assert.False(t, m.Init(context.Background()))
	assert.NoError(t, m.Logout(context.Background()))
}
