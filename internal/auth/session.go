package auth

import (
	"context"
	"slices"

	"github.com/mesh-intelligence/caja/pkg/types"
)

// Session is either anonymous or an authenticated user with the permission
// names explicitly granted to them.
type Session struct {
	User        *types.User
	Permissions []string
}

// Anonymous returns the logged-out session.
func Anonymous() Session { return Session{} }

// Authenticated returns a session for u. The password hash is not kept.
func Authenticated(u types.User, permissions []string) Session {
	u.PasswordHash = ""
	return Session{User: &u, Permissions: append([]string(nil), permissions...)}
}

// IsAuthenticated reports whether a user is logged in.
func (s Session) IsAuthenticated() bool { return s.User != nil }

// HasPermission is true for an administrator regardless of grants, and
// otherwise only for an explicitly granted name.
func (s Session) HasPermission(name string) bool {
	if s.User == nil {
		return false
	}
	return s.User.IsAdmin || slices.Contains(s.Permissions, name)
}

type sessionKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session carried by ctx, or Anonymous.
func SessionFrom(ctx context.Context) Session {
	if s, ok := ctx.Value(sessionKey{}).(Session); ok {
		return s
	}
	return Anonymous()
}
