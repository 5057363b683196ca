package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/caja/pkg/types"
)

func TestSessionHasPermission(t *testing.T) {
	clerk := Authenticated(types.User{ID: 2, Username: "clerk", PasswordHash: "h"}, []string{types.PermCashRegister})
	admin := Authenticated(types.User{ID: 1, Username: "root", IsAdmin: true}, nil)

	tests := []struct {
		name    string
		session Session
		perm    string
		want    bool
	}{
		{"anonymous", Anonymous(), types.PermCashRegister, false},
		{"granted", clerk, types.PermCashRegister, true},
		{"not granted", clerk, types.PermReports, false},
		{"admin without grants", admin, types.PermUsers, true},
		{"admin unknown permission", admin, "anything", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.session.HasPermission(tt.perm))
		})
	}
	assert.Empty(t, clerk.User.PasswordHash)
}

func TestSessionContext(t *testing.T) {
	ctx := context.Background()
	assert.False(t, SessionFrom(ctx).IsAuthenticated())

	s := Authenticated(types.User{ID: 3, Username: "ana"}, nil)
	got := SessionFrom(WithSession(ctx, s))
	assert.True(t, got.IsAuthenticated())
	assert.Equal(t, "ana", got.User.Username)
}
