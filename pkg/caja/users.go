package caja

import (
	"context"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/caja/pkg/types"
)

// AddUser stores u and returns its id. A username already in use yields
// types.ErrUsernameTaken.
func (s *Store) AddUser(ctx context.Context, u types.User) (int64, error) {
	if u.Username == "" || u.PasswordHash == "" {
		return 0, types.ErrInvalidData
	}
	existing, err := s.backend.GetUserByUsername(ctx, u.Username)
	switch {
	case err == nil:
		return 0, fmt.Errorf("%w: %s", types.ErrUsernameTaken, existing.Username)
	case !isNotFound(err):
		return 0, err
	}
	id, err := s.backend.AddUser(ctx, u)
	if errors.Is(err, types.ErrConstraint) {
		return 0, fmt.Errorf("%w: %s", types.ErrUsernameTaken, u.Username)
	}
	return id, err
}

// GetUserByUsername returns types.ErrNotFound for an unknown name.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*types.User, error) {
	return s.backend.GetUserByUsername(ctx, username)
}

// GetUserByID returns types.ErrNotFound for an unknown id.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*types.User, error) {
	return s.backend.GetUserByID(ctx, id)
}

// GetAllUsers lists users by username.
func (s *Store) GetAllUsers(ctx context.Context) []types.User {
	return list(ctx, s, "GetAllUsers", s.backend.GetAllUsers)
}

// UpdateUser rewrites u and returns the rows changed. Renaming onto a
// username held by another user yields types.ErrUsernameTaken.
func (s *Store) UpdateUser(ctx context.Context, u types.User) (int64, error) {
	existing, err := s.backend.GetUserByUsername(ctx, u.Username)
	switch {
	case err == nil && existing.ID != u.ID:
		return 0, fmt.Errorf("%w: %s", types.ErrUsernameTaken, u.Username)
	case err != nil && !isNotFound(err):
		return 0, err
	}
	n, err := s.backend.UpdateUser(ctx, u)
	if errors.Is(err, types.ErrConstraint) {
		return 0, fmt.Errorf("%w: %s", types.ErrUsernameTaken, u.Username)
	}
	return n, err
}

// DeleteUser removes the user and their grants.
func (s *Store) DeleteUser(ctx context.Context, id int64) (int64, error) {
	return s.backend.DeleteUser(ctx, id)
}

// HasAdmin reports whether any administrator exists.
func (s *Store) HasAdmin(ctx context.Context) (bool, error) {
	return s.backend.HasAdmin(ctx)
}

// SeedAdminUser creates an administrator unless one already exists, in
// which case it returns (nil, nil).
func (s *Store) SeedAdminUser(ctx context.Context, username, passwordHash string) (*types.User, error) {
	ok, err := s.backend.HasAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}
	u := types.User{Username: username, PasswordHash: passwordHash, IsAdmin: true}
	id, err := s.AddUser(ctx, u)
	if err != nil {
		return nil, err
	}
	s.log.Info("administrator seeded", "username", username, "id", id)
	u.ID = id
	return &u, nil
}

// GetAllPermissions lists the permission catalog.
func (s *Store) GetAllPermissions(ctx context.Context) []types.Permission {
	return list(ctx, s, "GetAllPermissions", s.backend.GetAllPermissions)
}

// GetPermissionByName returns types.ErrNotFound for a name outside the
// catalog.
func (s *Store) GetPermissionByName(ctx context.Context, name string) (*types.Permission, error) {
	return s.backend.GetPermissionByName(ctx, name)
}

// GetUserPermissions lists the permission names explicitly granted to a user.
func (s *Store) GetUserPermissions(ctx context.Context, userID int64) []string {
	return list(ctx, s, "GetUserPermissions", func(ctx context.Context) ([]string, error) {
		return s.backend.GetUserPermissions(ctx, userID)
	})
}

// AssignPermissionToUser grants a permission; granting twice changes nothing.
func (s *Store) AssignPermissionToUser(ctx context.Context, userID, permissionID int64) (int64, error) {
	return s.backend.AssignPermissionToUser(ctx, userID, permissionID)
}

// RevokePermissionFromUser removes a grant.
func (s *Store) RevokePermissionFromUser(ctx context.Context, userID, permissionID int64) (int64, error) {
	return s.backend.RevokePermissionFromUser(ctx, userID, permissionID)
}
