package sqlite

import (
	"context"

	"github.com/mesh-intelligence/caja/pkg/types"
)

const userColumns = "id, username, password_hash, is_admin"

func scanUser(row scanner) (types.User, error) {
	var u types.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin)
	return u, err
}

func scanPermission(row scanner) (types.Permission, error) {
	var p types.Permission
	err := row.Scan(&p.ID, &p.Name)
	return p, err
}

// AddUser inserts u and returns its id. A duplicate username surfaces as
// types.ErrConstraint; the façade checks first and reports ErrUsernameTaken.
func (s *Store) AddUser(ctx context.Context, u types.User) (int64, error) {
	return s.insert(ctx,
		"INSERT INTO users (username, password_hash, is_admin) VALUES (?, ?, ?)",
		u.Username, u.PasswordHash, u.IsAdmin,
	)
}

// GetUserByUsername returns the user with the given username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*types.User, error) {
	return queryOne(ctx, s, scanUser, "SELECT "+userColumns+" FROM users WHERE username = ?", username)
}

// GetUserByID returns the user with the given id.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*types.User, error) {
	return queryOne(ctx, s, scanUser, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// GetAllUsers lists users by username.
func (s *Store) GetAllUsers(ctx context.Context) ([]types.User, error) {
	return queryAll(ctx, s, scanUser, "SELECT "+userColumns+" FROM users ORDER BY username ASC")
}

// UpdateUser rewrites username, hash and admin flag of u.ID.
func (s *Store) UpdateUser(ctx context.Context, u types.User) (int64, error) {
	return s.exec(ctx,
		"UPDATE users SET username = ?, password_hash = ?, is_admin = ? WHERE id = ?",
		u.Username, u.PasswordHash, u.IsAdmin, u.ID,
	)
}

// DeleteUser removes a user; grants cascade and the user's sales keep a
// NULL cashier.
func (s *Store) DeleteUser(ctx context.Context, id int64) (int64, error) {
	return s.exec(ctx, "DELETE FROM users WHERE id = ?", id)
}

// HasAdmin reports whether any admin user exists.
func (s *Store) HasAdmin(ctx context.Context) (bool, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return false, err
	}
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE is_admin = 1").Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetAllPermissions lists the catalog by id.
func (s *Store) GetAllPermissions(ctx context.Context) ([]types.Permission, error) {
	return queryAll(ctx, s, scanPermission, "SELECT id, name FROM permissions ORDER BY id ASC")
}

// GetPermissionByName returns the named permission.
func (s *Store) GetPermissionByName(ctx context.Context, name string) (*types.Permission, error) {
	return queryOne(ctx, s, scanPermission, "SELECT id, name FROM permissions WHERE name = ?", name)
}

// GetUserPermissions returns the names of the permissions explicitly granted
// to userID.
func (s *Store) GetUserPermissions(ctx context.Context, userID int64) ([]string, error) {
	return queryAll(ctx, s, func(row scanner) (string, error) {
		var name string
		err := row.Scan(&name)
		return name, err
	}, `SELECT p.name FROM user_permissions up
JOIN permissions p ON p.id = up.permission_id
WHERE up.user_id = ?
ORDER BY p.id ASC`, userID)
}

// AssignPermissionToUser grants a permission. Granting an existing pair
// changes nothing and returns 0.
func (s *Store) AssignPermissionToUser(ctx context.Context, userID, permissionID int64) (int64, error) {
	return s.exec(ctx,
		"INSERT OR IGNORE INTO user_permissions (user_id, permission_id) VALUES (?, ?)",
		userID, permissionID,
	)
}

// RevokePermissionFromUser removes one grant.
func (s *Store) RevokePermissionFromUser(ctx context.Context, userID, permissionID int64) (int64, error) {
	return s.exec(ctx,
		"DELETE FROM user_permissions WHERE user_id = ? AND permission_id = ?",
		userID, permissionID,
	)
}
