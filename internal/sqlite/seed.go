package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/caja/pkg/types"
)

// seedPermissions inserts the permission catalog if the permissions table is
// empty. Seeding is idempotent: a non-empty table is left untouched, so
// repeat runs never hit the unique name constraint.
func seedPermissions(ctx context.Context, db *sql.DB) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM permissions").Scan(&count); err != nil {
		return fmt.Errorf("counting permissions: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, name := range types.PermissionCatalog {
		if _, err := tx.ExecContext(ctx, "INSERT INTO permissions (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("seeding permission %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing seed transaction: %w", err)
	}
	return nil
}
