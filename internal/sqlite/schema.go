// Package sqlite implements the native storage backend on an embedded SQLite
// file: connection lifecycle, schema, seed data, and the types.Backend
// operations.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// schemaVersion is recorded in schema_version once the DDL below has been
// applied to a database file.
const schemaVersion = 1

// Schema DDL. Every statement is idempotent so createSchema can run on each
// startup.
const (
	createSchemaVersion = `CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);`

	createPermissions = `CREATE TABLE IF NOT EXISTS permissions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);`

	createUsers = `CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    is_admin INTEGER NOT NULL DEFAULT 0
);`

	createUserPermissions = `CREATE TABLE IF NOT EXISTS user_permissions (
    user_id INTEGER NOT NULL,
    permission_id INTEGER NOT NULL,
    PRIMARY KEY (user_id, permission_id),
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
    FOREIGN KEY (permission_id) REFERENCES permissions(id) ON DELETE CASCADE
);`

	createProducts = `CREATE TABLE IF NOT EXISTS products (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    price REAL NOT NULL,
    cost REAL NOT NULL DEFAULT 0
);`

	createSales = `CREATE TABLE IF NOT EXISTS sales (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    sale_date TEXT NOT NULL,
    sale_time TEXT NOT NULL,
    total_amount REAL NOT NULL,
    payment_received REAL NOT NULL,
    change_given REAL NOT NULL,
    business_name TEXT NOT NULL DEFAULT '',
    user_id INTEGER,
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE SET NULL
);`

	createSaleItems = `CREATE TABLE IF NOT EXISTS sale_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    sale_id INTEGER NOT NULL,
    product_id INTEGER,
    product_name TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    price_at_sale REAL NOT NULL,
    FOREIGN KEY (sale_id) REFERENCES sales(id) ON DELETE CASCADE,
    FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE SET NULL
);`

	createExpenses = `CREATE TABLE IF NOT EXISTS expenses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    expense_date TEXT NOT NULL,
    expense_time TEXT NOT NULL,
    description TEXT NOT NULL,
    amount REAL NOT NULL
);`

	createCostings = `CREATE TABLE IF NOT EXISTS costings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    total_cost REAL NOT NULL,
    costing_date TEXT NOT NULL
);`

	createCostingItems = `CREATE TABLE IF NOT EXISTS costing_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    costing_id INTEGER NOT NULL,
    item_name TEXT NOT NULL,
    unit_of_measure TEXT NOT NULL DEFAULT '',
    unit_price REAL NOT NULL,
    quantity_used REAL NOT NULL,
    FOREIGN KEY (costing_id) REFERENCES costings(id) ON DELETE CASCADE
);`

	createInventoryItems = `CREATE TABLE IF NOT EXISTS inventory_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    unit TEXT NOT NULL DEFAULT '',
    stock INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);`

	createInventoryMovements = `CREATE TABLE IF NOT EXISTS inventory_movements (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    item_id INTEGER NOT NULL,
    delta INTEGER NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    FOREIGN KEY (item_id) REFERENCES inventory_items(id) ON DELETE CASCADE
);`
)

// Index DDL for the common lookup and ordering paths.
const (
	createSaleItemsIndex = `CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id);`
	createSalesIndex     = `CREATE INDEX IF NOT EXISTS idx_sales_date ON sales(sale_date, sale_time);`
	createCostingIndex   = `CREATE INDEX IF NOT EXISTS idx_costing_items_costing ON costing_items(costing_id);`
	createMovementsIndex = `CREATE INDEX IF NOT EXISTS idx_movements_item ON inventory_movements(item_id);`
)

// coreDDL lists the core statements in dependency order.
var coreDDL = []string{
	createSchemaVersion,
	createPermissions,
	createUsers,
	createUserPermissions,
	createProducts,
	createSales,
	createSaleItems,
	createExpenses,
	createCostings,
	createCostingItems,
	createSaleItemsIndex,
	createSalesIndex,
	createCostingIndex,
}

// inventoryDDL is applied by createSchema and again, on demand, by
// EnsureInventoryTables for databases created before inventory existed.
var inventoryDDL = []string{
	createInventoryItems,
	createInventoryMovements,
	createMovementsIndex,
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// createSchema executes every DDL statement and records the schema version.
// The first failing statement aborts with its error.
func createSchema(ctx context.Context, db *sql.DB) error {
	if err := execAll(ctx, db, coreDDL); err != nil {
		return err
	}
	if err := execAll(ctx, db, inventoryDDL); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx,
		"INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, ?)",
		schemaVersion, time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}
	return nil
}

func execAll(ctx context.Context, db execer, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}
	return nil
}

// currentSchemaVersion returns the highest recorded schema version, 0 when
// none is recorded.
func currentSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}
