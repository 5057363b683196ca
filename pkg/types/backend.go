package types

import "context"

// Backend is the storage contract both the native SQLite store and the
// key/value table store implement. Only the façade holds a Backend; callers
// never see which implementation is active.
//
// Conventions shared by every implementation:
//   - Add* returns the newly assigned id.
//   - Update*/Delete*/Revoke* return the number of rows changed; 0 means the
//     target does not exist and is not an error.
//   - Get*ByID / Get*ByName return ErrNotFound when no row matches.
//   - Deleting a parent removes its dependent rows (sale items, costing
//     items, grants, movements).
type Backend interface {
	// Name identifies the implementation ("sqlite" or "kv").
	Name() string

	// Initialize creates the schema and seeds first-run data. Subsequent
	// calls are no-ops.
	Initialize(ctx context.Context) error

	// Close releases the underlying handle. Close is idempotent.
	Close() error

	AddUser(ctx context.Context, u User) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetAllUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, u User) (int64, error)
	DeleteUser(ctx context.Context, id int64) (int64, error)
	HasAdmin(ctx context.Context) (bool, error)

	GetAllPermissions(ctx context.Context) ([]Permission, error)
	GetPermissionByName(ctx context.Context, name string) (*Permission, error)
	GetUserPermissions(ctx context.Context, userID int64) ([]string, error)
	// AssignPermissionToUser is idempotent: granting twice leaves one row and
	// the second call reports 0 rows changed.
	AssignPermissionToUser(ctx context.Context, userID, permissionID int64) (int64, error)
	RevokePermissionFromUser(ctx context.Context, userID, permissionID int64) (int64, error)

	AddProduct(ctx context.Context, p Product) (int64, error)
	// GetAllProducts lists products by name ascending.
	GetAllProducts(ctx context.Context) ([]Product, error)
	GetProductByID(ctx context.Context, id int64) (*Product, error)
	UpdateProduct(ctx context.Context, p Product) (int64, error)
	DeleteProduct(ctx context.Context, id int64) (int64, error)

	AddSale(ctx context.Context, s Sale) (int64, error)
	AddSaleItem(ctx context.Context, item SaleItem) (int64, error)
	// GetAllSales lists sales newest first by date, then time.
	GetAllSales(ctx context.Context) ([]Sale, error)
	GetSaleByID(ctx context.Context, id int64) (*Sale, error)
	GetSaleItems(ctx context.Context, saleID int64) ([]SaleItem, error)
	DeleteSale(ctx context.Context, id int64) (int64, error)

	AddExpense(ctx context.Context, e Expense) (int64, error)
	// GetAllExpenses lists expenses newest first.
	GetAllExpenses(ctx context.Context) ([]Expense, error)
	GetExpenseByID(ctx context.Context, id int64) (*Expense, error)
	UpdateExpense(ctx context.Context, e Expense) (int64, error)
	DeleteExpense(ctx context.Context, id int64) (int64, error)

	AddCosting(ctx context.Context, c Costing) (int64, error)
	AddCostingItem(ctx context.Context, item CostingItem) (int64, error)
	// GetAllCostings lists costings newest first.
	GetAllCostings(ctx context.Context) ([]Costing, error)
	GetCostingByID(ctx context.Context, id int64) (*Costing, error)
	GetCostingItems(ctx context.Context, costingID int64) ([]CostingItem, error)
	DeleteCosting(ctx context.Context, id int64) (int64, error)

	// EnsureInventoryTables creates the inventory tables when missing.
	EnsureInventoryTables(ctx context.Context) error
	AddInventoryItem(ctx context.Context, item InventoryItem) (int64, error)
	// GetAllInventoryItems lists items by name ascending.
	GetAllInventoryItems(ctx context.Context) ([]InventoryItem, error)
	GetInventoryItemByID(ctx context.Context, id int64) (*InventoryItem, error)
	// AdjustInventory records a movement and updates the item's stock in one
	// write, returning the new balance. It returns ErrNotFound for an unknown
	// item and ErrInsufficientStock when the balance would go negative.
	AdjustInventory(ctx context.Context, itemID, delta int64, reason string) (int64, error)
	// GetItemMovements lists an item's movements oldest first.
	GetItemMovements(ctx context.Context, itemID int64) ([]InventoryMovement, error)
}
