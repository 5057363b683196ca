package types

// Logical table names shared by both backends.
const (
	PermissionsTable        = "permissions"
	UsersTable              = "users"
	UserPermissionsTable    = "user_permissions"
	ProductsTable           = "products"
	SalesTable              = "sales"
	SaleItemsTable          = "sale_items"
	ExpensesTable           = "expenses"
	CostingsTable           = "costings"
	CostingItemsTable       = "costing_items"
	InventoryItemsTable     = "inventory_items"
	InventoryMovementsTable = "inventory_movements"
)

// StandardTableNames lists all logical tables in dependency order: a table
// appears after every table it references.
var StandardTableNames = []string{
	PermissionsTable,
	UsersTable,
	UserPermissionsTable,
	ProductsTable,
	SalesTable,
	SaleItemsTable,
	ExpensesTable,
	CostingsTable,
	CostingItemsTable,
	InventoryItemsTable,
	InventoryMovementsTable,
}

// Date and time layouts used for every persisted timestamp. Values are
// captured in the local zone.
const (
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04:05"
	TimestampLayout = "2006-01-02 15:04:05"
)
