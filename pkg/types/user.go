package types

// Permission names in the seeded catalog. A permission gates one area of the
// terminal.
const (
	PermCashRegister = "cash_register"
	PermProducts     = "products"
	PermReceipts     = "receipts"
	PermExpenses     = "expenses"
	PermCostings     = "costings"
	PermReports      = "reports"
	PermUsers        = "users"
	PermInventory    = "inventory"
)

// PermissionCatalog is the fixed set of permissions seeded on first run, in
// seeding order.
var PermissionCatalog = []string{
	PermCashRegister,
	PermProducts,
	PermReceipts,
	PermExpenses,
	PermCostings,
	PermReports,
	PermUsers,
	PermInventory,
}

// IsKnownPermission reports whether name belongs to the catalog.
func IsKnownPermission(name string) bool {
	for _, p := range PermissionCatalog {
		if p == name {
			return true
		}
	}
	return false
}

// Permission is a named capability.
type Permission struct {
	ID   int64  `json:"id"`
	Name string `json:"name"` // Unique.
}

// User is a terminal operator. An admin implicitly holds every permission.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`      // Unique.
	PasswordHash string `json:"password_hash"` // One-way hash; never plaintext.
	IsAdmin      bool   `json:"is_admin"`
}

// UserPermission grants one permission to one user. The pair is the key.
type UserPermission struct {
	UserID       int64 `json:"user_id"`
	PermissionID int64 `json:"permission_id"`
}

func (p Permission) GetID() int64 { return p.ID }
func (p Permission) WithID(id int64) Permission { p.ID = id; return p }

func (u User) GetID() int64 { return u.ID }
func (u User) WithID(id int64) User { u.ID = id; return u }
