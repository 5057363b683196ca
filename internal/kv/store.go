package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mesh-intelligence/caja/pkg/types"
)

// Store implements types.Backend on a Tables store. Foreign keys and
// cascades that SQL would enforce are applied by hand.
type Store struct {
	tables       *Tables
	seed         types.SeedConfig
	seedExamples bool
	log          *slog.Logger

	initMu      sync.Mutex
	initialized bool
}

var _ types.Backend = (*Store)(nil)

// Options configure a Store.
type Options struct {
	Prefix       string
	Seed         types.SeedConfig
	SeedExamples bool
	Logger       *slog.Logger
}

// New returns a store on sub.
func New(sub Substrate, opts Options) *Store {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = types.DefaultKVPrefix
	}
	return &Store{
		tables:       NewTables(sub, prefix),
		seed:         opts.Seed,
		seedExamples: opts.SeedExamples,
		log:          log.With("component", "kv", "prefix", prefix),
	}
}

// Name implements types.Backend.
func (s *Store) Name() string { return types.BackendKV }

// Tables exposes the underlying table store.
func (s *Store) Tables() *Tables { return s.tables }

// Initialize seeds first-use data once per Store.
func (s *Store) Initialize(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.initialized {
		return nil
	}
	if err := s.seedAll(ctx); err != nil {
		return err
	}
	s.initialized = true
	return nil
}

// Close implements types.Backend.
func (s *Store) Close() error {
	return s.tables.Close()
}

func (s *Store) exists(ctx context.Context, table string, id int64) (bool, error) {
	rows, err := ListTable[idRow](ctx, s.tables, table)
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if r.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// idRow decodes only the id column of any table.
type idRow struct {
	ID int64 `json:"id"`
}

// requireRow emulates a foreign key check. The caller holds the locks of
// both the parent and the child table.
func (s *Store) requireRow(ctx context.Context, table string, id int64) error {
	ok, err := s.exists(ctx, table, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s %d does not exist", types.ErrConstraint, table, id)
	}
	return nil
}

// Users.

// AddUser inserts u, rejecting a duplicate username with types.ErrConstraint.
func (s *Store) AddUser(ctx context.Context, u types.User) (int64, error) {
	unlock := s.tables.Lock(types.UsersTable)
	defer unlock()

	users, err := load[types.User](ctx, s.tables, types.UsersTable)
	if err != nil {
		return 0, err
	}
	for _, existing := range users {
		if existing.Username == u.Username {
			return 0, fmt.Errorf("%w: username %q exists", types.ErrConstraint, u.Username)
		}
	}
	return insertLocked(ctx, s.tables, types.UsersTable, u)
}

// GetUserByUsername implements types.Backend.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*types.User, error) {
	return FindFirst(ctx, s.tables, types.UsersTable, func(u types.User) bool { return u.Username == username })
}

// GetUserByID implements types.Backend.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*types.User, error) {
	return FindByID[types.User](ctx, s.tables, types.UsersTable, id)
}

// GetAllUsers lists users by username.
func (s *Store) GetAllUsers(ctx context.Context) ([]types.User, error) {
	users, err := ListTable[types.User](ctx, s.tables, types.UsersTable)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// UpdateUser rewrites u.ID, rejecting a username held by another user.
func (s *Store) UpdateUser(ctx context.Context, u types.User) (int64, error) {
	unlock := s.tables.Lock(types.UsersTable)
	defer unlock()

	users, err := load[types.User](ctx, s.tables, types.UsersTable)
	if err != nil {
		return 0, err
	}
	for _, existing := range users {
		if existing.Username == u.Username && existing.ID != u.ID {
			return 0, fmt.Errorf("%w: username %q exists", types.ErrConstraint, u.Username)
		}
	}
	return updateLocked(ctx, s.tables, types.UsersTable, byID[types.User](u.ID), func(types.User) types.User { return u })
}

// DeleteUser removes a user and their grants; their sales keep a zero
// cashier id.
func (s *Store) DeleteUser(ctx context.Context, id int64) (int64, error) {
	unlock := s.tables.Lock(types.UsersTable, types.UserPermissionsTable, types.SalesTable)
	defer unlock()

	n, err := deleteLocked(ctx, s.tables, types.UsersTable, byID[types.User](id))
	if err != nil || n == 0 {
		return n, err
	}
	if _, err := deleteLocked(ctx, s.tables, types.UserPermissionsTable,
		func(up types.UserPermission) bool { return up.UserID == id }); err != nil {
		return n, err
	}
	_, err = updateLocked(ctx, s.tables, types.SalesTable,
		func(sale types.Sale) bool { return sale.UserID == id },
		func(sale types.Sale) types.Sale { sale.UserID = 0; return sale })
	return n, err
}

// HasAdmin implements types.Backend.
func (s *Store) HasAdmin(ctx context.Context) (bool, error) {
	_, err := FindFirst(ctx, s.tables, types.UsersTable, func(u types.User) bool { return u.IsAdmin })
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Permissions.

// GetAllPermissions lists the catalog by id.
func (s *Store) GetAllPermissions(ctx context.Context) ([]types.Permission, error) {
	perms, err := ListTable[types.Permission](ctx, s.tables, types.PermissionsTable)
	if err != nil {
		return nil, err
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].ID < perms[j].ID })
	return perms, nil
}

// GetPermissionByName implements types.Backend.
func (s *Store) GetPermissionByName(ctx context.Context, name string) (*types.Permission, error) {
	return FindFirst(ctx, s.tables, types.PermissionsTable, func(p types.Permission) bool { return p.Name == name })
}

// GetUserPermissions returns the names granted to userID in catalog order.
func (s *Store) GetUserPermissions(ctx context.Context, userID int64) ([]string, error) {
	grants, err := Filter(ctx, s.tables, types.UserPermissionsTable,
		func(up types.UserPermission) bool { return up.UserID == userID })
	if err != nil {
		return nil, err
	}
	perms, err := s.GetAllPermissions(ctx)
	if err != nil {
		return nil, err
	}
	granted := make(map[int64]bool, len(grants))
	for _, g := range grants {
		granted[g.PermissionID] = true
	}
	names := []string{}
	for _, p := range perms {
		if granted[p.ID] {
			names = append(names, p.Name)
		}
	}
	return names, nil
}

// AssignPermissionToUser adds the grant unless it already exists.
func (s *Store) AssignPermissionToUser(ctx context.Context, userID, permissionID int64) (int64, error) {
	unlock := s.tables.Lock(types.UsersTable, types.PermissionsTable, types.UserPermissionsTable)
	defer unlock()

	if err := s.requireRow(ctx, types.UsersTable, userID); err != nil {
		return 0, err
	}
	if err := s.requireRow(ctx, types.PermissionsTable, permissionID); err != nil {
		return 0, err
	}

	grants, err := load[types.UserPermission](ctx, s.tables, types.UserPermissionsTable)
	if err != nil {
		return 0, err
	}
	for _, g := range grants {
		if g.UserID == userID && g.PermissionID == permissionID {
			return 0, nil
		}
	}
	grants = append(grants, types.UserPermission{UserID: userID, PermissionID: permissionID})
	if err := save(ctx, s.tables, types.UserPermissionsTable, grants); err != nil {
		return 0, err
	}
	return 1, nil
}

// RevokePermissionFromUser implements types.Backend.
func (s *Store) RevokePermissionFromUser(ctx context.Context, userID, permissionID int64) (int64, error) {
	return DeleteWhere(ctx, s.tables, types.UserPermissionsTable, func(up types.UserPermission) bool {
		return up.UserID == userID && up.PermissionID == permissionID
	})
}

// Products.

// AddProduct implements types.Backend.
func (s *Store) AddProduct(ctx context.Context, p types.Product) (int64, error) {
	return InsertInto(ctx, s.tables, types.ProductsTable, p)
}

// GetAllProducts lists products by name, then id.
func (s *Store) GetAllProducts(ctx context.Context) ([]types.Product, error) {
	products, err := ListTable[types.Product](ctx, s.tables, types.ProductsTable)
	if err != nil {
		return nil, err
	}
	sort.Slice(products, func(i, j int) bool {
		if products[i].Name != products[j].Name {
			return products[i].Name < products[j].Name
		}
		return products[i].ID < products[j].ID
	})
	return products, nil
}

// GetProductByID implements types.Backend.
func (s *Store) GetProductByID(ctx context.Context, id int64) (*types.Product, error) {
	return FindByID[types.Product](ctx, s.tables, types.ProductsTable, id)
}

// UpdateProduct implements types.Backend.
func (s *Store) UpdateProduct(ctx context.Context, p types.Product) (int64, error) {
	return UpdateWhere(ctx, s.tables, types.ProductsTable, byID[types.Product](p.ID),
		func(types.Product) types.Product { return p })
}

// DeleteProduct removes a product. Sale lines that referenced it keep their
// copied name and price with a zero product id.
func (s *Store) DeleteProduct(ctx context.Context, id int64) (int64, error) {
	unlock := s.tables.Lock(types.ProductsTable, types.SaleItemsTable)
	defer unlock()

	n, err := deleteLocked(ctx, s.tables, types.ProductsTable, byID[types.Product](id))
	if err != nil || n == 0 {
		return n, err
	}
	_, err = updateLocked(ctx, s.tables, types.SaleItemsTable,
		func(it types.SaleItem) bool { return it.ProductID == id },
		func(it types.SaleItem) types.SaleItem { it.ProductID = 0; return it })
	return n, err
}

// Sales.

// AddSale implements types.Backend.
func (s *Store) AddSale(ctx context.Context, sale types.Sale) (int64, error) {
	unlock := s.tables.Lock(types.UsersTable, types.SalesTable)
	defer unlock()

	if sale.UserID != 0 {
		if err := s.requireRow(ctx, types.UsersTable, sale.UserID); err != nil {
			return 0, err
		}
	}
	return insertLocked(ctx, s.tables, types.SalesTable, sale)
}

// AddSaleItem stores one line of an existing sale.
func (s *Store) AddSaleItem(ctx context.Context, item types.SaleItem) (int64, error) {
	unlock := s.tables.Lock(types.SalesTable, types.ProductsTable, types.SaleItemsTable)
	defer unlock()

	if err := s.requireRow(ctx, types.SalesTable, item.SaleID); err != nil {
		return 0, err
	}
	if item.ProductID != 0 {
		if err := s.requireRow(ctx, types.ProductsTable, item.ProductID); err != nil {
			return 0, err
		}
	}
	return insertLocked(ctx, s.tables, types.SaleItemsTable, item)
}

// GetAllSales lists sales newest first.
func (s *Store) GetAllSales(ctx context.Context) ([]types.Sale, error) {
	sales, err := ListTable[types.Sale](ctx, s.tables, types.SalesTable)
	if err != nil {
		return nil, err
	}
	sort.Slice(sales, func(i, j int) bool { return sales[i].Before(sales[j]) })
	return sales, nil
}

// GetSaleByID implements types.Backend.
func (s *Store) GetSaleByID(ctx context.Context, id int64) (*types.Sale, error) {
	return FindByID[types.Sale](ctx, s.tables, types.SalesTable, id)
}

// GetSaleItems lists the lines of a sale in insertion order.
func (s *Store) GetSaleItems(ctx context.Context, saleID int64) ([]types.SaleItem, error) {
	items, err := Filter(ctx, s.tables, types.SaleItemsTable, func(it types.SaleItem) bool { return it.SaleID == saleID })
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// DeleteSale removes a sale and its lines.
func (s *Store) DeleteSale(ctx context.Context, id int64) (int64, error) {
	unlock := s.tables.Lock(types.SalesTable, types.SaleItemsTable)
	defer unlock()

	n, err := deleteLocked(ctx, s.tables, types.SalesTable, byID[types.Sale](id))
	if err != nil || n == 0 {
		return n, err
	}
	_, err = deleteLocked(ctx, s.tables, types.SaleItemsTable, func(it types.SaleItem) bool { return it.SaleID == id })
	return n, err
}

// Expenses.

// AddExpense implements types.Backend.
func (s *Store) AddExpense(ctx context.Context, e types.Expense) (int64, error) {
	return InsertInto(ctx, s.tables, types.ExpensesTable, e)
}

// GetAllExpenses lists expenses newest first.
func (s *Store) GetAllExpenses(ctx context.Context) ([]types.Expense, error) {
	expenses, err := ListTable[types.Expense](ctx, s.tables, types.ExpensesTable)
	if err != nil {
		return nil, err
	}
	sort.Slice(expenses, func(i, j int) bool { return expenses[i].Before(expenses[j]) })
	return expenses, nil
}

// GetExpenseByID implements types.Backend.
func (s *Store) GetExpenseByID(ctx context.Context, id int64) (*types.Expense, error) {
	return FindByID[types.Expense](ctx, s.tables, types.ExpensesTable, id)
}

// UpdateExpense implements types.Backend.
func (s *Store) UpdateExpense(ctx context.Context, e types.Expense) (int64, error) {
	return UpdateWhere(ctx, s.tables, types.ExpensesTable, byID[types.Expense](e.ID),
		func(types.Expense) types.Expense { return e })
}

// DeleteExpense implements types.Backend.
func (s *Store) DeleteExpense(ctx context.Context, id int64) (int64, error) {
	return DeleteWhere(ctx, s.tables, types.ExpensesTable, byID[types.Expense](id))
}

// Costings.

// AddCosting implements types.Backend.
func (s *Store) AddCosting(ctx context.Context, c types.Costing) (int64, error) {
	return InsertInto(ctx, s.tables, types.CostingsTable, c)
}

// AddCostingItem stores one line of an existing costing.
func (s *Store) AddCostingItem(ctx context.Context, item types.CostingItem) (int64, error) {
	unlock := s.tables.Lock(types.CostingsTable, types.CostingItemsTable)
	defer unlock()

	if err := s.requireRow(ctx, types.CostingsTable, item.CostingID); err != nil {
		return 0, err
	}
	return insertLocked(ctx, s.tables, types.CostingItemsTable, item)
}

// GetAllCostings lists costings newest first.
func (s *Store) GetAllCostings(ctx context.Context) ([]types.Costing, error) {
	costings, err := ListTable[types.Costing](ctx, s.tables, types.CostingsTable)
	if err != nil {
		return nil, err
	}
	sort.Slice(costings, func(i, j int) bool {
		if costings[i].CostingDate != costings[j].CostingDate {
			return costings[i].CostingDate > costings[j].CostingDate
		}
		return costings[i].ID > costings[j].ID
	})
	return costings, nil
}

// GetCostingByID implements types.Backend.
func (s *Store) GetCostingByID(ctx context.Context, id int64) (*types.Costing, error) {
	return FindByID[types.Costing](ctx, s.tables, types.CostingsTable, id)
}

// GetCostingItems lists the lines of a costing in insertion order.
func (s *Store) GetCostingItems(ctx context.Context, costingID int64) ([]types.CostingItem, error) {
	items, err := Filter(ctx, s.tables, types.CostingItemsTable,
		func(it types.CostingItem) bool { return it.CostingID == costingID })
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// DeleteCosting removes a costing and its lines.
func (s *Store) DeleteCosting(ctx context.Context, id int64) (int64, error) {
	unlock := s.tables.Lock(types.CostingsTable, types.CostingItemsTable)
	defer unlock()

	n, err := deleteLocked(ctx, s.tables, types.CostingsTable, byID[types.Costing](id))
	if err != nil || n == 0 {
		return n, err
	}
	_, err = deleteLocked(ctx, s.tables, types.CostingItemsTable,
		func(it types.CostingItem) bool { return it.CostingID == id })
	return n, err
}

// Inventory.

// EnsureInventoryTables is a no-op: missing tables read as empty.
func (s *Store) EnsureInventoryTables(ctx context.Context) error {
	return s.tables.checkOpen()
}

// AddInventoryItem inserts an item and, for a non-zero opening stock, its
// first movement.
func (s *Store) AddInventoryItem(ctx context.Context, item types.InventoryItem) (int64, error) {
	if item.Stock < 0 {
		return 0, types.ErrInsufficientStock
	}
	if item.CreatedAt == "" {
		item.CreatedAt = time.Now().Format(types.TimestampLayout)
	}

	unlock := s.tables.Lock(types.InventoryItemsTable, types.InventoryMovementsTable)
	defer unlock()

	id, err := insertLocked(ctx, s.tables, types.InventoryItemsTable, item)
	if err != nil || item.Stock == 0 {
		return id, err
	}
	if _, err := insertLocked(ctx, s.tables, types.InventoryMovementsTable, types.InventoryMovement{
		ItemID:    id,
		Delta:     item.Stock,
		Reason:    "opening stock",
		CreatedAt: item.CreatedAt,
	}); err != nil {
		s.undo(ctx, types.InventoryItemsTable, id, func() error {
			_, err := deleteLocked(ctx, s.tables, types.InventoryItemsTable, byID[types.InventoryItem](id))
			return err
		})
		return 0, err
	}
	return id, nil
}

// undo reverts the first half of a two-table write whose second half failed.
// A failed revert is logged; the original error is what the caller returns.
func (s *Store) undo(ctx context.Context, table string, id int64, revert func() error) {
	if err := revert(); err != nil {
		s.log.ErrorContext(ctx, "reverting partial write", "table", table, "id", id, "error", err)
	}
}

// GetAllInventoryItems lists items by name, then id.
func (s *Store) GetAllInventoryItems(ctx context.Context) ([]types.InventoryItem, error) {
	items, err := ListTable[types.InventoryItem](ctx, s.tables, types.InventoryItemsTable)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// GetInventoryItemByID implements types.Backend.
func (s *Store) GetInventoryItemByID(ctx context.Context, id int64) (*types.InventoryItem, error) {
	return FindByID[types.InventoryItem](ctx, s.tables, types.InventoryItemsTable, id)
}

// AdjustInventory appends a movement and rewrites the balance while holding
// both inventory table locks.
func (s *Store) AdjustInventory(ctx context.Context, itemID, delta int64, reason string) (int64, error) {
	unlock := s.tables.Lock(types.InventoryItemsTable, types.InventoryMovementsTable)
	defer unlock()

	items, err := load[types.InventoryItem](ctx, s.tables, types.InventoryItemsTable)
	if err != nil {
		return 0, err
	}
	idx := -1
	for i := range items {
		if items[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, types.ErrNotFound
	}
	stock := items[idx].Stock + delta
	if stock < 0 {
		return 0, types.ErrInsufficientStock
	}

	moveID, err := insertLocked(ctx, s.tables, types.InventoryMovementsTable, types.InventoryMovement{
		ItemID:    itemID,
		Delta:     delta,
		Reason:    reason,
		CreatedAt: time.Now().Format(types.TimestampLayout),
	})
	if err != nil {
		return 0, err
	}
	items[idx].Stock = stock
	if err := save(ctx, s.tables, types.InventoryItemsTable, items); err != nil {
		s.undo(ctx, types.InventoryMovementsTable, moveID, func() error {
			_, err := deleteLocked(ctx, s.tables, types.InventoryMovementsTable, byID[types.InventoryMovement](moveID))
			return err
		})
		return 0, err
	}
	return stock, nil
}

// GetItemMovements lists an item's movements oldest first.
func (s *Store) GetItemMovements(ctx context.Context, itemID int64) ([]types.InventoryMovement, error) {
	moves, err := Filter(ctx, s.tables, types.InventoryMovementsTable,
		func(m types.InventoryMovement) bool { return m.ItemID == itemID })
	if err != nil {
		return nil, err
	}
	sort.Slice(moves, func(i, j int) bool { return moves[i].ID < moves[j].ID })
	return moves, nil
}
