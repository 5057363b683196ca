// Package backendtest is a behavioral suite every types.Backend
// implementation must pass. Backend packages call Run from their tests.
package backendtest

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/caja/pkg/types"
)

// Factory returns a fresh, empty, uninitialized backend. It should register
// cleanup with t.
type Factory func(t *testing.T) types.Backend

// Run executes every behavioral check against backends built by newBackend.
func Run(t *testing.T, newBackend Factory) {
	tests := []struct {
		name string
		run  func(t *testing.T, ctx context.Context, b types.Backend)
	}{
		{"InitializeSeedsPermissionsOnce", testInitialize},
		{"UserCRUD", testUserCRUD},
		{"HasAdmin", testHasAdmin},
		{"GrantIsIdempotent", testGrants},
		{"DeleteUserCascadesGrants", testDeleteUserCascade},
		{"DeleteUserKeepsSales", testDeleteUserKeepsSales},
		{"ProductCRUD", testProductCRUD},
		{"UpdateMissingProductReturnsZero", testUpdateMissingProduct},
		{"IDsAreNeverReused", testMonotonicIDs},
		{"SaleScenario", testSaleScenario},
		{"SalesNewestFirst", testSalesOrder},
		{"SaleItemsArePointInTime", testSaleItemsPointInTime},
		{"ExpenseCRUD", testExpenses},
		{"CostingCascade", testCostings},
		{"InventoryReconciles", testInventory},
		{"InventoryRejectsNegativeStock", testInventoryNegative},
		{"ClosedBackendRejectsCalls", testClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			b := newBackend(t)
			require.NoError(t, b.Initialize(ctx))
			tt.run(t, ctx, b)
		})
	}
}

func testInitialize(t *testing.T, ctx context.Context, b types.Backend) {
	require.NoError(t, b.Initialize(ctx))

	perms, err := b.GetAllPermissions(ctx)
	require.NoError(t, err)
	require.Len(t, perms, len(types.PermissionCatalog))
	for i, p := range perms {
		assert.Equal(t, types.PermissionCatalog[i], p.Name)
		assert.NotZero(t, p.ID)
	}

	p, err := b.GetPermissionByName(ctx, types.PermReports)
	require.NoError(t, err)
	assert.Equal(t, types.PermReports, p.Name)

	_, err = b.GetPermissionByName(ctx, "nope")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func testUserCRUD(t *testing.T, ctx context.Context, b types.Backend) {
	id, err := b.AddUser(ctx, types.User{Username: "ana", PasswordHash: "h1"})
	require.NoError(t, err)
	assert.NotZero(t, id)

	u, err := b.GetUserByUsername(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "h1", u.PasswordHash)
	assert.False(t, u.IsAdmin)

	_, err = b.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = b.GetUserByID(ctx, 9999)
	assert.ErrorIs(t, err, types.ErrNotFound)

	u.PasswordHash = "h2"
	u.IsAdmin = true
	n, err := b.UpdateUser(ctx, *u)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := b.GetUserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "h2", got.PasswordHash)
	assert.True(t, got.IsAdmin)

	n, err = b.UpdateUser(ctx, types.User{ID: 9999, Username: "ghost", PasswordHash: "x"})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = b.AddUser(ctx, types.User{Username: "bo", PasswordHash: "h"})
	require.NoError(t, err)
	all, err := b.GetAllUsers(ctx)
	require.NoError(t, err)
	var names []string
	for _, u := range all {
		names = append(names, u.Username)
	}
	assert.Subset(t, names, []string{"ana", "bo"})
	assert.True(t, sort.StringsAreSorted(names), "users are listed by username: %v", names)

	n, err = b.DeleteUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = b.DeleteUser(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testHasAdmin(t *testing.T, ctx context.Context, b types.Backend) {
	// Some backends seed a default administrator; only the transition matters.
	before, err := b.HasAdmin(ctx)
	require.NoError(t, err)

	_, err = b.AddUser(ctx, types.User{Username: "clerk", PasswordHash: "h"})
	require.NoError(t, err)
	ok, err := b.HasAdmin(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, ok, "a non-admin user does not change HasAdmin")

	_, err = b.AddUser(ctx, types.User{Username: "root", PasswordHash: "h", IsAdmin: true})
	require.NoError(t, err)

	ok, err = b.HasAdmin(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func grantByName(t *testing.T, ctx context.Context, b types.Backend, userID int64, name string) int64 {
	t.Helper()
	p, err := b.GetPermissionByName(ctx, name)
	require.NoError(t, err)
	n, err := b.AssignPermissionToUser(ctx, userID, p.ID)
	require.NoError(t, err)
	return n
}

func testGrants(t *testing.T, ctx context.Context, b types.Backend) {
	uid, err := b.AddUser(ctx, types.User{Username: "ana", PasswordHash: "h"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), grantByName(t, ctx, b, uid, types.PermProducts))
	assert.Zero(t, grantByName(t, ctx, b, uid, types.PermProducts))
	grantByName(t, ctx, b, uid, types.PermCashRegister)

	names, err := b.GetUserPermissions(ctx, uid)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{types.PermProducts, types.PermCashRegister}, names)

	p, err := b.GetPermissionByName(ctx, types.PermProducts)
	require.NoError(t, err)
	n, err := b.RevokePermissionFromUser(ctx, uid, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = b.RevokePermissionFromUser(ctx, uid, p.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	names, err = b.GetUserPermissions(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, []string{types.PermCashRegister}, names)
}

func testDeleteUserCascade(t *testing.T, ctx context.Context, b types.Backend) {
	uid, err := b.AddUser(ctx, types.User{Username: "ana", PasswordHash: "h"})
	require.NoError(t, err)
	grantByName(t, ctx, b, uid, types.PermReports)
	grantByName(t, ctx, b, uid, types.PermExpenses)

	_, err = b.DeleteUser(ctx, uid)
	require.NoError(t, err)

	names, err := b.GetUserPermissions(ctx, uid)
	require.NoError(t, err)
	assert.Empty(t, names)

	// A new user must not inherit orphaned grants.
	uid2, err := b.AddUser(ctx, types.User{Username: "bo", PasswordHash: "h"})
	require.NoError(t, err)
	names, err = b.GetUserPermissions(ctx, uid2)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func testDeleteUserKeepsSales(t *testing.T, ctx context.Context, b types.Backend) {
	uid, err := b.AddUser(ctx, types.User{Username: "ana", PasswordHash: "h"})
	require.NoError(t, err)
	sale, err := types.NewSale(10, 10, "Cafe", uid, time.Now())
	require.NoError(t, err)
	sid, err := b.AddSale(ctx, sale)
	require.NoError(t, err)

	_, err = b.DeleteUser(ctx, uid)
	require.NoError(t, err)

	got, err := b.GetSaleByID(ctx, sid)
	require.NoError(t, err)
	assert.Zero(t, got.UserID)
	assert.Equal(t, 10.0, got.TotalAmount)
}

func testProductCRUD(t *testing.T, ctx context.Context, b types.Backend) {
	for _, p := range []types.Product{
		{Name: "Tea", Price: 20, Cost: 5},
		{Name: "Coffee", Price: 25, Cost: 8},
		{Name: "Bagel", Price: 15, Cost: 6},
		{Name: "Coffee", Price: 30, Cost: 9},
	} {
		_, err := b.AddProduct(ctx, p)
		require.NoError(t, err)
	}

	all, err := b.GetAllProducts(ctx)
	require.NoError(t, err)
	var names []string
	for _, p := range all {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Bagel", "Coffee", "Coffee", "Tea"}, names)

	tea := all[3]
	tea.Price = 22
	n, err := b.UpdateProduct(ctx, tea)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := b.GetProductByID(ctx, tea.ID)
	require.NoError(t, err)
	assert.Equal(t, 22.0, got.Price)

	n, err = b.DeleteProduct(ctx, tea.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = b.GetProductByID(ctx, tea.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func testUpdateMissingProduct(t *testing.T, ctx context.Context, b types.Backend) {
	n, err := b.UpdateProduct(ctx, types.Product{ID: 9999, Name: "Ghost", Price: 1})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = b.DeleteProduct(ctx, 9999)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testMonotonicIDs(t *testing.T, ctx context.Context, b types.Backend) {
	var maxID int64
	for i := 0; i < 3; i++ {
		id, err := b.AddExpense(ctx, types.Expense{ExpenseDate: "2026-01-01", ExpenseTime: "10:00:00", Description: "ice", Amount: 1})
		require.NoError(t, err)
		assert.Greater(t, id, maxID)
		maxID = id
	}
	all, err := b.GetAllExpenses(ctx)
	require.NoError(t, err)
	for _, e := range all {
		_, err := b.DeleteExpense(ctx, e.ID)
		require.NoError(t, err)
	}

	id, err := b.AddExpense(ctx, types.Expense{ExpenseDate: "2026-01-01", ExpenseTime: "10:00:00", Description: "ice", Amount: 1})
	require.NoError(t, err)
	assert.Greater(t, id, maxID)
}

func testSaleScenario(t *testing.T, ctx context.Context, b types.Backend) {
	pid, err := b.AddProduct(ctx, types.Product{Name: "Coffee", Price: 25, Cost: 8})
	require.NoError(t, err)
	assert.Equal(t, int64(1), pid)

	older := types.Sale{SaleDate: "2020-01-01", SaleTime: "08:00:00", TotalAmount: 1, PaymentReceived: 1}
	_, err = b.AddSale(ctx, older)
	require.NoError(t, err)

	sale, err := types.NewSale(25, 30, "Cafe", 0, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 5.0, sale.ChangeGiven)

	sid, err := b.AddSale(ctx, sale)
	require.NoError(t, err)
	_, err = b.AddSaleItem(ctx, types.SaleItem{SaleID: sid, ProductID: pid, ProductName: "Coffee", Quantity: 1, PriceAtSale: 25})
	require.NoError(t, err)

	sales, err := b.GetAllSales(ctx)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, sid, sales[0].ID)
	assert.Equal(t, 5.0, sales[0].ChangeGiven)

	n, err := b.DeleteSale(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	items, err := b.GetSaleItems(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, items)
	_, err = b.GetSaleByID(ctx, sid)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func testSalesOrder(t *testing.T, ctx context.Context, b types.Backend) {
	for _, s := range []types.Sale{
		{SaleDate: "2026-01-02", SaleTime: "09:00:00"},
		{SaleDate: "2026-01-03", SaleTime: "08:00:00"},
		{SaleDate: "2026-01-02", SaleTime: "18:30:00"},
		{SaleDate: "2025-12-31", SaleTime: "23:59:59"},
	} {
		_, err := b.AddSale(ctx, s)
		require.NoError(t, err)
	}

	sales, err := b.GetAllSales(ctx)
	require.NoError(t, err)
	var stamps []string
	for _, s := range sales {
		stamps = append(stamps, s.SaleDate+" "+s.SaleTime)
	}
	assert.Equal(t, []string{
		"2026-01-03 08:00:00",
		"2026-01-02 18:30:00",
		"2026-01-02 09:00:00",
		"2025-12-31 23:59:59",
	}, stamps)
}

func testSaleItemsPointInTime(t *testing.T, ctx context.Context, b types.Backend) {
	pid, err := b.AddProduct(ctx, types.Product{Name: "Coffee", Price: 25, Cost: 8})
	require.NoError(t, err)
	sid, err := b.AddSale(ctx, types.Sale{SaleDate: "2026-01-01", SaleTime: "10:00:00", TotalAmount: 50, PaymentReceived: 50})
	require.NoError(t, err)

	want := types.SaleItem{SaleID: sid, ProductID: pid, ProductName: "Coffee", Quantity: 2, PriceAtSale: 25}
	_, err = b.AddSaleItem(ctx, want)
	require.NoError(t, err)

	n, err := b.UpdateProduct(ctx, types.Product{ID: pid, Name: "Latte", Price: 40, Cost: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	items, err := b.GetSaleItems(ctx, sid)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Coffee", items[0].ProductName)
	assert.Equal(t, 25.0, items[0].PriceAtSale)
	assert.Equal(t, int64(2), items[0].Quantity)
	assert.Equal(t, pid, items[0].ProductID)

	_, err = b.DeleteProduct(ctx, pid)
	require.NoError(t, err)

	items, err = b.GetSaleItems(ctx, sid)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Zero(t, items[0].ProductID)
	assert.Equal(t, "Coffee", items[0].ProductName)
	assert.Equal(t, 25.0, items[0].PriceAtSale)
}

func testExpenses(t *testing.T, ctx context.Context, b types.Backend) {
	first, err := b.AddExpense(ctx, types.Expense{ExpenseDate: "2026-02-01", ExpenseTime: "09:00:00", Description: "milk", Amount: 12.5})
	require.NoError(t, err)
	second, err := b.AddExpense(ctx, types.Expense{ExpenseDate: "2026-02-03", ExpenseTime: "07:00:00", Description: "beans", Amount: 80})
	require.NoError(t, err)

	all, err := b.GetAllExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second, all[0].ID)
	assert.Equal(t, first, all[1].ID)

	e := all[1]
	e.Amount = 13
	n, err := b.UpdateExpense(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := b.GetExpenseByID(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 13.0, got.Amount)
	assert.Equal(t, "milk", got.Description)

	n, err = b.UpdateExpense(ctx, types.Expense{ID: 9999, Description: "x"})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = b.DeleteExpense(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = b.GetExpenseByID(ctx, first)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func testCostings(t *testing.T, ctx context.Context, b types.Backend) {
	items := []types.CostingItem{
		{ItemName: "flour", UnitOfMeasure: "kg", UnitPrice: 1.2, QuantityUsed: 0.5},
		{ItemName: "butter", UnitOfMeasure: "kg", UnitPrice: 8, QuantityUsed: 0.1},
	}
	c, err := types.NewCosting("Croissant", items, time.Date(2026, 1, 1, 8, 0, 0, 0, time.Local))
	require.NoError(t, err)
	cid, err := b.AddCosting(ctx, c)
	require.NoError(t, err)
	for _, it := range items {
		it.CostingID = cid
		_, err := b.AddCostingItem(ctx, it)
		require.NoError(t, err)
	}

	newer, err := b.AddCosting(ctx, types.Costing{Name: "Bread", TotalCost: 1, CostingDate: "2026-02-01 08:00:00"})
	require.NoError(t, err)

	all, err := b.GetAllCostings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer, all[0].ID)
	assert.Equal(t, 1.4, all[1].TotalCost)

	got, err := b.GetCostingItems(ctx, cid)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "flour", got[0].ItemName)
	assert.Equal(t, "kg", got[0].UnitOfMeasure)

	head, err := b.GetCostingByID(ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, "Croissant", head.Name)

	n, err := b.DeleteCosting(ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err = b.GetCostingItems(ctx, cid)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func movementSum(t *testing.T, ctx context.Context, b types.Backend, itemID int64) int64 {
	t.Helper()
	moves, err := b.GetItemMovements(ctx, itemID)
	require.NoError(t, err)
	var sum int64
	for _, m := range moves {
		sum += m.Delta
	}
	return sum
}

func testInventory(t *testing.T, ctx context.Context, b types.Backend) {
	require.NoError(t, b.EnsureInventoryTables(ctx))
	require.NoError(t, b.EnsureInventoryTables(ctx))

	id, err := b.AddInventoryItem(ctx, types.InventoryItem{Name: "Milk", Unit: "l", Stock: 5})
	require.NoError(t, err)

	for _, d := range []int64{3, -2, 10, -16} {
		_, err := b.AdjustInventory(ctx, id, d, "count")
		require.NoError(t, err)
	}

	item, err := b.GetInventoryItemByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), item.Stock)
	assert.Equal(t, item.Stock, movementSum(t, ctx, b, id))

	stock, err := b.AdjustInventory(ctx, id, 7, "delivery")
	require.NoError(t, err)
	assert.Equal(t, int64(7), stock)
	assert.Equal(t, stock, movementSum(t, ctx, b, id))

	moves, err := b.GetItemMovements(ctx, id)
	require.NoError(t, err)
	require.Len(t, moves, 6)
	assert.Equal(t, "delivery", moves[5].Reason)

	items, err := b.GetAllInventoryItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Milk", items[0].Name)
	assert.NotEmpty(t, items[0].CreatedAt)

	_, err = b.AdjustInventory(ctx, 9999, 1, "ghost")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func testInventoryNegative(t *testing.T, ctx context.Context, b types.Backend) {
	id, err := b.AddInventoryItem(ctx, types.InventoryItem{Name: "Sugar", Unit: "kg", Stock: 2})
	require.NoError(t, err)

	_, err = b.AdjustInventory(ctx, id, -3, "spill")
	assert.ErrorIs(t, err, types.ErrInsufficientStock)

	item, err := b.GetInventoryItemByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), item.Stock)
	assert.Equal(t, int64(2), movementSum(t, ctx, b, id))
}

func testClosed(t *testing.T, ctx context.Context, b types.Backend) {
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err := b.AddProduct(ctx, types.Product{Name: "Tea", Price: 1})
	assert.ErrorIs(t, err, types.ErrClosed)
	_, err = b.GetAllProducts(ctx)
	assert.ErrorIs(t, err, types.ErrClosed)
}
