package caja

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesh-intelligence/caja/internal/kv"
	"github.com/mesh-intelligence/caja/internal/logger"
	"github.com/mesh-intelligence/caja/internal/password"
	"github.com/mesh-intelligence/caja/pkg/types"
)

func TestMain(m *testing.M) {
	password.SetCost(bcrypt.MinCost)
	os.Exit(m.Run())
}

// openBackends returns one initialized store per backend.
func openBackends(t *testing.T) map[string]*Store {
	t.Helper()
	ctx := context.Background()
	stores := map[string]*Store{}
	for _, backend := range []string{types.BackendSQLite, types.BackendKV} {
		s, err := Open(ctx, types.Config{
			Backend: backend,
			DataDir: t.TempDir(),
			KV:      types.KVConfig{Substrate: types.SubstrateMemory},
		}, logger.Discard())
		require.NoError(t, err)
		require.NoError(t, s.Initialize(ctx))
		t.Cleanup(func() { s.Close() })
		stores[backend] = s
	}
	return stores
}

func TestOpenSelectsBackend(t *testing.T) {
	for name, s := range openBackends(t) {
		assert.Equal(t, name, s.BackendName())
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	_, err := Open(context.Background(), types.Config{Backend: "postgres"}, logger.Discard())
	assert.ErrorIs(t, err, types.ErrBackendUnknown)
}

func TestOpenAutoPrefersSQLite(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, types.Config{Backend: types.BackendAuto, DataDir: t.TempDir()}, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	assert.Equal(t, types.BackendSQLite, s.BackendName())
}

func TestOpenAutoFallsBackToKV(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	// A directory where the database file should be cannot be opened.
	require.NoError(t, os.Mkdir(filepath.Join(dir, types.DefaultSQLiteFile), 0o755))

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	s, err := Open(ctx, types.Config{
		Backend: types.BackendAuto,
		DataDir: dir,
		KV:      types.KVConfig{Substrate: types.SubstrateMemory},
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	assert.Equal(t, types.BackendKV, s.BackendName())
	assert.Contains(t, buf.String(), "falling back")
	require.NoError(t, s.Initialize(ctx))
}

func TestAddUserRejectsTakenUsername(t *testing.T) {
	ctx := context.Background()
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			id, err := s.AddUser(ctx, types.User{Username: "ana", PasswordHash: "h"})
			require.NoError(t, err)

			_, err = s.AddUser(ctx, types.User{Username: "ana", PasswordHash: "h"})
			assert.ErrorIs(t, err, types.ErrUsernameTaken)

			bo, err := s.AddUser(ctx, types.User{Username: "bo", PasswordHash: "h"})
			require.NoError(t, err)
			_, err = s.UpdateUser(ctx, types.User{ID: bo, Username: "ana", PasswordHash: "h"})
			assert.ErrorIs(t, err, types.ErrUsernameTaken)

			n, err := s.UpdateUser(ctx, types.User{ID: id, Username: "ana", PasswordHash: "h2"})
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			_, err = s.AddUser(ctx, types.User{Username: "", PasswordHash: "h"})
			assert.ErrorIs(t, err, types.ErrInvalidData)
		})
	}
}

func TestSeedAdminUserIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Initialize(ctx))

	u, err := s.SeedAdminUser(ctx, "admin", "hash")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.True(t, u.IsAdmin)
	assert.NotZero(t, u.ID)

	again, err := s.SeedAdminUser(ctx, "root", "hash")
	require.NoError(t, err)
	assert.Nil(t, again)

	var admins int
	for _, u := range s.GetAllUsers(ctx) {
		if u.IsAdmin {
			admins++
		}
	}
	assert.Equal(t, 1, admins)
}

func TestInitializeSeedsConfiguredAdmin(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
		Seed:    types.SeedConfig{AdminUsername: "owner", AdminPassword: "Owner123"},
	}, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Initialize(ctx))

	u, err := s.GetUserByUsername(ctx, "owner")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)
	assert.True(t, password.Verify(u.PasswordHash, "Owner123"))
	assert.Len(t, s.GetAllUsers(ctx), 1)
}

func TestCreateSale(t *testing.T) {
	ctx := context.Background()
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			pid, err := s.AddProduct(ctx, types.Product{Name: "Coffee", Price: 25, Cost: 8})
			require.NoError(t, err)
			p, err := s.GetProductByID(ctx, pid)
			require.NoError(t, err)

			item, err := types.NewSaleItem(*p, 2)
			require.NoError(t, err)
			items := []types.SaleItem{item}
			sale, err := types.NewSale(types.SaleTotal(items), 60, "Cafe", 0, time.Now())
			require.NoError(t, err)

			sid, err := s.CreateSale(ctx, sale, items)
			require.NoError(t, err)

			got, err := s.GetSaleByID(ctx, sid)
			require.NoError(t, err)
			assert.Equal(t, 50.0, got.TotalAmount)
			assert.Equal(t, 10.0, got.ChangeGiven)

			lines := s.GetSaleItems(ctx, sid)
			require.Len(t, lines, 1)
			assert.Equal(t, sid, lines[0].SaleID)
			assert.Equal(t, 50.0, lines[0].Subtotal())

			require.NoError(t, s.AddSaleItems(ctx, sid, nil))
			assert.Len(t, s.GetSaleItems(ctx, sid), 1)
		})
	}
}

func TestAddSaleItemsStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			sid, err := s.AddSale(ctx, types.Sale{SaleDate: "2026-01-01", SaleTime: "10:00:00", TotalAmount: 2, PaymentReceived: 2})
			require.NoError(t, err)

			err = s.AddSaleItems(ctx, sid, []types.SaleItem{
				{ProductName: "Loose tea", Quantity: 1, PriceAtSale: 1},
				{ProductID: 9999, ProductName: "Ghost", Quantity: 1, PriceAtSale: 1},
				{ProductName: "Never", Quantity: 1, PriceAtSale: 1},
			})
			assert.ErrorIs(t, err, types.ErrConstraint)

			lines := s.GetSaleItems(ctx, sid)
			require.Len(t, lines, 1)
			assert.Equal(t, "Loose tea", lines[0].ProductName)
		})
	}
}

func TestAddSaleRejectsUnderpayment(t *testing.T) {
	s := New(kv.New(kv.NewMemorySubstrate(), kv.Options{Logger: logger.Discard()}), logger.Discard())
	_, err := s.AddSale(context.Background(), types.Sale{TotalAmount: 10, PaymentReceived: 5, ChangeGiven: -5})
	assert.ErrorIs(t, err, types.ErrInsufficientPayment)
}

func TestCreateCostingComputesTotal(t *testing.T) {
	ctx := context.Background()
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			items := []types.CostingItem{
				{ItemName: "flour", UnitOfMeasure: "kg", UnitPrice: 1.2, QuantityUsed: 0.5},
				{ItemName: "butter", UnitOfMeasure: "kg", UnitPrice: 8, QuantityUsed: 0.1},
			}
			id, err := s.CreateCosting(ctx, types.Costing{Name: "Croissant", TotalCost: 99}, items)
			require.NoError(t, err)

			c, err := s.GetCostingByID(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, 1.4, c.TotalCost)
			assert.NotEmpty(t, c.CostingDate)
			assert.Len(t, s.GetCostingItems(ctx, id), 2)

			n, err := s.DeleteCosting(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
			assert.Empty(t, s.GetCostingItems(ctx, id))
		})
	}
}

func TestInventoryThroughFacade(t *testing.T) {
	ctx := context.Background()
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.EnsureInventoryTables(ctx))
			id, err := s.AddInventoryItem(ctx, types.InventoryItem{Name: "Milk", Unit: "l", Stock: 4})
			require.NoError(t, err)

			stock, err := s.AdjustInventory(ctx, id, -1, "latte")
			require.NoError(t, err)
			assert.Equal(t, int64(3), stock)

			_, err = s.AdjustInventory(ctx, id, 0, "noop")
			assert.ErrorIs(t, err, types.ErrInvalidQuantity)
			_, err = s.AdjustInventory(ctx, id, -10, "spill")
			assert.ErrorIs(t, err, types.ErrInsufficientStock)

			moves := s.GetItemMovements(ctx, id)
			require.Len(t, moves, 2)
			assert.Equal(t, "opening stock", moves[0].Reason)
			assert.Equal(t, int64(-1), moves[1].Delta)
		})
	}
}

func TestProductValidation(t *testing.T) {
	s := New(kv.New(kv.NewMemorySubstrate(), kv.Options{Logger: logger.Discard()}), logger.Discard())
	ctx := context.Background()

	tests := []struct {
		name string
		p    types.Product
	}{
		{"empty name", types.Product{Price: 1}},
		{"negative price", types.Product{Name: "Tea", Price: -1}},
		{"negative cost", types.Product{Name: "Tea", Price: 1, Cost: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddProduct(ctx, tt.p)
			assert.ErrorIs(t, err, types.ErrInvalidData)
			_, err = s.UpdateProduct(ctx, tt.p)
			assert.ErrorIs(t, err, types.ErrInvalidData)
		})
	}
}

func TestUpdateMissingReturnsZero(t *testing.T) {
	ctx := context.Background()
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			n, err := s.UpdateProduct(ctx, types.Product{ID: 404, Name: "Ghost", Price: 1})
			require.NoError(t, err)
			assert.Zero(t, n)
			n, err = s.UpdateExpense(ctx, types.Expense{ID: 404, Description: "ghost"})
			require.NoError(t, err)
			assert.Zero(t, n)
			n, err = s.DeleteSale(ctx, 404)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

// failingBackend fails every call with errBroken.
type failingBackend struct {
	types.Backend
}

var errBroken = errors.New("disk on fire")

func (failingBackend) Name() string { return "broken" }
func (failingBackend) GetAllUsers(context.Context) ([]types.User, error) { return nil, errBroken }
func (failingBackend) GetAllProducts(context.Context) ([]types.Product, error) {
	return nil, errBroken
}
func (failingBackend) GetAllSales(context.Context) ([]types.Sale, error) { return nil, errBroken }
func (failingBackend) GetSaleItems(context.Context, int64) ([]types.SaleItem, error) {
	return nil, errBroken
}
func (failingBackend) GetAllExpenses(context.Context) ([]types.Expense, error) {
	return nil, errBroken
}
func (failingBackend) GetUserPermissions(context.Context, int64) ([]string, error) {
	return nil, errBroken
}
func (failingBackend) AddProduct(context.Context, types.Product) (int64, error) {
	return 0, errBroken
}
func (failingBackend) DeleteSale(context.Context, int64) (int64, error) { return 0, errBroken }

func TestListingsDegradeToEmpty(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	s := New(failingBackend{}, slog.New(slog.NewTextHandler(&buf, nil)))

	users := s.GetAllUsers(ctx)
	assert.NotNil(t, users)
	assert.Empty(t, users)
	assert.Empty(t, s.GetAllProducts(ctx))
	assert.Empty(t, s.GetAllSales(ctx))
	assert.Empty(t, s.GetSaleItems(ctx, 1))
	assert.Empty(t, s.GetUserPermissions(ctx, 1))

	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "disk on fire")
	assert.Contains(t, buf.String(), "op=GetAllProducts")
}

func TestMutationsPropagateErrors(t *testing.T) {
	ctx := context.Background()
	s := New(failingBackend{}, logger.Discard())

	_, err := s.AddProduct(ctx, types.Product{Name: "Tea", Price: 1})
	assert.ErrorIs(t, err, errBroken)
	_, err = s.DeleteSale(ctx, 1)
	assert.ErrorIs(t, err, errBroken)
}

func TestReport(t *testing.T) {
	ctx := context.Background()
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			add := func(date string, items []types.SaleItem) {
				total := types.SaleTotal(items)
				_, err := s.CreateSale(ctx, types.Sale{SaleDate: date, SaleTime: "10:00:00", TotalAmount: total, PaymentReceived: total}, items)
				require.NoError(t, err)
			}
			add("2026-03-01", []types.SaleItem{
				{ProductName: "Coffee", Quantity: 2, PriceAtSale: 2.5},
				{ProductName: "Tea", Quantity: 1, PriceAtSale: 2},
			})
			add("2026-03-02", []types.SaleItem{{ProductName: "Coffee", Quantity: 1, PriceAtSale: 2.5}})
			add("2026-04-01", []types.SaleItem{{ProductName: "Cake", Quantity: 10, PriceAtSale: 4}})

			_, err := s.AddExpense(ctx, types.Expense{ExpenseDate: "2026-03-01", ExpenseTime: "07:00:00", Description: "milk", Amount: 1.1})
			require.NoError(t, err)
			_, err = s.AddExpense(ctx, types.Expense{ExpenseDate: "2026-05-01", ExpenseTime: "07:00:00", Description: "rent", Amount: 500})
			require.NoError(t, err)

			rep := s.Report(ctx, "2026-03-01", "2026-03-31")
			assert.Equal(t, 2, rep.SaleCount)
			assert.Equal(t, 9.5, rep.Revenue)
			assert.Equal(t, 1.1, rep.ExpenseTotal)
			assert.Equal(t, 8.4, rep.Net)
			assert.Equal(t, []types.ProductSales{
				{ProductName: "Coffee", Quantity: 3, Revenue: 7.5},
				{ProductName: "Tea", Quantity: 1, Revenue: 2},
			}, rep.Products)

			all := s.Report(ctx, "", "")
			assert.Equal(t, 3, all.SaleCount)
			assert.Equal(t, "Cake", all.Products[0].ProductName)
		})
	}
}
