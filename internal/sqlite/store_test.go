package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/caja/internal/backendtest"
	"github.com/mesh-intelligence/caja/internal/logger"
	"github.com/mesh-intelligence/caja/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}, logger.Discard())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreBehaviour(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) types.Backend {
		return newTestStore(t)
	})
}

func TestStoreDuplicateUsernameIsConstraint(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Initialize(ctx))

	_, err := s.AddUser(ctx, types.User{Username: "ana", PasswordHash: "h"})
	require.NoError(t, err)
	_, err = s.AddUser(ctx, types.User{Username: "ana", PasswordHash: "h"})
	assert.ErrorIs(t, err, types.ErrConstraint)
}

func TestStoreSaleItemNeedsExistingSale(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Initialize(ctx))

	_, err := s.AddSaleItem(ctx, types.SaleItem{SaleID: 42, ProductName: "Coffee", Quantity: 1, PriceAtSale: 25})
	assert.ErrorIs(t, err, types.ErrConstraint)
}

func TestStoreSurvivesReset(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Initialize(ctx))

	id, err := s.AddProduct(ctx, types.Product{Name: "Coffee", Price: 25, Cost: 8})
	require.NoError(t, err)

	require.NoError(t, s.Manager().Reset())

	p, err := s.GetProductByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Coffee", p.Name)
}

func TestStoreEnsureInventoryOnLegacyFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Initialize(ctx))

	db, err := s.Manager().Conn(ctx)
	require.NoError(t, err)
	_, err = db.Exec("DROP TABLE inventory_movements")
	require.NoError(t, err)
	_, err = db.Exec("DROP TABLE inventory_items")
	require.NoError(t, err)

	require.NoError(t, s.EnsureInventoryTables(ctx))
	id, err := s.AddInventoryItem(ctx, types.InventoryItem{Name: "Milk", Unit: "l"})
	require.NoError(t, err)
	assert.NotZero(t, id)
}
