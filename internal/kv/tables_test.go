package kv

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/caja/pkg/types"
)

func TestTablesKeys(t *testing.T) {
	tbl := NewTables(NewMemorySubstrate(), "caja")
	assert.Equal(t, "caja:table:products", tbl.TableKey(types.ProductsTable))
	assert.Equal(t, "caja:seq:products", tbl.SeqKey(types.ProductsTable))
	assert.Equal(t, "caja:seeded", tbl.MetaKey("seeded"))
}

func TestInsertIntoAssignsIncreasingIDs(t *testing.T) {
	ctx := context.Background()
	sub := NewMemorySubstrate()
	tbl := NewTables(sub, "caja")

	a, err := InsertInto(ctx, tbl, types.ProductsTable, types.Product{Name: "A"})
	require.NoError(t, err)
	b, err := InsertInto(ctx, tbl, types.ProductsTable, types.Product{Name: "B"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), a)
	assert.Equal(t, int64(2), b)

	n, err := DeleteWhere(ctx, tbl, types.ProductsTable, byID[types.Product](b))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	c, err := InsertInto(ctx, tbl, types.ProductsTable, types.Product{Name: "C"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), c)

	seq, ok, err := sub.Get(ctx, tbl.SeqKey(types.ProductsTable))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3", string(seq))
}

func TestListMissingTableIsEmpty(t *testing.T) {
	rows, err := ListTable[types.Product](context.Background(), NewTables(NewMemorySubstrate(), "caja"), types.ProductsTable)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestUpdateAndFilter(t *testing.T) {
	ctx := context.Background()
	tbl := NewTables(NewMemorySubstrate(), "caja")
	for _, name := range []string{"Tea", "Coffee", "Tea"} {
		_, err := InsertInto(ctx, tbl, types.ProductsTable, types.Product{Name: name, Price: 1})
		require.NoError(t, err)
	}

	n, err := UpdateWhere(ctx, tbl, types.ProductsTable,
		func(p types.Product) bool { return p.Name == "Tea" },
		func(p types.Product) types.Product { p.Price = 2; return p })
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	teas, err := Filter(ctx, tbl, types.ProductsTable, func(p types.Product) bool { return p.Price == 2 })
	require.NoError(t, err)
	assert.Len(t, teas, 2)

	n, err = UpdateWhere(ctx, tbl, types.ProductsTable,
		func(p types.Product) bool { return p.Name == "Juice" },
		func(p types.Product) types.Product { return p })
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = FindFirst(ctx, tbl, types.ProductsTable, func(p types.Product) bool { return p.Name == "Juice" })
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestConcurrentInsertsKeepEveryRow(t *testing.T) {
	ctx := context.Background()
	tbl := NewTables(NewMemorySubstrate(), "caja")

	const n = 50
	var wg sync.WaitGroup
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := InsertInto(ctx, tbl, types.ExpensesTable, types.Expense{Description: "ice", Amount: 1})
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "id %d issued twice", id)
		seen[id] = true
	}
	rows, err := ListTable[types.Expense](ctx, tbl, types.ExpensesTable)
	require.NoError(t, err)
	assert.Len(t, rows, n)
}

func TestLockDeduplicatesAndOrders(t *testing.T) {
	tbl := NewTables(NewMemorySubstrate(), "caja")

	unlock := tbl.Lock(types.SalesTable, types.UsersTable, types.SalesTable)
	done := make(chan struct{})
	go func() {
		u := tbl.Lock(types.UsersTable, types.SalesTable)
		u()
		close(done)
	}()
	unlock()
	<-done
}

func TestClosedTablesReject(t *testing.T) {
	ctx := context.Background()
	tbl := NewTables(NewMemorySubstrate(), "caja")
	require.NoError(t, tbl.Close())
	require.NoError(t, tbl.Close())

	_, err := ListTable[types.Product](ctx, tbl, types.ProductsTable)
	assert.ErrorIs(t, err, types.ErrClosed)
	_, err = InsertInto(ctx, tbl, types.ProductsTable, types.Product{Name: "A"})
	assert.ErrorIs(t, err, types.ErrClosed)
	assert.ErrorIs(t, tbl.SetMeta(ctx, "seeded", "x"), types.ErrClosed)
}
