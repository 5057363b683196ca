package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/caja/pkg/types"
)

func scanInventoryItem(row scanner) (types.InventoryItem, error) {
	var it types.InventoryItem
	err := row.Scan(&it.ID, &it.Name, &it.Unit, &it.Stock, &it.CreatedAt)
	return it, err
}

func scanMovement(row scanner) (types.InventoryMovement, error) {
	var m types.InventoryMovement
	err := row.Scan(&m.ID, &m.ItemID, &m.Delta, &m.Reason, &m.CreatedAt)
	return m, err
}

// EnsureInventoryTables creates the inventory tables if they are missing.
func (s *Store) EnsureInventoryTables(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	return execAll(ctx, db, inventoryDDL)
}

// AddInventoryItem inserts an item with its opening stock. A non-zero
// opening stock is recorded as the item's first movement so the balance
// reconciles with its movements.
func (s *Store) AddInventoryItem(ctx context.Context, item types.InventoryItem) (int64, error) {
	if item.Stock < 0 {
		return 0, types.ErrInsufficientStock
	}
	if item.CreatedAt == "" {
		item.CreatedAt = time.Now().Format(types.TimestampLayout)
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO inventory_items (name, unit, stock, created_at) VALUES (?, ?, ?, ?)",
			item.Name, item.Unit, item.Stock, item.CreatedAt,
		)
		if err != nil {
			return translate(err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		if item.Stock == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO inventory_movements (item_id, delta, reason, created_at) VALUES (?, ?, ?, ?)",
			id, item.Stock, "opening stock", item.CreatedAt,
		)
		return translate(err)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetAllInventoryItems lists items by name.
func (s *Store) GetAllInventoryItems(ctx context.Context) ([]types.InventoryItem, error) {
	return queryAll(ctx, s, scanInventoryItem,
		"SELECT id, name, unit, stock, created_at FROM inventory_items ORDER BY name ASC, id ASC")
}

// GetInventoryItemByID returns one item.
func (s *Store) GetInventoryItemByID(ctx context.Context, id int64) (*types.InventoryItem, error) {
	return queryOne(ctx, s, scanInventoryItem,
		"SELECT id, name, unit, stock, created_at FROM inventory_items WHERE id = ?", id)
}

// AdjustInventory writes a movement and the new balance in one transaction
// and returns the new stock.
func (s *Store) AdjustInventory(ctx context.Context, itemID, delta int64, reason string) (int64, error) {
	var stock int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, "SELECT stock FROM inventory_items WHERE id = ?", itemID).Scan(&stock)
		if errors.Is(err, sql.ErrNoRows) {
			return types.ErrNotFound
		}
		if err != nil {
			return err
		}
		stock += delta
		if stock < 0 {
			return types.ErrInsufficientStock
		}

		now := time.Now().Format(types.TimestampLayout)
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO inventory_movements (item_id, delta, reason, created_at) VALUES (?, ?, ?, ?)",
			itemID, delta, reason, now,
		); err != nil {
			return translate(err)
		}
		_, err = tx.ExecContext(ctx, "UPDATE inventory_items SET stock = ? WHERE id = ?", stock, itemID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return stock, nil
}

// GetItemMovements lists an item's movements oldest first.
func (s *Store) GetItemMovements(ctx context.Context, itemID int64) ([]types.InventoryMovement, error) {
	return queryAll(ctx, s, scanMovement,
		"SELECT id, item_id, delta, reason, created_at FROM inventory_movements WHERE item_id = ? ORDER BY id ASC",
		itemID)
}

// withTx runs fn inside a transaction, committing on success. fn must use
// only tx: the pool holds a single connection.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
