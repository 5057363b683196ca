package caja

import (
	"context"

	"github.com/mesh-intelligence/caja/pkg/types"
)

// EnsureInventoryTables creates the inventory tables on stores that predate
// them.
func (s *Store) EnsureInventoryTables(ctx context.Context) error {
	return s.backend.EnsureInventoryTables(ctx)
}

// AddInventoryItem stores an item with its opening stock.
func (s *Store) AddInventoryItem(ctx context.Context, item types.InventoryItem) (int64, error) {
	if item.Name == "" {
		return 0, types.ErrInvalidData
	}
	if item.CreatedAt == "" {
		item.CreatedAt = s.now().Format(types.TimestampLayout)
	}
	return s.backend.AddInventoryItem(ctx, item)
}

// GetAllInventoryItems lists items by name.
func (s *Store) GetAllInventoryItems(ctx context.Context) []types.InventoryItem {
	return list(ctx, s, "GetAllInventoryItems", s.backend.GetAllInventoryItems)
}

func (s *Store) GetInventoryItemByID(ctx context.Context, id int64) (*types.InventoryItem, error) {
	return s.backend.GetInventoryItemByID(ctx, id)
}

// AdjustInventory records a movement of delta and returns the new stock.
// A zero delta is rejected.
func (s *Store) AdjustInventory(ctx context.Context, itemID, delta int64, reason string) (int64, error) {
	if delta == 0 {
		return 0, types.ErrInvalidQuantity
	}
	return s.backend.AdjustInventory(ctx, itemID, delta, reason)
}

// GetItemMovements lists an item's movements oldest first.
func (s *Store) GetItemMovements(ctx context.Context, itemID int64) []types.InventoryMovement {
	return list(ctx, s, "GetItemMovements", func(ctx context.Context) ([]types.InventoryMovement, error) {
		return s.backend.GetItemMovements(ctx, itemID)
	})
}
