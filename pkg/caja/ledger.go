package caja

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/caja/pkg/types"
)

func (s *Store) AddExpense(ctx context.Context, e types.Expense) (int64, error) {
	if e.Description == "" || e.Amount < 0 {
		return 0, types.ErrInvalidData
	}
	return s.backend.AddExpense(ctx, e)
}

// GetAllExpenses lists expenses newest first.
func (s *Store) GetAllExpenses(ctx context.Context) []types.Expense {
	return list(ctx, s, "GetAllExpenses", s.backend.GetAllExpenses)
}

func (s *Store) GetExpenseByID(ctx context.Context, id int64) (*types.Expense, error) {
	return s.backend.GetExpenseByID(ctx, id)
}

func (s *Store) UpdateExpense(ctx context.Context, e types.Expense) (int64, error) {
	if e.Description == "" || e.Amount < 0 {
		return 0, types.ErrInvalidData
	}
	return s.backend.UpdateExpense(ctx, e)
}

func (s *Store) DeleteExpense(ctx context.Context, id int64) (int64, error) {
	return s.backend.DeleteExpense(ctx, id)
}

func (s *Store) AddCosting(ctx context.Context, c types.Costing) (int64, error) {
	if c.Name == "" {
		return 0, types.ErrInvalidData
	}
	return s.backend.AddCosting(ctx, c)
}

// AddCostingItems inserts items one by one under costingID. An empty slice
// is a no-op. Items already inserted stay when a later one fails.
func (s *Store) AddCostingItems(ctx context.Context, costingID int64, items []types.CostingItem) error {
	for i, item := range items {
		item.CostingID = costingID
		if _, err := s.backend.AddCostingItem(ctx, item); err != nil {
			return fmt.Errorf("adding costing item %d of %d: %w", i+1, len(items), err)
		}
	}
	return nil
}

// CreateCosting sets TotalCost from items, then runs AddCosting and
// AddCostingItems.
func (s *Store) CreateCosting(ctx context.Context, c types.Costing, items []types.CostingItem) (int64, error) {
	c.TotalCost = types.CostingTotal(items)
	if c.CostingDate == "" {
		c.CostingDate = s.now().Format(types.TimestampLayout)
	}
	id, err := s.AddCosting(ctx, c)
	if err != nil {
		return 0, err
	}
	return id, s.AddCostingItems(ctx, id, items)
}

// GetAllCostings lists costings newest first.
func (s *Store) GetAllCostings(ctx context.Context) []types.Costing {
	return list(ctx, s, "GetAllCostings", s.backend.GetAllCostings)
}

func (s *Store) GetCostingByID(ctx context.Context, id int64) (*types.Costing, error) {
	return s.backend.GetCostingByID(ctx, id)
}

// GetCostingItems lists the lines of a costing.
func (s *Store) GetCostingItems(ctx context.Context, costingID int64) []types.CostingItem {
	return list(ctx, s, "GetCostingItems", func(ctx context.Context) ([]types.CostingItem, error) {
		return s.backend.GetCostingItems(ctx, costingID)
	})
}

// DeleteCosting removes a costing and its lines.
func (s *Store) DeleteCosting(ctx context.Context, id int64) (int64, error) {
	return s.backend.DeleteCosting(ctx, id)
}
