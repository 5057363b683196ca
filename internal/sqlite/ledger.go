package sqlite

import (
	"context"

	"github.com/mesh-intelligence/caja/pkg/types"
)

func scanExpense(row scanner) (types.Expense, error) {
	var e types.Expense
	err := row.Scan(&e.ID, &e.ExpenseDate, &e.ExpenseTime, &e.Description, &e.Amount)
	return e, err
}

func scanCosting(row scanner) (types.Costing, error) {
	var c types.Costing
	err := row.Scan(&c.ID, &c.Name, &c.TotalCost, &c.CostingDate)
	return c, err
}

func scanCostingItem(row scanner) (types.CostingItem, error) {
	var it types.CostingItem
	err := row.Scan(&it.ID, &it.CostingID, &it.ItemName, &it.UnitOfMeasure, &it.UnitPrice, &it.QuantityUsed)
	return it, err
}

// AddExpense inserts e and returns its id.
func (s *Store) AddExpense(ctx context.Context, e types.Expense) (int64, error) {
	return s.insert(ctx,
		"INSERT INTO expenses (expense_date, expense_time, description, amount) VALUES (?, ?, ?, ?)",
		e.ExpenseDate, e.ExpenseTime, e.Description, e.Amount,
	)
}

// GetAllExpenses lists expenses newest first.
func (s *Store) GetAllExpenses(ctx context.Context) ([]types.Expense, error) {
	return queryAll(ctx, s, scanExpense,
		"SELECT id, expense_date, expense_time, description, amount FROM expenses ORDER BY expense_date DESC, expense_time DESC, id DESC")
}

// GetExpenseByID returns one expense.
func (s *Store) GetExpenseByID(ctx context.Context, id int64) (*types.Expense, error) {
	return queryOne(ctx, s, scanExpense,
		"SELECT id, expense_date, expense_time, description, amount FROM expenses WHERE id = ?", id)
}

// UpdateExpense rewrites every field of e.ID.
func (s *Store) UpdateExpense(ctx context.Context, e types.Expense) (int64, error) {
	return s.exec(ctx,
		"UPDATE expenses SET expense_date = ?, expense_time = ?, description = ?, amount = ? WHERE id = ?",
		e.ExpenseDate, e.ExpenseTime, e.Description, e.Amount, e.ID,
	)
}

// DeleteExpense removes one expense.
func (s *Store) DeleteExpense(ctx context.Context, id int64) (int64, error) {
	return s.exec(ctx, "DELETE FROM expenses WHERE id = ?", id)
}

// AddCosting inserts the costing header and returns its id.
func (s *Store) AddCosting(ctx context.Context, c types.Costing) (int64, error) {
	return s.insert(ctx,
		"INSERT INTO costings (name, total_cost, costing_date) VALUES (?, ?, ?)",
		c.Name, c.TotalCost, c.CostingDate,
	)
}

// AddCostingItem inserts one line under item.CostingID.
func (s *Store) AddCostingItem(ctx context.Context, item types.CostingItem) (int64, error) {
	return s.insert(ctx,
		`INSERT INTO costing_items (costing_id, item_name, unit_of_measure, unit_price, quantity_used)
VALUES (?, ?, ?, ?, ?)`,
		item.CostingID, item.ItemName, item.UnitOfMeasure, item.UnitPrice, item.QuantityUsed,
	)
}

// GetAllCostings lists costings newest first.
func (s *Store) GetAllCostings(ctx context.Context) ([]types.Costing, error) {
	return queryAll(ctx, s, scanCosting,
		"SELECT id, name, total_cost, costing_date FROM costings ORDER BY costing_date DESC, id DESC")
}

// GetCostingByID returns one costing header.
func (s *Store) GetCostingByID(ctx context.Context, id int64) (*types.Costing, error) {
	return queryOne(ctx, s, scanCosting, "SELECT id, name, total_cost, costing_date FROM costings WHERE id = ?", id)
}

// GetCostingItems lists a costing's lines in insertion order.
func (s *Store) GetCostingItems(ctx context.Context, costingID int64) ([]types.CostingItem, error) {
	return queryAll(ctx, s, scanCostingItem,
		`SELECT id, costing_id, item_name, unit_of_measure, unit_price, quantity_used
FROM costing_items WHERE costing_id = ? ORDER BY id ASC`, costingID)
}

// DeleteCosting removes a costing; its items cascade.
func (s *Store) DeleteCosting(ctx context.Context, id int64) (int64, error) {
	return s.exec(ctx, "DELETE FROM costings WHERE id = ?", id)
}
