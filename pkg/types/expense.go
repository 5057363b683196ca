package types

import "time"

// Expense is money paid out of the register.
type Expense struct {
	ID          int64   `json:"id"`
	ExpenseDate string  `json:"expense_date"` // DateLayout.
	ExpenseTime string  `json:"expense_time"` // TimeLayout.
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// NewExpense builds an expense stamped with at in the local zone.
func NewExpense(description string, amount float64, at time.Time) (Expense, error) {
	if description == "" || amount < 0 {
		return Expense{}, ErrInvalidData
	}
	at = at.Local()
	return Expense{
		ExpenseDate: at.Format(DateLayout),
		ExpenseTime: at.Format(TimeLayout),
		Description: description,
		Amount:      Cents(amount),
	}, nil
}

// Before reports whether e sorts ahead of o in newest-first listings.
func (e Expense) Before(o Expense) bool {
	if e.ExpenseDate != o.ExpenseDate {
		return e.ExpenseDate > o.ExpenseDate
	}
	if e.ExpenseTime != o.ExpenseTime {
		return e.ExpenseTime > o.ExpenseTime
	}
	return e.ID > o.ID
}

func (e Expense) GetID() int64 { return e.ID }
func (e Expense) WithID(id int64) Expense { e.ID = id; return e }
