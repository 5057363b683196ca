package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Costing is a recipe or cost sheet. TotalCost is the sum of its items'
// unit_price × quantity_used, stored redundantly for listing.
type Costing struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	TotalCost   float64 `json:"total_cost"`
	CostingDate string  `json:"costing_date"` // TimestampLayout.
}

// CostingItem is one ingredient line of a costing.
type CostingItem struct {
	ID            int64   `json:"id"`
	CostingID     int64   `json:"costing_id"`
	ItemName      string  `json:"item_name"`
	UnitOfMeasure string  `json:"unit_of_measure"`
	UnitPrice     float64 `json:"unit_price"`
	QuantityUsed  float64 `json:"quantity_used"`
}

// CostingTotal returns Σ unit_price × quantity_used rounded to cents.
func CostingTotal(items []CostingItem) float64 {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(decimal.NewFromFloat(it.UnitPrice).Mul(decimal.NewFromFloat(it.QuantityUsed)))
	}
	return toFloat(sum)
}

// NewCosting builds a costing for items stamped with at, with TotalCost
// computed from the items.
func NewCosting(name string, items []CostingItem, at time.Time) (Costing, error) {
	if name == "" {
		return Costing{}, ErrInvalidData
	}
	for _, it := range items {
		if it.ItemName == "" || it.UnitPrice < 0 || it.QuantityUsed < 0 {
			return Costing{}, ErrInvalidData
		}
	}
	return Costing{
		Name:        name,
		TotalCost:   CostingTotal(items),
		CostingDate: at.Local().Format(TimestampLayout),
	}, nil
}

// Cost returns unit_price × quantity_used for the line.
func (i CostingItem) Cost() float64 {
	return LineTotal(i.UnitPrice, i.QuantityUsed)
}

func (c Costing) GetID() int64 { return c.ID }
func (c Costing) WithID(id int64) Costing { c.ID = id; return c }

func (i CostingItem) GetID() int64 { return i.ID }
func (i CostingItem) WithID(id int64) CostingItem { i.ID = id; return i }
