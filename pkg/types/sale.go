package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale is a completed transaction at the register. SaleDate and SaleTime are
// captured from the local wall clock at creation.
type Sale struct {
	ID              int64   `json:"id"`
	SaleDate        string  `json:"sale_date"` // DateLayout.
	SaleTime        string  `json:"sale_time"` // TimeLayout.
	TotalAmount     float64 `json:"total_amount"`
	PaymentReceived float64 `json:"payment_received"`
	ChangeGiven     float64 `json:"change_given"` // PaymentReceived - TotalAmount, never negative.
	BusinessName    string  `json:"business_name"`
	UserID          int64   `json:"user_id"` // 0 when the cashier is unknown or was deleted.
}

// SaleItem is one receipt line. ProductName and PriceAtSale are copied from
// the product when the sale is made and never follow later product edits.
type SaleItem struct {
	ID          int64   `json:"id"`
	SaleID      int64   `json:"sale_id"`
	ProductID   int64   `json:"product_id"` // 0 once the product is deleted.
	ProductName string  `json:"product_name"`
	Quantity    int64   `json:"quantity"`
	PriceAtSale float64 `json:"price_at_sale"`
}

// NewSale builds a sale stamped with at, computing the change due. It returns
// ErrInsufficientPayment when payment does not cover total; a sale that
// fails here must not be persisted.
func NewSale(total, payment float64, businessName string, userID int64, at time.Time) (Sale, error) {
	if total < 0 || payment < 0 {
		return Sale{}, ErrInvalidData
	}
	t := decimal.NewFromFloat(total).Round(2)
	p := decimal.NewFromFloat(payment).Round(2)
	change := p.Sub(t)
	if change.IsNegative() {
		return Sale{}, ErrInsufficientPayment
	}
	at = at.Local()
	return Sale{
		SaleDate:        at.Format(DateLayout),
		SaleTime:        at.Format(TimeLayout),
		TotalAmount:     toFloat(t),
		PaymentReceived: toFloat(p),
		ChangeGiven:     toFloat(change),
		BusinessName:    businessName,
		UserID:          userID,
	}, nil
}

// NewSaleItem copies the product's current name and price into a receipt
// line. The sale id is stamped when the items are stored.
func NewSaleItem(p Product, quantity int64) (SaleItem, error) {
	if quantity <= 0 {
		return SaleItem{}, ErrInvalidQuantity
	}
	return SaleItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    quantity,
		PriceAtSale: p.Price,
	}, nil
}

// Subtotal returns price_at_sale × quantity.
func (i SaleItem) Subtotal() float64 {
	return LineTotal(i.PriceAtSale, float64(i.Quantity))
}

// SaleTotal sums the subtotals of items.
func SaleTotal(items []SaleItem) float64 {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(decimal.NewFromFloat(it.PriceAtSale).Mul(decimal.NewFromInt(it.Quantity)))
	}
	return toFloat(sum)
}

// Before reports whether s sorts ahead of o in newest-first listings:
// later date, then later time, then higher id.
func (s Sale) Before(o Sale) bool {
	if s.SaleDate != o.SaleDate {
		return s.SaleDate > o.SaleDate
	}
	if s.SaleTime != o.SaleTime {
		return s.SaleTime > o.SaleTime
	}
	return s.ID > o.ID
}

func (s Sale) GetID() int64 { return s.ID }
func (s Sale) WithID(id int64) Sale { s.ID = id; return s }

func (i SaleItem) GetID() int64 { return i.ID }
func (i SaleItem) WithID(id int64) SaleItem { i.ID = id; return i }
