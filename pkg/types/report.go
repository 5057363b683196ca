package types

// Report is the data a sales report or export needs for a date range.
type Report struct {
	From         string         `json:"from"` // Inclusive, DateLayout.
	To           string         `json:"to"`   // Inclusive, DateLayout.
	SaleCount    int            `json:"sale_count"`
	Revenue      float64        `json:"revenue"`
	ExpenseTotal float64        `json:"expense_total"`
	Net          float64        `json:"net"` // Revenue - ExpenseTotal.
	Products     []ProductSales `json:"products"`
}

// ProductSales aggregates sale items by their point-in-time product name.
type ProductSales struct {
	ProductName string  `json:"product_name"`
	Quantity    int64   `json:"quantity"`
	Revenue     float64 `json:"revenue"`
}
