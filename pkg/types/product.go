package types

// Product is a catalog entry. Names are not unique.
type Product struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"` // Selling price.
	Cost  float64 `json:"cost"`  // Purchase or production cost.
}

// Validate checks the fields a product must carry before it is stored.
func (p Product) Validate() error {
	if p.Name == "" || p.Price < 0 || p.Cost < 0 {
		return ErrInvalidData
	}
	return nil
}

// Margin returns price minus cost, rounded to cents.
func (p Product) Margin() float64 {
	return SumMoney(p.Price, -p.Cost)
}

func (p Product) GetID() int64 { return p.ID }
func (p Product) WithID(id int64) Product { p.ID = id; return p }
