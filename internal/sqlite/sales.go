package sqlite

import (
	"context"
	"database/sql"

	"github.com/mesh-intelligence/caja/pkg/types"
)

const saleColumns = "id, sale_date, sale_time, total_amount, payment_received, change_given, business_name, user_id"

func scanSale(row scanner) (types.Sale, error) {
	var (
		s      types.Sale
		userID sql.NullInt64
	)
	err := row.Scan(&s.ID, &s.SaleDate, &s.SaleTime, &s.TotalAmount, &s.PaymentReceived,
		&s.ChangeGiven, &s.BusinessName, &userID)
	s.UserID = userID.Int64
	return s, err
}

func scanSaleItem(row scanner) (types.SaleItem, error) {
	var (
		it        types.SaleItem
		productID sql.NullInt64
	)
	err := row.Scan(&it.ID, &it.SaleID, &productID, &it.ProductName, &it.Quantity, &it.PriceAtSale)
	it.ProductID = productID.Int64
	return it, err
}

// AddSale inserts the sale header and returns its id.
func (s *Store) AddSale(ctx context.Context, sale types.Sale) (int64, error) {
	return s.insert(ctx,
		`INSERT INTO sales (sale_date, sale_time, total_amount, payment_received, change_given, business_name, user_id)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sale.SaleDate, sale.SaleTime, sale.TotalAmount, sale.PaymentReceived, sale.ChangeGiven,
		sale.BusinessName, nullID(sale.UserID),
	)
}

// AddSaleItem inserts one receipt line under item.SaleID.
func (s *Store) AddSaleItem(ctx context.Context, item types.SaleItem) (int64, error) {
	return s.insert(ctx,
		"INSERT INTO sale_items (sale_id, product_id, product_name, quantity, price_at_sale) VALUES (?, ?, ?, ?, ?)",
		item.SaleID, nullID(item.ProductID), item.ProductName, item.Quantity, item.PriceAtSale,
	)
}

// GetAllSales lists sales newest first by date, then time.
func (s *Store) GetAllSales(ctx context.Context) ([]types.Sale, error) {
	return queryAll(ctx, s, scanSale,
		"SELECT "+saleColumns+" FROM sales ORDER BY sale_date DESC, sale_time DESC, id DESC")
}

// GetSaleByID returns one sale header.
func (s *Store) GetSaleByID(ctx context.Context, id int64) (*types.Sale, error) {
	return queryOne(ctx, s, scanSale, "SELECT "+saleColumns+" FROM sales WHERE id = ?", id)
}

// GetSaleItems lists a sale's lines in insertion order.
func (s *Store) GetSaleItems(ctx context.Context, saleID int64) ([]types.SaleItem, error) {
	return queryAll(ctx, s, scanSaleItem,
		"SELECT id, sale_id, product_id, product_name, quantity, price_at_sale FROM sale_items WHERE sale_id = ? ORDER BY id ASC",
		saleID)
}

// DeleteSale removes a sale; its items cascade.
func (s *Store) DeleteSale(ctx context.Context, id int64) (int64, error) {
	return s.exec(ctx, "DELETE FROM sales WHERE id = ?", id)
}
