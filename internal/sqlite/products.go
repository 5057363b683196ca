package sqlite

import (
	"context"

	"github.com/mesh-intelligence/caja/pkg/types"
)

func scanProduct(row scanner) (types.Product, error) {
	var p types.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Cost)
	return p, err
}

// AddProduct inserts p and returns its id.
func (s *Store) AddProduct(ctx context.Context, p types.Product) (int64, error) {
	return s.insert(ctx, "INSERT INTO products (name, price, cost) VALUES (?, ?, ?)", p.Name, p.Price, p.Cost)
}

// GetAllProducts lists products by name ascending.
func (s *Store) GetAllProducts(ctx context.Context) ([]types.Product, error) {
	return queryAll(ctx, s, scanProduct, "SELECT id, name, price, cost FROM products ORDER BY name ASC, id ASC")
}

// GetProductByID returns one product.
func (s *Store) GetProductByID(ctx context.Context, id int64) (*types.Product, error) {
	return queryOne(ctx, s, scanProduct, "SELECT id, name, price, cost FROM products WHERE id = ?", id)
}

// UpdateProduct rewrites name, price and cost of p.ID.
func (s *Store) UpdateProduct(ctx context.Context, p types.Product) (int64, error) {
	return s.exec(ctx, "UPDATE products SET name = ?, price = ?, cost = ? WHERE id = ?", p.Name, p.Price, p.Cost, p.ID)
}

// DeleteProduct removes a product. Sale items that referenced it keep their
// point-in-time name and price with a NULL product id.
func (s *Store) DeleteProduct(ctx context.Context, id int64) (int64, error) {
	return s.exec(ctx, "DELETE FROM products WHERE id = ?", id)
}
