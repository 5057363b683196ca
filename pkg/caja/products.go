package caja

import (
	"context"

	"github.com/mesh-intelligence/caja/pkg/types"
)

// AddProduct validates and stores p.
func (s *Store) AddProduct(ctx context.Context, p types.Product) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return s.backend.AddProduct(ctx, p)
}

// GetAllProducts lists products by name.
func (s *Store) GetAllProducts(ctx context.Context) []types.Product {
	return list(ctx, s, "GetAllProducts", s.backend.GetAllProducts)
}

func (s *Store) GetProductByID(ctx context.Context, id int64) (*types.Product, error) {
	return s.backend.GetProductByID(ctx, id)
}

// UpdateProduct returns 0 when p.ID does not exist.
func (s *Store) UpdateProduct(ctx context.Context, p types.Product) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return s.backend.UpdateProduct(ctx, p)
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) (int64, error) {
	return s.backend.DeleteProduct(ctx, id)
}
