package caja

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/caja/pkg/types"
)

// AddSale stores the sale header and returns its id.
func (s *Store) AddSale(ctx context.Context, sale types.Sale) (int64, error) {
	if sale.ChangeGiven < 0 || sale.PaymentReceived < sale.TotalAmount {
		return 0, types.ErrInsufficientPayment
	}
	return s.backend.AddSale(ctx, sale)
}

// AddSaleItems inserts items one by one under saleID. An empty slice is a
// no-op. Items already inserted stay when a later one fails.
func (s *Store) AddSaleItems(ctx context.Context, saleID int64, items []types.SaleItem) error {
	for i, item := range items {
		item.SaleID = saleID
		if _, err := s.backend.AddSaleItem(ctx, item); err != nil {
			return fmt.Errorf("adding sale item %d of %d: %w", i+1, len(items), err)
		}
	}
	return nil
}

// CreateSale runs AddSale then AddSaleItems. When the items fail the sale id
// is returned together with the error.
func (s *Store) CreateSale(ctx context.Context, sale types.Sale, items []types.SaleItem) (int64, error) {
	id, err := s.AddSale(ctx, sale)
	if err != nil {
		return 0, err
	}
	return id, s.AddSaleItems(ctx, id, items)
}

// GetAllSales lists sales newest first.
func (s *Store) GetAllSales(ctx context.Context) []types.Sale {
	return list(ctx, s, "GetAllSales", s.backend.GetAllSales)
}

func (s *Store) GetSaleByID(ctx context.Context, id int64) (*types.Sale, error) {
	return s.backend.GetSaleByID(ctx, id)
}

// GetSaleItems lists the lines of a sale.
func (s *Store) GetSaleItems(ctx context.Context, saleID int64) []types.SaleItem {
	return list(ctx, s, "GetSaleItems", func(ctx context.Context) ([]types.SaleItem, error) {
		return s.backend.GetSaleItems(ctx, saleID)
	})
}

// DeleteSale removes a sale and its lines.
func (s *Store) DeleteSale(ctx context.Context, id int64) (int64, error) {
	return s.backend.DeleteSale(ctx, id)
}
