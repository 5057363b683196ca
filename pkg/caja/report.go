package caja

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mesh-intelligence/caja/pkg/types"
)

// Report summarizes sales and expenses dated from..to inclusive. Dates use
// types.DateLayout; an empty bound is open.
func (s *Store) Report(ctx context.Context, from, to string) types.Report {
	inRange := func(date string) bool {
		return (from == "" || date >= from) && (to == "" || date <= to)
	}

	rep := types.Report{From: from, To: to, Products: []types.ProductSales{}}
	revenue := decimal.Zero
	byName := map[string]*types.ProductSales{}
	lineRevenue := map[string]decimal.Decimal{}

	for _, sale := range s.GetAllSales(ctx) {
		if !inRange(sale.SaleDate) {
			continue
		}
		rep.SaleCount++
		revenue = revenue.Add(decimal.NewFromFloat(sale.TotalAmount))
		for _, it := range s.GetSaleItems(ctx, sale.ID) {
			ps, ok := byName[it.ProductName]
			if !ok {
				ps = &types.ProductSales{ProductName: it.ProductName}
				byName[it.ProductName] = ps
			}
			ps.Quantity += it.Quantity
			lineRevenue[it.ProductName] = lineRevenue[it.ProductName].Add(
				decimal.NewFromFloat(it.PriceAtSale).Mul(decimal.NewFromInt(it.Quantity)))
		}
	}

	expenses := decimal.Zero
	for _, e := range s.GetAllExpenses(ctx) {
		if inRange(e.ExpenseDate) {
			expenses = expenses.Add(decimal.NewFromFloat(e.Amount))
		}
	}

	rep.Revenue = types.SumMoney(revenue.InexactFloat64())
	rep.ExpenseTotal = types.SumMoney(expenses.InexactFloat64())
	rep.Net = types.SumMoney(rep.Revenue, -rep.ExpenseTotal)

	for name, ps := range byName {
		ps.Revenue = types.SumMoney(lineRevenue[name].InexactFloat64())
		rep.Products = append(rep.Products, *ps)
	}
	sort.Slice(rep.Products, func(i, j int) bool {
		a, b := rep.Products[i], rep.Products[j]
		if a.Revenue != b.Revenue {
			return a.Revenue > b.Revenue
		}
		return a.ProductName < b.ProductName
	})
	return rep
}
