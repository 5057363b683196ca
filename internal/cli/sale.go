package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/caja/internal/auth"
	"github.com/mesh-intelligence/caja/internal/logger"
	"github.com/mesh-intelligence/caja/pkg/types"
)

func newSaleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sale",
		Short: "Ring up sales and browse receipts",
	}
	cmd.AddCommand(newSaleCreateCmd(), newSaleListCmd(), newSaleShowCmd(), newSaleDeleteCmd())
	return cmd
}

// parseSaleLine reads "product-id:quantity". A bare id sells one unit.
func parseSaleLine(s string) (int64, int64, error) {
	idPart, qtyPart, found := strings.Cut(s, ":")
	id, err := parseID(idPart)
	if err != nil {
		return 0, 0, err
	}
	if !found {
		return id, 1, nil
	}
	qty, err := strconv.ParseInt(qtyPart, 10, 64)
	if err != nil || qty <= 0 {
		return 0, 0, userError(fmt.Errorf("invalid quantity in %q", s))
	}
	return id, qty, nil
}

type receiptJSON struct {
	types.Sale
	Items []types.SaleItem `json:"items"`
}

func newSaleCreateCmd() *cobra.Command {
	var lines []string
	var payment float64
	var business string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Record a sale",
		Example: "  caja sale create --item 1:2 --item 3 --payment 20\n" +
			"  caja sale create --item 4:1 --payment 5 --business \"Corner Cafe\"",
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(lines) == 0 {
				return userError(fmt.Errorf("at least one --item is required"))
			}
			return withApp(cmd, types.PermCashRegister, func(ctx context.Context, a *app) error {
				items := make([]types.SaleItem, 0, len(lines))
				for _, line := range lines {
					pid, qty, err := parseSaleLine(line)
					if err != nil {
						return err
					}
					p, err := a.store.GetProductByID(ctx, pid)
					if err != nil {
						return fmt.Errorf("product %d: %w", pid, err)
					}
					item, err := types.NewSaleItem(*p, qty)
					if err != nil {
						return err
					}
					items = append(items, item)
				}

				cashier := auth.SessionFrom(ctx).User
				sale, err := types.NewSale(types.SaleTotal(items), payment, business, cashier.ID, time.Now())
				if err != nil {
					return err
				}
				id, err := a.store.CreateSale(ctx, sale, items)
				if err != nil {
					if id != 0 {
						logger.From(ctx).Error("sale stored without all items", "sale_id", id, "error", err)
					}
					return err
				}
				sale.ID = id
				logger.From(ctx).Info("sale recorded", "sale_id", id, "total", sale.TotalAmount)
				for i := range items {
					items[i].SaleID = id
				}
				r := receiptJSON{Sale: sale, Items: items}
				return a.emit(r, func(w io.Writer) { writeReceipt(w, r) })
			})
		},
	}
	cmd.Flags().StringArrayVar(&lines, "item", nil, "product-id[:quantity], repeatable")
	cmd.Flags().Float64Var(&payment, "payment", 0, "amount tendered")
	cmd.Flags().StringVar(&business, "business", "", "business name printed on the receipt")
	cmd.MarkFlagRequired("payment")
	return cmd
}

func writeReceipt(w io.Writer, r receiptJSON) {
	fmt.Fprintf(w, "Sale #%d  %s %s\n", r.ID, r.SaleDate, r.SaleTime)
	if r.BusinessName != "" {
		fmt.Fprintln(w, r.BusinessName)
	}
	rows := make([][]string, 0, len(r.Items))
	for _, it := range r.Items {
		rows = append(rows, []string{it.ProductName, itoa(it.Quantity), money(it.PriceAtSale), money(it.Subtotal())})
	}
	writeTable(w, []string{"PRODUCT", "QTY", "PRICE", "SUBTOTAL"}, rows)
	fmt.Fprintf(w, "Total:   %s\nPaid:    %s\nChange:  %s\n", money(r.TotalAmount), money(r.PaymentReceived), money(r.ChangeGiven))
}

func newSaleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sales newest first",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, types.PermReceipts, func(ctx context.Context, a *app) error {
				sales := a.store.GetAllSales(ctx)
				return a.emit(sales, func(w io.Writer) {
					if len(sales) == 0 {
						fmt.Fprintln(w, "No sales found.")
						return
					}
					rows := make([][]string, 0, len(sales))
					for _, s := range sales {
						rows = append(rows, []string{itoa(s.ID), s.SaleDate, s.SaleTime, money(s.TotalAmount), money(s.PaymentReceived), money(s.ChangeGiven), s.BusinessName})
					}
					writeTable(w, []string{"ID", "DATE", "TIME", "TOTAL", "PAID", "CHANGE", "BUSINESS"}, rows)
					fmt.Fprintf(w, "Total: %d sale(s)\n", len(sales))
				})
			})
		},
	}
}

func newSaleShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a receipt",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, types.PermReceipts, func(ctx context.Context, a *app) error {
				sale, err := a.store.GetSaleByID(ctx, id)
				if err != nil {
					return err
				}
				r := receiptJSON{Sale: *sale, Items: a.store.GetSaleItems(ctx, id)}
				return a.emit(r, func(w io.Writer) { writeReceipt(w, r) })
			})
		},
	}
}

func newSaleDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Void a sale and its lines",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, types.PermReceipts, func(ctx context.Context, a *app) error {
				n, err := a.store.DeleteSale(ctx, id)
				if err := checkRows(n, err, "sale", id); err != nil {
					return err
				}
				return a.emit(map[string]any{"deleted": id}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted sale %d\n", id)
				})
			})
		},
	}
}
