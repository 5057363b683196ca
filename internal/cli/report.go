package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/caja/pkg/types"
)

func newReportCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize sales and expenses over a date range",
		Long: "Summarize revenue, expenses and per-product sales between --from and\n" +
			"--to inclusive. Both default to today.",
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			today := time.Now().Format(types.DateLayout)
			if from == "" {
				from = today
			}
			if to == "" {
				to = today
			}
			for _, d := range []string{from, to} {
				if _, err := time.Parse(types.DateLayout, d); err != nil {
					return userError(fmt.Errorf("invalid date %q: want %s", d, types.DateLayout))
				}
			}
			if from > to {
				return userError(fmt.Errorf("--from %s is after --to %s", from, to))
			}
			return withApp(cmd, types.PermReports, func(ctx context.Context, a *app) error {
				r := a.store.Report(ctx, from, to)
				return a.emit(r, func(w io.Writer) {
					fmt.Fprintf(w, "Report %s to %s\n", r.From, r.To)
					fmt.Fprintf(w, "Sales:    %d\nRevenue:  %s\nExpenses: %s\nNet:      %s\n",
						r.SaleCount, money(r.Revenue), money(r.ExpenseTotal), money(r.Net))
					if len(r.Products) == 0 {
						return
					}
					fmt.Fprintln(w)
					rows := make([][]string, 0, len(r.Products))
					for _, p := range r.Products {
						rows = append(rows, []string{p.ProductName, itoa(p.Quantity), money(p.Revenue)})
					}
					writeTable(w, []string{"PRODUCT", "QTY", "REVENUE"}, rows)
				})
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day (YYYY-MM-DD)")
	return cmd
}
