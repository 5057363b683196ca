package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/caja/pkg/types"
)

func newCostingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "costing",
		Short: "Keep recipe cost sheets",
	}
	cmd.AddCommand(newCostingCreateCmd(), newCostingListCmd(), newCostingShowCmd(), newCostingDeleteCmd())
	return cmd
}

// parseCostingLine reads "name:unit:unit-price:quantity".
func parseCostingLine(s string) (types.CostingItem, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 || parts[0] == "" {
		return types.CostingItem{}, userError(fmt.Errorf("invalid item %q: want name:unit:price:quantity", s))
	}
	price, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || price < 0 {
		return types.CostingItem{}, userError(fmt.Errorf("invalid unit price in %q", s))
	}
	qty, err := strconv.ParseFloat(parts[3], 64)
	if err != nil || qty < 0 {
		return types.CostingItem{}, userError(fmt.Errorf("invalid quantity in %q", s))
	}
	return types.CostingItem{ItemName: parts[0], UnitOfMeasure: parts[1], UnitPrice: price, QuantityUsed: qty}, nil
}

type costingJSON struct {
	types.Costing
	Items []types.CostingItem `json:"items"`
}

func newCostingCreateCmd() *cobra.Command {
	var lines []string
	cmd := &cobra.Command{
		Use:     "create <name>",
		Short:   "Create a costing from its ingredient lines",
		Example: "  caja costing create Latte --item milk:ml:0.002:200 --item espresso:shot:0.35:2",
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items := make([]types.CostingItem, 0, len(lines))
			for _, line := range lines {
				it, err := parseCostingLine(line)
				if err != nil {
					return err
				}
				items = append(items, it)
			}
			return withApp(cmd, types.PermCostings, func(ctx context.Context, a *app) error {
				c, err := types.NewCosting(args[0], items, time.Now())
				if err != nil {
					return err
				}
				id, err := a.store.CreateCosting(ctx, c, items)
				if err != nil {
					return err
				}
				c.ID = id
				for i := range items {
					items[i].CostingID = id
				}
				r := costingJSON{Costing: c, Items: items}
				return a.emit(r, func(w io.Writer) { writeCosting(w, r) })
			})
		},
	}
	cmd.Flags().StringArrayVar(&lines, "item", nil, "name:unit:unit-price:quantity, repeatable")
	return cmd
}

func writeCosting(w io.Writer, r costingJSON) {
	fmt.Fprintf(w, "Costing #%d  %s  (%s)\n", r.ID, r.Name, r.CostingDate)
	rows := make([][]string, 0, len(r.Items))
	for _, it := range r.Items {
		rows = append(rows, []string{
			it.ItemName,
			it.UnitOfMeasure,
			strconv.FormatFloat(it.UnitPrice, 'f', -1, 64),
			strconv.FormatFloat(it.QuantityUsed, 'f', -1, 64),
			money(it.Cost()),
		})
	}
	writeTable(w, []string{"ITEM", "UNIT", "UNIT PRICE", "QTY", "COST"}, rows)
	fmt.Fprintf(w, "Total cost: %s\n", money(r.TotalCost))
}

func newCostingListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List costings newest first",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, types.PermCostings, func(ctx context.Context, a *app) error {
				costings := a.store.GetAllCostings(ctx)
				return a.emit(costings, func(w io.Writer) {
					if len(costings) == 0 {
						fmt.Fprintln(w, "No costings found.")
						return
					}
					rows := make([][]string, 0, len(costings))
					for _, c := range costings {
						rows = append(rows, []string{itoa(c.ID), c.Name, money(c.TotalCost), c.CostingDate})
					}
					writeTable(w, []string{"ID", "NAME", "TOTAL COST", "DATE"}, rows)
					fmt.Fprintf(w, "Total: %d costing(s)\n", len(costings))
				})
			})
		},
	}
}

func newCostingShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a costing with its lines",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, types.PermCostings, func(ctx context.Context, a *app) error {
				c, err := a.store.GetCostingByID(ctx, id)
				if err != nil {
					return err
				}
				r := costingJSON{Costing: *c, Items: a.store.GetCostingItems(ctx, id)}
				return a.emit(r, func(w io.Writer) { writeCosting(w, r) })
			})
		},
	}
}

func newCostingDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a costing and its lines",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, types.PermCostings, func(ctx context.Context, a *app) error {
				n, err := a.store.DeleteCosting(ctx, id)
				if err := checkRows(n, err, "costing", id); err != nil {
					return err
				}
				return a.emit(map[string]any{"deleted": id}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted costing %d\n", id)
				})
			})
		},
	}
}
