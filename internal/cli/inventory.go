package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/caja/internal/logger"
	"github.com/mesh-intelligence/caja/pkg/types"
)

func newInventoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Track stock levels and movements",
	}
	cmd.AddCommand(newInventoryAddCmd(), newInventoryListCmd(), newInventoryAdjustCmd(), newInventoryMovementsCmd())
	return cmd
}

// withInventory is withApp for inventory commands; it makes sure the
// inventory tables exist first.
func withInventory(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	return withApp(cmd, types.PermInventory, func(ctx context.Context, a *app) error {
		if err := a.store.EnsureInventoryTables(ctx); err != nil {
			return sysError(fmt.Errorf("prepare inventory: %w", err))
		}
		return fn(ctx, a)
	})
}

func newInventoryAddCmd() *cobra.Command {
	var unit string
	var stock int64
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an item with its opening stock",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInventory(cmd, func(ctx context.Context, a *app) error {
				id, err := a.store.AddInventoryItem(ctx, types.InventoryItem{Name: args[0], Unit: unit, Stock: stock})
				if err != nil {
					return err
				}
				item, err := a.store.GetInventoryItemByID(ctx, id)
				if err != nil {
					return err
				}
				return a.emit(item, func(w io.Writer) {
					fmt.Fprintf(w, "Added %s (id %d) with %d %s\n", item.Name, id, item.Stock, item.Unit)
				})
			})
		},
	}
	cmd.Flags().StringVar(&unit, "unit", "unit", "unit of measure")
	cmd.Flags().Int64Var(&stock, "stock", 0, "opening stock")
	return cmd
}

func newInventoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List items with current stock",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInventory(cmd, func(ctx context.Context, a *app) error {
				items := a.store.GetAllInventoryItems(ctx)
				return a.emit(items, func(w io.Writer) {
					if len(items) == 0 {
						fmt.Fprintln(w, "No inventory items found.")
						return
					}
					rows := make([][]string, 0, len(items))
					for _, it := range items {
						rows = append(rows, []string{itoa(it.ID), it.Name, itoa(it.Stock), it.Unit})
					}
					writeTable(w, []string{"ID", "NAME", "STOCK", "UNIT"}, rows)
					fmt.Fprintf(w, "Total: %d item(s)\n", len(items))
				})
			})
		},
	}
}

func newInventoryAdjustCmd() *cobra.Command {
	var delta int64
	var reason string
	cmd := &cobra.Command{
		Use:   "adjust <id>",
		Short: "Add or remove stock",
		Example: "  caja inventory adjust 3 --delta 24 --reason delivery\n" +
			"  caja inventory adjust 3 --delta=-2 --reason spoiled",
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withInventory(cmd, func(ctx context.Context, a *app) error {
				stock, err := a.store.AdjustInventory(ctx, id, delta, reason)
				if err != nil {
					return err
				}
				logger.From(ctx).Info("stock adjusted", "item_id", id, "delta", delta, "stock", stock)
				return a.emit(map[string]any{"item_id": id, "delta": delta, "stock": stock}, func(w io.Writer) {
					fmt.Fprintf(w, "Item %d stock is now %d\n", id, stock)
				})
			})
		},
	}
	cmd.Flags().Int64Var(&delta, "delta", 0, "signed stock change")
	cmd.Flags().StringVar(&reason, "reason", "", "why the stock changed")
	cmd.MarkFlagRequired("delta")
	return cmd
}

func newInventoryMovementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "movements <id>",
		Short: "Show an item's stock history",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withInventory(cmd, func(ctx context.Context, a *app) error {
				if _, err := a.store.GetInventoryItemByID(ctx, id); err != nil {
					return err
				}
				moves := a.store.GetItemMovements(ctx, id)
				return a.emit(moves, func(w io.Writer) {
					if len(moves) == 0 {
						fmt.Fprintln(w, "No movements found.")
						return
					}
					rows := make([][]string, 0, len(moves))
					for _, m := range moves {
						rows = append(rows, []string{itoa(m.ID), m.CreatedAt, fmt.Sprintf("%+d", m.Delta), m.Reason})
					}
					writeTable(w, []string{"ID", "WHEN", "DELTA", "REASON"}, rows)
				})
			})
		},
	}
}
