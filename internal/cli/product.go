package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/caja/pkg/types"
)

func newProductCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage the product catalog",
	}
	cmd.AddCommand(newProductAddCmd(), newProductListCmd(), newProductUpdateCmd(), newProductDeleteCmd())
	return cmd
}

func newProductAddCmd() *cobra.Command {
	var price, cost float64
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a product",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, types.PermProducts, func(ctx context.Context, a *app) error {
				p := types.Product{Name: args[0], Price: price, Cost: cost}
				id, err := a.store.AddProduct(ctx, p)
				if err != nil {
					return err
				}
				p.ID = id
				return a.emit(p, func(w io.Writer) {
					fmt.Fprintf(w, "Added product %s (id %d)\n", p.Name, id)
				})
			})
		},
	}
	cmd.Flags().Float64Var(&price, "price", 0, "selling price")
	cmd.Flags().Float64Var(&cost, "cost", 0, "purchase or production cost")
	cmd.MarkFlagRequired("price")
	return cmd
}

func newProductListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List products by name",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, types.PermProducts, func(ctx context.Context, a *app) error {
				products := a.store.GetAllProducts(ctx)
				return a.emit(products, func(w io.Writer) {
					if len(products) == 0 {
						fmt.Fprintln(w, "No products found.")
						return
					}
					rows := make([][]string, 0, len(products))
					for _, p := range products {
						rows = append(rows, []string{itoa(p.ID), p.Name, money(p.Price), money(p.Cost), money(p.Margin())})
					}
					writeTable(w, []string{"ID", "NAME", "PRICE", "COST", "MARGIN"}, rows)
					fmt.Fprintf(w, "Total: %d product(s)\n", len(products))
				})
			})
		},
	}
}

func newProductUpdateCmd() *cobra.Command {
	var name string
	var price, cost float64
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a product's name, price or cost",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, types.PermProducts, func(ctx context.Context, a *app) error {
				p, err := a.store.GetProductByID(ctx, id)
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("name") {
					p.Name = name
				}
				if cmd.Flags().Changed("price") {
					p.Price = price
				}
				if cmd.Flags().Changed("cost") {
					p.Cost = cost
				}
				n, err := a.store.UpdateProduct(ctx, *p)
				if err := checkRows(n, err, "product", id); err != nil {
					return err
				}
				return a.emit(p, func(w io.Writer) {
					fmt.Fprintf(w, "Updated product %d\n", id)
				})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().Float64Var(&price, "price", 0, "new selling price")
	cmd.Flags().Float64Var(&cost, "cost", 0, "new cost")
	return cmd
}

func newProductDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a product; past receipts keep its name and price",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, types.PermProducts, func(ctx context.Context, a *app) error {
				n, err := a.store.DeleteProduct(ctx, id)
				if err := checkRows(n, err, "product", id); err != nil {
					return err
				}
				return a.emit(map[string]any{"deleted": id}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted product %d\n", id)
				})
			})
		},
	}
}
