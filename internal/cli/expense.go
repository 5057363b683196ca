package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/caja/pkg/types"
)

func newExpenseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expense",
		Short: "Record money paid out of the register",
	}
	cmd.AddCommand(newExpenseAddCmd(), newExpenseListCmd(), newExpenseUpdateCmd(), newExpenseDeleteCmd())
	return cmd
}

func newExpenseAddCmd() *cobra.Command {
	var amount float64
	cmd := &cobra.Command{
		Use:   "add <description>",
		Short: "Record an expense stamped now",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, types.PermExpenses, func(ctx context.Context, a *app) error {
				e, err := types.NewExpense(args[0], amount, time.Now())
				if err != nil {
					return err
				}
				id, err := a.store.AddExpense(ctx, e)
				if err != nil {
					return err
				}
				e.ID = id
				return a.emit(e, func(w io.Writer) {
					fmt.Fprintf(w, "Recorded expense %d: %s %s\n", id, e.Description, money(e.Amount))
				})
			})
		},
	}
	cmd.Flags().Float64Var(&amount, "amount", 0, "amount paid")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func newExpenseListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List expenses newest first",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, types.PermExpenses, func(ctx context.Context, a *app) error {
				expenses := a.store.GetAllExpenses(ctx)
				return a.emit(expenses, func(w io.Writer) {
					if len(expenses) == 0 {
						fmt.Fprintln(w, "No expenses found.")
						return
					}
					rows := make([][]string, 0, len(expenses))
					amounts := make([]float64, 0, len(expenses))
					for _, e := range expenses {
						rows = append(rows, []string{itoa(e.ID), e.ExpenseDate, e.ExpenseTime, e.Description, money(e.Amount)})
						amounts = append(amounts, e.Amount)
					}
					writeTable(w, []string{"ID", "DATE", "TIME", "DESCRIPTION", "AMOUNT"}, rows)
					fmt.Fprintf(w, "Total: %d expense(s), %s\n", len(expenses), money(types.SumMoney(amounts...)))
				})
			})
		},
	}
}

func newExpenseUpdateCmd() *cobra.Command {
	var description, date, clock string
	var amount float64
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Correct an expense",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, types.PermExpenses, func(ctx context.Context, a *app) error {
				e, err := a.store.GetExpenseByID(ctx, id)
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("description") {
					e.Description = description
				}
				if cmd.Flags().Changed("amount") {
					e.Amount = types.Cents(amount)
				}
				if cmd.Flags().Changed("date") {
					if _, err := time.Parse(types.DateLayout, date); err != nil {
						return userError(fmt.Errorf("invalid date %q: want %s", date, types.DateLayout))
					}
					e.ExpenseDate = date
				}
				if cmd.Flags().Changed("time") {
					if _, err := time.Parse(types.TimeLayout, clock); err != nil {
						return userError(fmt.Errorf("invalid time %q: want %s", clock, types.TimeLayout))
					}
					e.ExpenseTime = clock
				}
				n, err := a.store.UpdateExpense(ctx, *e)
				if err := checkRows(n, err, "expense", id); err != nil {
					return err
				}
				return a.emit(e, func(w io.Writer) {
					fmt.Fprintf(w, "Updated expense %d\n", id)
				})
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().Float64Var(&amount, "amount", 0, "new amount")
	cmd.Flags().StringVar(&date, "date", "", "new date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&clock, "time", "", "new time (HH:MM:SS)")
	return cmd
}

func newExpenseDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an expense",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, types.PermExpenses, func(ctx context.Context, a *app) error {
				n, err := a.store.DeleteExpense(ctx, id)
				if err := checkRows(n, err, "expense", id); err != nil {
					return err
				}
				return a.emit(map[string]any{"deleted": id}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted expense %d\n", id)
				})
			})
		},
	}
}
