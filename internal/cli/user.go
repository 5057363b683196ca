package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/caja/internal/auth"
	"github.com/mesh-intelligence/caja/internal/logger"
	"github.com/mesh-intelligence/caja/pkg/types"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage terminal users",
	}
	cmd.AddCommand(
		newUserAddCmd(),
		newUserListCmd(),
		newUserDeleteCmd(),
		newUserGrantCmd(true),
		newUserGrantCmd(false),
		newUserPasswdCmd(),
	)
	return cmd
}

// lookupUser accepts a numeric id or a username.
func lookupUser(ctx context.Context, a *app, ref string) (*types.User, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return a.store.GetUserByID(ctx, id)
	}
	return a.store.GetUserByUsername(ctx, ref)
}

func newUserAddCmd() *cobra.Command {
	var password string
	var admin bool
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Register a user",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, types.PermUsers, func(ctx context.Context, a *app) error {
				id, err := a.auth.Register(ctx, args[0], password, admin)
				if err != nil {
					return err
				}
				return a.emit(map[string]any{"id": id, "username": args[0], "is_admin": admin}, func(w io.Writer) {
					fmt.Fprintf(w, "Created user %s (id %d)\n", args[0], id)
				})
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant every permission")
	cmd.MarkFlagRequired("password")
	return cmd
}

type userJSON struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	IsAdmin     bool     `json:"is_admin"`
	Permissions []string `json:"permissions"`
}

func newUserListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users with their grants",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, types.PermUsers, func(ctx context.Context, a *app) error {
				var users []userJSON
				for _, u := range a.store.GetAllUsers(ctx) {
					users = append(users, userJSON{
						ID:          u.ID,
						Username:    u.Username,
						IsAdmin:     u.IsAdmin,
						Permissions: a.store.GetUserPermissions(ctx, u.ID),
					})
				}
				if users == nil {
					users = []userJSON{}
				}
				return a.emit(users, func(w io.Writer) {
					if len(users) == 0 {
						fmt.Fprintln(w, "No users found.")
						return
					}
					rows := make([][]string, 0, len(users))
					for _, u := range users {
						perms := strings.Join(u.Permissions, ",")
						if u.IsAdmin {
							perms = "(all)"
						}
						rows = append(rows, []string{itoa(u.ID), u.Username, strconv.FormatBool(u.IsAdmin), perms})
					}
					writeTable(w, []string{"ID", "USERNAME", "ADMIN", "PERMISSIONS"}, rows)
					fmt.Fprintf(w, "Total: %d user(s)\n", len(users))
				})
			})
		},
	}
}

func newUserDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|username>",
		Short: "Delete a user and their grants",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, types.PermUsers, func(ctx context.Context, a *app) error {
				u, err := lookupUser(ctx, a, args[0])
				if err != nil {
					return err
				}
				if s := auth.SessionFrom(ctx); s.User != nil && s.User.ID == u.ID {
					return userError(fmt.Errorf("cannot delete the logged-in user"))
				}
				n, err := a.store.DeleteUser(ctx, u.ID)
				if err := checkRows(n, err, "user", u.ID); err != nil {
					return err
				}
				logger.From(ctx).Info("user deleted", "id", u.ID, "username", u.Username)
				return a.emit(map[string]any{"deleted": u.ID}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted user %s\n", u.Username)
				})
			})
		},
	}
}

func newUserGrantCmd(grant bool) *cobra.Command {
	use, short, verb := "grant", "Grant a permission to a user", "Granted"
	if !grant {
		use, short, verb = "revoke", "Revoke a permission from a user", "Revoked"
	}
	return &cobra.Command{
		Use:   use + " <id|username> <permission>",
		Short: short,
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, types.PermUsers, func(ctx context.Context, a *app) error {
				u, err := lookupUser(ctx, a, args[0])
				if err != nil {
					return err
				}
				p, err := a.store.GetPermissionByName(ctx, args[1])
				if err != nil {
					return userError(fmt.Errorf("unknown permission %q (valid: %s)", args[1], strings.Join(types.PermissionCatalog, ", ")))
				}
				var n int64
				if grant {
					n, err = a.store.AssignPermissionToUser(ctx, u.ID, p.ID)
				} else {
					n, err = a.store.RevokePermissionFromUser(ctx, u.ID, p.ID)
				}
				if err != nil {
					return err
				}
				if n > 0 {
					logger.From(ctx).Info("permission "+strings.ToLower(verb), "username", u.Username, "permission", p.Name)
				}
				return a.emit(map[string]any{"user": u.Username, "permission": p.Name, "changed": n}, func(w io.Writer) {
					if n == 0 {
						fmt.Fprintf(w, "No change for %s on %s\n", p.Name, u.Username)
						return
					}
					fmt.Fprintf(w, "%s %s for %s\n", verb, p.Name, u.Username)
				})
			})
		},
	}
}

func newUserPasswdCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "passwd <id|username>",
		Short: "Change a user's password",
		Long:  "Change a password. Users may change their own; changing another user's\npassword requires the users permission.",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, anyPermission, func(ctx context.Context, a *app) error {
				u, err := lookupUser(ctx, a, args[0])
				if err != nil {
					return err
				}
				if s := auth.SessionFrom(ctx); s.User.ID != u.ID {
					if err := a.auth.Require(types.PermUsers); err != nil {
						return userError(err)
					}
				}
				if err := a.auth.ChangePassword(ctx, u.ID, password); err != nil {
					return err
				}
				return a.emit(map[string]any{"user": u.Username, "changed": true}, func(w io.Writer) {
					fmt.Fprintf(w, "Password changed for %s\n", u.Username)
				})
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new password")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newPermissionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permission",
		Short: "Inspect the permission catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every permission",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, types.PermUsers, func(ctx context.Context, a *app) error {
				perms := a.store.GetAllPermissions(ctx)
				return a.emit(perms, func(w io.Writer) {
					rows := make([][]string, 0, len(perms))
					for _, p := range perms {
						rows = append(rows, []string{itoa(p.ID), p.Name})
					}
					writeTable(w, []string{"ID", "NAME"}, rows)
				})
			})
		},
	})
	return cmd
}
