package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/caja/internal/auth"
)

var errInvalidCredentials = errors.New("invalid credentials")

func newLoginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and remember the session",
		Long: "Log in as username. The password is read from --password or, when the\n" +
			"flag is omitted, from the first line of standard input.",
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				p, err := readLine(cmd.InOrStdin())
				if err != nil {
					return userError(fmt.Errorf("read password: %w", err))
				}
				password = p
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if !a.auth.Login(cmd.Context(), args[0], password) {
				return userError(errInvalidCredentials)
			}
			return a.emit(sessionView(a.auth.Session()), func(w io.Writer) {
				fmt.Fprintf(w, "Logged in as %s\n", args[0])
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password (read from stdin when omitted)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.auth.Logout(cmd.Context()); err != nil {
				return sysError(err)
			}
			return a.emit(map[string]bool{"logged_out": true}, func(w io.Writer) {
				fmt.Fprintln(w, "Logged out")
			})
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user and permissions",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, anyPermission, func(ctx context.Context, a *app) error {
				s := auth.SessionFrom(ctx)
				return a.emit(sessionView(s), func(w io.Writer) {
					role := "user"
					if s.User.IsAdmin {
						role = "admin"
					}
					fmt.Fprintf(w, "%s (id %d, %s)\n", s.User.Username, s.User.ID, role)
					if len(s.Permissions) > 0 {
						fmt.Fprintf(w, "Permissions: %s\n", strings.Join(s.Permissions, ", "))
					}
				})
			})
		},
	}
}

type sessionJSON struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	IsAdmin     bool     `json:"is_admin"`
	Permissions []string `json:"permissions"`
}

func sessionView(s auth.Session) sessionJSON {
	v := sessionJSON{Permissions: s.Permissions}
	if v.Permissions == nil {
		v.Permissions = []string{}
	}
	if s.User != nil {
		v.ID, v.Username, v.IsAdmin = s.User.ID, s.User.Username, s.User.IsAdmin
	}
	return v
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
