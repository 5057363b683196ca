// Package cli implements the caja command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/caja/internal/auth"
	"github.com/mesh-intelligence/caja/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	backend   string
	jsonMode  bool
}

var flags rootFlags

// NewRootCmd creates the top-level "caja" command with global flags and all
// subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "caja",
		Short: "Point-of-sale terminal data tool",
		Long: "Caja manages the users, catalog, sales, expenses, costings and inventory\n" +
			"of a point-of-sale terminal on a local SQLite file or key/value store.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	root.PersistentFlags().StringVar(&flags.backend, "backend", "", "storage backend: auto, sqlite or kv (overrides config)")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return userError(err)
	})

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newUserCmd(),
		newPermissionCmd(),
		newProductCmd(),
		newSaleCmd(),
		newExpenseCmd(),
		newCostingCmd(),
		newInventoryCmd(),
		newReportCmd(),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return run(NewRootCmd(), os.Args[1:], os.Stderr)
}

func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitCode(err)
	}
	return exitSuccess
}

// codedError carries an explicit exit code.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func userError(err error) error { return &codedError{code: exitUserError, err: err} }
func sysError(err error) error  { return &codedError{code: exitSysError, err: err} }

// userErrors are failures caused by the input rather than the system.
var userErrors = []error{
	types.ErrNotFound,
	types.ErrInvalidData,
	types.ErrConstraint,
	types.ErrUsernameTaken,
	types.ErrInsufficientPayment,
	types.ErrInsufficientStock,
	types.ErrInvalidQuantity,
	auth.ErrInvalidUsername,
	auth.ErrWeakPassword,
	auth.ErrUnauthenticated,
	auth.ErrForbidden,
}

func exitCode(err error) int {
	var coded *codedError
	if errors.As(err, &coded) {
		return coded.code
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	return exitSysError
}

// exactArgs is cobra.ExactArgs reporting a user error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return userError(err)
		}
		return nil
	}
}
