package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/caja/pkg/caja"
)

const modulePath = "github.com/mesh-intelligence/caja"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the caja version",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"version": caja.Version, "module": modulePath})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "caja v%s\nmodule: %s\n", caja.Version, modulePath)
			return nil
		},
	}
}
