package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ecairns22/seqkernel/internal/kernel"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (protocol %s)\n", kernel.Implementation, kernel.ImplementationVersion, kernel.ProtocolVersion)
		},
	}
}
