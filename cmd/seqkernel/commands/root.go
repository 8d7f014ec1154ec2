package commands

import (
	"github.com/spf13/cobra"
)

// globalFlags holds the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	debug      bool
}

// Root returns the root cobra command with all subcommands attached.
func Root() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:          "seqkernel",
		Short:        "Notebook kernel for the Seq language",
		Long:         "seqkernel runs Seq notebook cells through the seqc compiler and relays their output.",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default $SEQKERNEL_CONFIG or /etc/seqkernel/seqkernel.conf)")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(initCmd(flags))
	cmd.AddCommand(infoCmd(flags))
	cmd.AddCommand(consoleCmd(flags))
	cmd.AddCommand(serveCmd(flags))
	cmd.AddCommand(historyCmd(flags))
	cmd.AddCommand(fetchCmd(flags))
	cmd.AddCommand(versionCmd())

	return cmd
}
