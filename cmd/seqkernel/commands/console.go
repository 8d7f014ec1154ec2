package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ecairns22/seqkernel/internal/host"
)

func consoleCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "console [file]",
		Short: "Run cells from a file or stdin",
		Long: `Run Seq cells one after another in a single session.

Cells are separated by a line containing only "--". When reading from a
terminal, a blank line also ends the current cell.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			interactive := isTerminal(os.Stdin)
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening %s: %w", args[0], err)
				}
				defer f.Close()
				in, interactive = f, false
			}

			rt, cleanup, err := buildRuntime(flags)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := rt.session.Start(cmd.Context()); err != nil {
				return err
			}
			if interactive {
				if banner, err := rt.kernel.Banner(cmd.Context()); err == nil {
					fmt.Fprintln(cmd.OutOrStdout(), banner)
				}
			}

			console := host.NewConsole(rt.session, in, cmd.OutOrStdout(), cmd.ErrOrStderr(), interactive)
			failed, err := console.Run(cmd.Context())
			if err != nil {
				return err
			}
			if failed > 0 && !interactive {
				return fmt.Errorf("%d cell(s) failed", failed)
			}
			return nil
		},
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
