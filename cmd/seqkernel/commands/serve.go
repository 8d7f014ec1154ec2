package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ecairns22/seqkernel/internal/host"
	"github.com/ecairns22/seqkernel/internal/redirect"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve JSON-lines kernel requests on stdin/stdout",
		Long: `Read one JSON request per line from stdin and write kernel messages, one
JSON object per line, to stdout. Supported msg_type values are
execute_request, kernel_info_request, history_request and shutdown_request.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Messages go to a duplicate of stdout so they can never be
			// mistaken for cell output.
			out, err := redirect.Dup(os.Stdout)
			if err != nil {
				return fmt.Errorf("duplicating stdout: %w", err)
			}
			defer out.Close()

			rt, cleanup, err := buildRuntime(flags)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := rt.session.Start(cmd.Context()); err != nil {
				return err
			}
			rt.logger.Info("serving", "session", rt.session.ID)

			var reader host.HistoryReader
			if rt.store != nil {
				reader = rt.store
			}
			return host.NewJSONLines(rt.session, reader, cmd.InOrStdin(), out).Serve(cmd.Context())
		},
	}
}
