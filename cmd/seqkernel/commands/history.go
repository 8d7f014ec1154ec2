package commands

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ecairns22/seqkernel/internal/state"
)

func historyCmd(flags *globalFlags) *cobra.Command {
	var (
		last  bool
		limit int
		full  bool
	)

	cmd := &cobra.Command{
		Use:   "history [session]",
		Short: "List recorded sessions, or the executions of one session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := buildStateOnly(flags)
			if err != nil {
				return err
			}
			defer store.Close()
			ctx := cmd.Context()

			var sessionID string
			switch {
			case len(args) == 1:
				sessionID = args[0]
			case last:
				sess, err := store.LatestSession(ctx)
				if errors.Is(err, state.ErrNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded.")
					return nil
				}
				if err != nil {
					return err
				}
				sessionID = sess.ID
			default:
				return listSessions(cmd, store)
			}

			if _, err := store.GetSession(ctx, sessionID); err != nil {
				if errors.Is(err, state.ErrNotFound) {
					return fmt.Errorf("session %q not found", sessionID)
				}
				return err
			}

			execs, err := store.ListExecutions(ctx, sessionID, limit)
			if err != nil {
				return err
			}
			if len(execs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No executions recorded for this session.")
				return nil
			}

			if full {
				for i := len(execs) - 1; i >= 0; i-- {
					e := execs[i]
					fmt.Fprintf(cmd.OutOrStdout(), "In [%d] (%s, %s):\n%s\n", e.ExecutionCount, e.Status, e.ExecutedAt.Format(time.RFC3339), e.Code)
					if e.Stdout != "" {
						fmt.Fprintf(cmd.OutOrStdout(), "-- stdout\n%s\n", e.Stdout)
					}
					if e.Stderr != "" {
						fmt.Fprintf(cmd.OutOrStdout(), "-- stderr\n%s\n", e.Stderr)
					}
					fmt.Fprintln(cmd.OutOrStdout())
				}
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "COUNT\tSTATUS\tEXECUTED\tCODE")
			for i := len(execs) - 1; i >= 0; i-- {
				e := execs[i]
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.ExecutionCount, e.Status, e.ExecutedAt.Format(time.DateTime), firstLine(e.Code))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().BoolVar(&last, "last", false, "show the most recent session")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show only the newest N executions (0 for all)")
	cmd.Flags().BoolVar(&full, "full", false, "print full code and output of each execution")
	return cmd
}

func listSessions(cmd *cobra.Command, store *state.Store) error {
	sessions, err := store.ListSessions(cmd.Context())
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded. Run 'seqkernel console' to get started.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTARTED\tCOMPILER")
	for _, s := range sessions {
		banner := firstLine(s.Banner)
		if banner == "" {
			banner = "—"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.StartedAt.Format(time.DateTime), banner)
	}
	w.Flush()
	return nil
}

// firstLine returns the first non-blank line of s, marked when more follow.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	line, rest, more := strings.Cut(s, "\n")
	if more && strings.TrimSpace(rest) != "" {
		return line + " …"
	}
	return line
}
