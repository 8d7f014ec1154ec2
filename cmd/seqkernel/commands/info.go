package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ecairns22/seqkernel/internal/kernel"
	"github.com/ecairns22/seqkernel/internal/runner"
)

func infoCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show kernel and language metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, flags)
			if err != nil {
				return err
			}

			// Metadata never executes a cell, so no engine is started.
			k := kernel.New(&runner.OSRunner{}, nil, kernelOptions(cfg), logger)
			info, err := k.Info(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Implementation:\t%s %s\n", info.Implementation, info.ImplementationVersion)
			fmt.Fprintf(w, "Protocol:\t%s\n", info.ProtocolVersion)
			fmt.Fprintf(w, "Language:\t%s %s\n", info.LanguageInfo.Name, info.LanguageInfo.Version)
			fmt.Fprintf(w, "Mimetype:\t%s\n", info.LanguageInfo.Mimetype)
			fmt.Fprintf(w, "Extension:\t%s\n", info.LanguageInfo.FileExtension)
			fmt.Fprintf(w, "Compiler:\t%s\n", cfg.Compiler.Binary)
			w.Flush()

			fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", info.Banner)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the kernel_info_reply content as JSON")
	return cmd
}
