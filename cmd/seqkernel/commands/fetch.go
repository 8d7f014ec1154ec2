package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	ghclient "github.com/ecairns22/seqkernel/internal/github"
)

func fetchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [version]",
		Short: "Download a seqc release from GitHub",
		Long: `Download the seqc build for this platform from the configured GitHub
repository into github.bin_dir and point the seqc symlink at it. The
version defaults to the latest release.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version := "latest"
			if len(args) == 1 {
				version = args[0]
			}

			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, flags)
			if err != nil {
				return err
			}
			gh, err := newGitHubClient(cfg)
			if err != nil {
				return err
			}

			resolved, err := gh.ResolveVersion(cmd.Context(), version)
			if err != nil {
				return err
			}
			logger.Info("downloading compiler", "repo", cfg.GitHub.Owner+"/"+cfg.GitHub.Repo, "version", resolved)

			path, err := gh.DownloadCompiler(cmd.Context(), resolved)
			if err != nil {
				return err
			}

			link := filepath.Join(cfg.GitHub.BinDir, ghclient.CompilerName)
			fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %s\n", path)
			if cfg.Compiler.Binary != link {
				fmt.Fprintf(cmd.OutOrStdout(), "Set compiler.binary = %q to use it.\n", link)
			}
			return nil
		},
	}
}
