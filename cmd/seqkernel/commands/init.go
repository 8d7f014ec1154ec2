package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ecairns22/seqkernel/internal/config"
	"github.com/ecairns22/seqkernel/internal/kernel"
	"github.com/ecairns22/seqkernel/internal/runner"
	"github.com/ecairns22/seqkernel/internal/state"
)

func initCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "First-time setup: write config template, create the history store, check the compiler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, flags)
		},
	}
}

func runInit(cmd *cobra.Command, flags *globalFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	// 1. Write template config if missing
	configPath := flags.configPath
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := os.WriteFile(configPath, []byte(config.TemplateConfig()), 0600); err != nil {
			return fmt.Errorf("writing config template: %w", err)
		}
		fmt.Fprintf(out, "  wrote config template to %s\n", configPath)
	}

	// 2. Load config
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	fmt.Fprintf(out, "  config loaded from %s\n", configPath)

	// 3. Initialize history store
	if cfg.History.On() {
		store, err := state.Open(cfg.History.Driver, cfg.History.DSN)
		if err != nil {
			return fmt.Errorf("initializing history store: %w", err)
		}
		store.Close()
		fmt.Fprintf(out, "  history store (%s): OK\n", cfg.History.Driver)
	} else {
		fmt.Fprintf(out, "  history store: disabled\n")
	}

	// 4. Check the compiler
	logger, err := newLogger(cfg, flags)
	if err != nil {
		return err
	}
	k := kernel.New(&runner.OSRunner{}, nil, kernelOptions(cfg), logger)
	version, err := k.LanguageVersion(ctx)
	switch {
	case errors.Is(err, kernel.ErrNoVersion):
		fmt.Fprintf(out, "  compiler %s: OK (version unknown)\n", cfg.Compiler.Binary)
	case err != nil:
		fmt.Fprintf(out, "  compiler %s: FAILED (%v)\n", cfg.Compiler.Binary, err)
		fmt.Fprintf(out, "\nInstall seqc or run 'seqkernel fetch', then run 'seqkernel init' again.\n")
		return err
	default:
		fmt.Fprintf(out, "  compiler %s: OK (Seq %s)\n", cfg.Compiler.Binary, version)
	}

	fmt.Fprintf(out, "\nseqkernel initialized successfully.\n")
	return nil
}
