package commands

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/ecairns22/seqkernel/internal/config"
	"github.com/ecairns22/seqkernel/internal/engine"
	ghclient "github.com/ecairns22/seqkernel/internal/github"
	"github.com/ecairns22/seqkernel/internal/host"
	"github.com/ecairns22/seqkernel/internal/kernel"
	"github.com/ecairns22/seqkernel/internal/redirect"
	"github.com/ecairns22/seqkernel/internal/runner"
	"github.com/ecairns22/seqkernel/internal/state"
)

// loadConfig reads the file named by --config, or the default location.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFrom(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newLogger writes to a duplicate of stderr so log lines are never captured
// as cell output.
func newLogger(cfg *config.Config, flags *globalFlags) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Log.Level, err)
	}
	if flags.debug {
		level = log.DebugLevel
	}

	w, err := redirect.Dup(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("duplicating stderr for logging: %w", err)
	}
	return log.NewWithOptions(w, log.Options{
		Prefix:          "seqkernel",
		Level:           level,
		ReportTimestamp: true,
	}), nil
}

func kernelOptions(cfg *config.Config) kernel.Options {
	return kernel.Options{Binary: cfg.Compiler.Binary, VersionFlag: cfg.Compiler.VersionFlag}
}

// app is everything a host needs to serve cells.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	kernel  *kernel.Kernel
	store   *state.Store // nil when history is disabled
	session *host.Session
}

// buildRuntime loads config and constructs the engine, kernel, history store
// and host session. The caller is responsible for calling the returned
// cleanup function.
func buildRuntime(flags *globalFlags) (*app, func(), error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg, flags)
	if err != nil {
		return nil, nil, err
	}

	r := &runner.OSRunner{}
	compiler, err := engine.NewCompiler(r, engine.CompilerOptions{
		Binary:          cfg.Compiler.Binary,
		RunArgs:         cfg.Compiler.RunArgs,
		MarkerStatement: cfg.Compiler.MarkerStatement,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("starting engine: %w", err)
	}
	wrapper := engine.NewWrapper(compiler, logger)
	k := kernel.New(r, wrapper, kernelOptions(cfg), logger)

	var (
		store   *state.Store
		history host.History
	)
	if cfg.History.On() {
		store, err = state.Open(cfg.History.Driver, cfg.History.DSN)
		if err != nil {
			wrapper.Close()
			return nil, nil, fmt.Errorf("opening history store: %w", err)
		}
		history = store
	}

	cleanup := func() {
		if err := wrapper.Close(); err != nil {
			logger.Warn("closing engine", "err", err)
		}
		if store != nil {
			store.Close()
		}
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		kernel:  k,
		store:   store,
		session: host.NewSession(k, history, logger),
	}, cleanup, nil
}

// buildStateOnly opens just the history store (for read-only commands).
func buildStateOnly(flags *globalFlags) (*state.Store, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	if !cfg.History.On() {
		return nil, fmt.Errorf("history is disabled in config")
	}
	return state.Open(cfg.History.Driver, cfg.History.DSN)
}

func newGitHubClient(cfg *config.Config) (*ghclient.Client, error) {
	gh, err := ghclient.New(cfg.GitHub.Token, cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.AssetPattern, cfg.GitHub.BinDir)
	if err != nil {
		return nil, fmt.Errorf("creating github client: %w", err)
	}
	return gh, nil
}
