package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

const defaultConfigPath = "/etc/seqkernel/seqkernel.conf"
const envOverride = "SEQKERNEL_CONFIG"

type Config struct {
	Compiler CompilerConfig `toml:"compiler"`
	History  HistoryConfig  `toml:"history"`
	GitHub   GitHubConfig   `toml:"github"`
	Log      LogConfig      `toml:"log"`
}

type CompilerConfig struct {
	Binary          string   `toml:"binary"`
	VersionFlag     string   `toml:"version_flag"`
	RunArgs         []string `toml:"run_args"`
	MarkerStatement string   `toml:"marker_statement"`
}

type HistoryConfig struct {
	Enabled *bool  `toml:"enabled"`
	Driver  string `toml:"driver"` // "sqlite" or "mysql"
	DSN     string `toml:"dsn"`
}

// On reports whether executions are recorded. History is on unless disabled explicitly.
func (h HistoryConfig) On() bool {
	return h.Enabled == nil || *h.Enabled
}

type GitHubConfig struct {
	Token        string `toml:"token"`
	Owner        string `toml:"owner"`
	Repo         string `toml:"repo"`
	AssetPattern string `toml:"asset_pattern"`
	BinDir       string `toml:"bin_dir"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	if p := os.Getenv(envOverride); p != "" {
		return p
	}
	return defaultConfigPath
}

// Load reads configuration from the default path. A missing file at the
// built-in location is not an error: the kernel runs on defaults.
func Load() (*Config, error) {
	path := DefaultPath()
	cfg, err := LoadFrom(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) && os.Getenv(envOverride) == "" {
		return Defaults(), nil
	}
	return cfg, err
}

// LoadFrom reads configuration from the given path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Defaults returns a configuration with every default applied.
func Defaults() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Compiler.Binary == "" {
		cfg.Compiler.Binary = "seqc"
	}
	if cfg.Compiler.VersionFlag == "" {
		cfg.Compiler.VersionFlag = "--version"
	}
	if cfg.Compiler.MarkerStatement == "" {
		cfg.Compiler.MarkerStatement = "print('{{.Marker}}')"
	}
	if cfg.History.Driver == "" {
		cfg.History.Driver = "sqlite"
	}
	if cfg.History.DSN == "" && cfg.History.Driver == "sqlite" {
		cfg.History.DSN = defaultHistoryPath()
	}
	if cfg.GitHub.Owner == "" {
		cfg.GitHub.Owner = "seq-lang"
	}
	if cfg.GitHub.Repo == "" {
		cfg.GitHub.Repo = "seq"
	}
	if cfg.GitHub.AssetPattern == "" {
		cfg.GitHub.AssetPattern = "{{.Name}}-{{.OS}}-{{.Arch}}"
	}
	if cfg.GitHub.BinDir == "" {
		cfg.GitHub.BinDir = defaultBinDir()
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	switch c.History.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("config: history.driver must be \"sqlite\" or \"mysql\", got %q", c.History.Driver)
	}
	if c.History.On() && c.History.DSN == "" {
		return fmt.Errorf("config: history.dsn is required for driver %q", c.History.Driver)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	return nil
}

func dataHome() string {
	if d := os.Getenv("XDG_DATA_HOME"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return filepath.Join(home, ".local", "share")
}

func defaultHistoryPath() string {
	return filepath.Join(dataHome(), "seqkernel", "history.db")
}

func defaultBinDir() string {
	return filepath.Join(dataHome(), "seqkernel", "bin")
}

// TemplateConfig returns a TOML template with placeholder values for first-time setup.
func TemplateConfig() string {
	return `[compiler]
binary           = "seqc"
version_flag     = "--version"
run_args         = []
marker_statement = "print('{{.Marker}}')"

[history]
enabled = true
driver  = "sqlite"
# dsn   = "/home/you/.local/share/seqkernel/history.db"
# MySQL/MariaDB instead:
# driver = "mysql"
# dsn    = "seqkernel:secret@tcp(127.0.0.1:3306)/seqkernel?parseTime=true"

[github]
token         = ""
owner         = "seq-lang"
repo          = "seq"
asset_pattern = "{{.Name}}-{{.OS}}-{{.Arch}}"
# bin_dir     = "/home/you/.local/share/seqkernel/bin"

[log]
level = "info"
`
}
