// Package kernel implements the notebook kernel callbacks for Seq: kernel
// metadata taken from the seqc binary, and the execute handler that runs a
// cell with its output captured and relays the result as a stream message.
package kernel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/text/encoding/unicode"

	"github.com/ecairns22/seqkernel/internal/redirect"
	"github.com/ecairns22/seqkernel/internal/runner"
)

const (
	Implementation  = "seqkernel"
	ProtocolVersion = "5.3"
)

// ImplementationVersion is set at build time via ldflags.
var ImplementationVersion = "0.0.0"

// ErrNoVersion is returned when the banner carries no "version X.Y" text.
var ErrNoVersion = errors.New("no version number in compiler banner")

// versionPattern matches the word "version" followed by a dotted number
// with at least two components.
var versionPattern = regexp.MustCompile(`version (\d+(?:\.\d+)+)`)

// LanguageInfo describes the language to the notebook front-end.
type LanguageInfo struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	Mimetype      string `json:"mimetype"`
	FileExtension string `json:"file_extension"`
}

var seqLanguage = LanguageInfo{
	Name:          "Seq",
	Mimetype:      "application/seq",
	FileExtension: ".seq",
}

// Info is the content of a kernel_info_reply.
type Info struct {
	ProtocolVersion       string       `json:"protocol_version"`
	Implementation        string       `json:"implementation"`
	ImplementationVersion string       `json:"implementation_version"`
	LanguageInfo          LanguageInfo `json:"language_info"`
	Banner                string       `json:"banner"`
}

// Executor runs one cell; its output goes to the process's stdout/stderr.
type Executor interface {
	Exec(ctx context.Context, code string) error
}

// Options configures a Kernel.
type Options struct {
	Binary      string
	VersionFlag string
}

// Kernel answers metadata queries and execute requests. It is driven by a
// single request loop and is not safe for concurrent Execute calls.
type Kernel struct {
	runner runner.CommandRunner
	exec   Executor
	opts   Options
	logger *log.Logger

	mu     sync.Mutex
	banner *string
}

// New creates a Kernel around a long-lived executor.
func New(r runner.CommandRunner, exec Executor, opts Options, logger *log.Logger) *Kernel {
	if opts.Binary == "" {
		opts.Binary = "seqc"
	}
	if opts.VersionFlag == "" {
		opts.VersionFlag = "--version"
	}
	return &Kernel{runner: r, exec: exec, opts: opts, logger: logger}
}

// Banner returns the compiler's self-reported version text. The binary is
// queried on the first successful call only.
func (k *Kernel) Banner(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.banner != nil {
		return *k.banner, nil
	}

	stdout, stderr, err := k.runner.Run(ctx, k.opts.Binary, k.opts.VersionFlag)
	if err != nil {
		return "", fmt.Errorf("querying %s %s: %s: %w", k.opts.Binary, k.opts.VersionFlag, strings.TrimSpace(stderr), err)
	}
	banner := decode([]byte(stdout))
	k.banner = &banner
	k.logger.Debug("compiler banner cached", "banner", strings.TrimSpace(banner))
	return banner, nil
}

// LanguageVersion extracts the dotted version number from the banner.
func (k *Kernel) LanguageVersion(ctx context.Context) (string, error) {
	banner, err := k.Banner(ctx)
	if err != nil {
		return "", err
	}
	return ParseVersion(banner)
}

// ParseVersion returns the number following the first "version " in text.
func ParseVersion(text string) (string, error) {
	m := versionPattern.FindStringSubmatch(text)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrNoVersion, strings.TrimSpace(text))
	}
	return m[1], nil
}

// LanguageInfo returns the static language metadata with its version.
func (k *Kernel) LanguageInfo(ctx context.Context) (LanguageInfo, error) {
	info := seqLanguage
	v, err := k.LanguageVersion(ctx)
	if err != nil {
		return info, err
	}
	info.Version = v
	return info, nil
}

// Info assembles the kernel_info_reply content. A banner without a
// recognizable version reports "unknown" rather than failing the reply.
func (k *Kernel) Info(ctx context.Context) (*Info, error) {
	banner, err := k.Banner(ctx)
	if err != nil {
		return nil, err
	}
	lang, err := k.LanguageInfo(ctx)
	if errors.Is(err, ErrNoVersion) {
		k.logger.Warn("compiler banner has no version", "banner", strings.TrimSpace(banner))
		lang.Version = "unknown"
	} else if err != nil {
		return nil, err
	}
	return &Info{
		ProtocolVersion:       ProtocolVersion,
		Implementation:        Implementation,
		ImplementationVersion: ImplementationVersion,
		LanguageInfo:          lang,
		Banner:                banner,
	}, nil
}

// Execute handles an execute request. Exactly zero or one stream message is
// sent through host. The returned error is reserved for failures to capture
// or run at all; program errors produce an error-status reply instead.
func (k *Kernel) Execute(ctx context.Context, host Host, req ExecuteRequest) (*Outcome, error) {
	if strings.TrimSpace(req.Code) == "" {
		return &Outcome{Reply: OK(host.ExecutionCount())}, nil
	}

	var outBuf, errBuf bytes.Buffer
	err := redirect.Capture(&outBuf, &errBuf, func() error {
		return k.exec.Exec(ctx, req.Code)
	})
	if err != nil {
		return nil, err
	}

	out := strings.TrimSpace(decode(outBuf.Bytes()))
	errText := strings.TrimSpace(decode(errBuf.Bytes()))
	outcome := &Outcome{Stdout: out, Stderr: errText}

	if errText != "" {
		if !req.Silent {
			if err := host.SendResponse(IOPub, MsgStream, StreamContent{Name: Stderr, Text: errText}); err != nil {
				return nil, fmt.Errorf("sending stderr stream: %w", err)
			}
		}
		outcome.Reply = Error(host.ExecutionCount())
		return outcome, nil
	}

	if !req.Silent {
		if err := host.SendResponse(IOPub, MsgStream, StreamContent{Name: Stdout, Text: out}); err != nil {
			return nil, fmt.Errorf("sending stdout stream: %w", err)
		}
	}
	outcome.Reply = OK(host.ExecutionCount())
	return outcome, nil
}

// decode turns captured bytes into text, replacing invalid UTF-8.
func decode(b []byte) string {
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(out)
}
