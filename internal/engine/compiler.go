package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/ecairns22/seqkernel/internal/runner"
)

const cellFile = "cell.seq"

// CompilerOptions configures a Compiler session.
type CompilerOptions struct {
	Binary          string
	RunArgs         []string
	MarkerStatement string // text/template over {{.Marker}}
}

// Compiler is a session over the seqc binary. Every Exec recompiles the
// cells accepted so far followed by the new one; output produced by the
// replayed cells is dropped at a marker line printed between the two.
// Side effects of accepted cells, such as file writes, happen again on every
// later Exec.
type Compiler struct {
	runner   runner.StreamRunner
	opts     CompilerOptions
	marker   *template.Template
	dir      string
	accepted []string
	logger   *log.Logger

	// Where program output goes. The process's own stdout and stderr
	// outside of tests.
	stdout io.Writer
	stderr io.Writer
}

// NewCompiler creates the session directory and returns a ready engine.
func NewCompiler(r runner.StreamRunner, opts CompilerOptions, logger *log.Logger) (*Compiler, error) {
	if opts.Binary == "" {
		return nil, errors.New("compiler binary is required")
	}
	tmpl, err := template.New("marker").Parse(opts.MarkerStatement)
	if err != nil {
		return nil, fmt.Errorf("parsing marker statement %q: %w", opts.MarkerStatement, err)
	}

	dir, err := os.MkdirTemp("", "seqkernel-")
	if err != nil {
		return nil, fmt.Errorf("creating session dir: %w", err)
	}
	logger.Debug("session started", "dir", dir, "binary", opts.Binary)

	return &Compiler{
		runner: r,
		opts:   opts,
		marker: tmpl,
		dir:    dir,
		logger: logger,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}, nil
}

// Exec compiles and runs code in the context of the accepted cells. A cell
// that exits cleanly without writing to stderr is accepted; any other cell
// is discarded.
func (c *Compiler) Exec(ctx context.Context, code string) error {
	marker := uuid.NewString()
	src, err := c.source(marker, code)
	if err != nil {
		return err
	}

	path := filepath.Join(c.dir, cellFile)
	if err := os.WriteFile(path, []byte(src), 0600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	var stdout io.Writer = c.stdout
	if len(c.accepted) > 0 {
		stdout = newMarkerFilter(c.stdout, marker)
	}
	stderr := &countingWriter{w: c.stderr}

	args := append(append([]string(nil), c.opts.RunArgs...), path)
	runErr := c.runner.Stream(ctx, stdout, stderr, c.opts.Binary, args...)

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		// Output on stderr marks the cell as failed even on a clean exit, so
		// it is not replayed into later cells.
		if stderr.n == 0 {
			c.accepted = append(c.accepted, code)
		}
		return nil
	case errors.As(runErr, &exitErr) && ctx.Err() == nil:
		if stderr.n == 0 {
			fmt.Fprintf(c.stderr, "%s: exit status %d\n", filepath.Base(c.opts.Binary), exitErr.ExitCode())
		}
		return &ExecError{ExitCode: exitErr.ExitCode()}
	default:
		return fmt.Errorf("running %s: %w", c.opts.Binary, runErr)
	}
}

// source builds the program for one Exec.
func (c *Compiler) source(marker, code string) (string, error) {
	var b strings.Builder
	if len(c.accepted) > 0 {
		for _, cell := range c.accepted {
			b.WriteString(cell)
			b.WriteString("\n")
		}
		if err := c.marker.Execute(&b, struct{ Marker string }{marker}); err != nil {
			return "", fmt.Errorf("rendering marker statement: %w", err)
		}
		b.WriteString("\n")
	}
	b.WriteString(code)
	b.WriteString("\n")
	return b.String(), nil
}

// Reset forgets every accepted cell.
func (c *Compiler) Reset() {
	c.accepted = nil
}

// Cells returns the number of accepted cells.
func (c *Compiler) Cells() int {
	return len(c.accepted)
}

// Close removes the session directory.
func (c *Compiler) Close() error {
	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("removing session dir %s: %w", c.dir, err)
	}
	return nil
}

// markerFilter discards everything up to and including the first line ending
// in the marker, then passes output through unchanged. A replayed cell whose
// output lacks a trailing newline puts the marker at the end of its last line.
type markerFilter struct {
	w      io.Writer
	marker []byte
	buf    []byte
	passed bool
}

func newMarkerFilter(w io.Writer, marker string) *markerFilter {
	return &markerFilter{w: w, marker: []byte(marker)}
}

func (f *markerFilter) Write(p []byte) (int, error) {
	if f.passed {
		return f.w.Write(p)
	}
	f.buf = append(f.buf, p...)
	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			return len(p), nil
		}
		line := bytes.TrimRight(f.buf[:i], "\r")
		rest := f.buf[i+1:]
		if bytes.HasSuffix(line, f.marker) {
			f.passed = true
			f.buf = nil
			if len(rest) > 0 {
				if _, err := f.w.Write(rest); err != nil {
					return 0, err
				}
			}
			return len(p), nil
		}
		f.buf = rest
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

var _ Engine = (*Compiler)(nil)
