// Package engine runs Seq source code in a persistent session.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
)

// Engine executes code against long-lived session state. Implementations
// write program output to the process's stdout and stderr.
type Engine interface {
	Exec(ctx context.Context, code string) error
	Close() error
}

// ExecError reports that the program itself failed. Its diagnostics have
// already been written to stderr.
type ExecError struct {
	ExitCode int
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("program exited with status %d", e.ExitCode)
}

// Wrapper owns the session engine and exposes the single execute operation.
type Wrapper struct {
	engine Engine
	logger *log.Logger
}

// NewWrapper wraps an engine created once at kernel startup.
func NewWrapper(e Engine, logger *log.Logger) *Wrapper {
	return &Wrapper{engine: e, logger: logger}
}

// Exec runs code in the session. Program errors surface only as text on
// stderr; the returned error is reserved for failures to run at all.
func (w *Wrapper) Exec(ctx context.Context, code string) error {
	code = strings.TrimRightFunc(code, unicode.IsSpace)

	err := w.engine.Exec(ctx, code)
	var execErr *ExecError
	if errors.As(err, &execErr) {
		w.logger.Debug("program failed", "exit", execErr.ExitCode)
		return nil
	}
	if err != nil {
		return fmt.Errorf("executing cell: %w", err)
	}
	return nil
}

// Close releases the session engine.
func (w *Wrapper) Close() error {
	return w.engine.Close()
}
