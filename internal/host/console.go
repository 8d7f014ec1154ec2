package host

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ecairns22/seqkernel/internal/kernel"
)

// cellSeparator ends a cell, as in Seq multi-case test files.
const cellSeparator = "--"

// Console reads cells from a reader and prints their output.
type Console struct {
	session     *Session
	in          io.Reader
	out         io.Writer
	errOut      io.Writer
	interactive bool
}

// NewConsole creates a console host. In interactive mode prompts are
// printed and a blank line after code also ends a cell.
func NewConsole(s *Session, in io.Reader, out, errOut io.Writer, interactive bool) *Console {
	c := &Console{session: s, in: in, out: out, errOut: errOut, interactive: interactive}
	s.send = c.deliver
	return c
}

func (c *Console) deliver(channel, msgType string, content any) error {
	stream, ok := content.(kernel.StreamContent)
	if !ok || msgType != kernel.MsgStream {
		return nil
	}
	if stream.Text == "" {
		return nil
	}
	w := c.out
	if stream.Name == kernel.Stderr {
		w = c.errOut
	}
	_, err := fmt.Fprintln(w, stream.Text)
	return err
}

// Run executes cells until the input is exhausted. It returns the number
// of cells that ended in an error status.
func (c *Console) Run(ctx context.Context) (int, error) {
	failed := 0
	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var cell []string
	flush := func() error {
		code := strings.Join(cell, "\n")
		cell = cell[:0]
		if strings.TrimSpace(code) == "" {
			return nil
		}
		outcome, err := c.session.Execute(ctx, kernel.ExecuteRequest{Code: code, StoreHistory: true})
		if err != nil {
			return err
		}
		if outcome.Reply.Status != kernel.StatusOK {
			failed++
		}
		return nil
	}

	c.prompt(false)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return failed, err
		}
		line := scanner.Text()
		blank := strings.TrimSpace(line) == ""
		if c.interactive && blank && len(cell) == 0 {
			c.prompt(false)
			continue
		}
		if strings.TrimRight(line, " \t\r") != cellSeparator && !(c.interactive && blank) {
			cell = append(cell, line)
			c.prompt(true)
			continue
		}
		if err := flush(); err != nil {
			return failed, err
		}
		c.prompt(false)
	}
	if err := scanner.Err(); err != nil {
		return failed, fmt.Errorf("reading input: %w", err)
	}
	if err := flush(); err != nil {
		return failed, err
	}
	return failed, nil
}

func (c *Console) prompt(continuation bool) {
	if !c.interactive {
		return
	}
	if continuation {
		fmt.Fprint(c.out, "   ...: ")
		return
	}
	fmt.Fprintf(c.out, "In [%d]: ", c.session.ExecutionCount()+1)
}
