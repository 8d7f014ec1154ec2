package kernel

import (
	"context"
	"io"
	"os/exec"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/ecairns22/seqkernel/internal/engine"
	"github.com/ecairns22/seqkernel/internal/runner"
)

// shellKernel wires a kernel to a compiler session that runs cells through
// sh, so several cells can be executed against shared state.
func shellKernel(t *testing.T) *Kernel {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	logger := log.New(io.Discard)
	r := &runner.OSRunner{}
	c, err := engine.NewCompiler(r, engine.CompilerOptions{
		Binary:          sh,
		MarkerStatement: "echo '{{.Marker}}'",
	}, logger)
	if err != nil {
		t.Fatalf("new compiler: %v", err)
	}
	w := engine.NewWrapper(c, logger)
	t.Cleanup(func() { w.Close() })
	return New(r, w, Options{Binary: sh}, logger)
}

type cellResult struct {
	status string
	stream StreamContent
}

func runCells(t *testing.T, k *Kernel, cells ...string) []cellResult {
	t.Helper()
	var results []cellResult
	for i, code := range cells {
		host := &fakeHost{count: i + 1}
		outcome, err := k.Execute(context.Background(), host, ExecuteRequest{Code: code, StoreHistory: true})
		if err != nil {
			t.Fatalf("cell %d: %v", i+1, err)
		}
		if len(host.messages) != 1 {
			t.Fatalf("cell %d: %d messages, want 1", i+1, len(host.messages))
		}
		results = append(results, cellResult{
			status: outcome.Reply.Status,
			stream: host.messages[0].content.(StreamContent),
		})
	}
	return results
}

func TestSessionWarningDoesNotLeakIntoLaterCells(t *testing.T) {
	got := runCells(t, shellKernel(t), "echo warn >&2", "echo ok")

	if got[0].status != StatusError || got[0].stream != (StreamContent{Name: Stderr, Text: "warn"}) {
		t.Errorf("cell 1 = %+v", got[0])
	}
	if got[1].status != StatusOK || got[1].stream != (StreamContent{Name: Stdout, Text: "ok"}) {
		t.Errorf("cell 2 = %+v, want ok with its own stdout", got[1])
	}
}

func TestSessionUnterminatedOutput(t *testing.T) {
	got := runCells(t, shellKernel(t), "printf abc", "echo second", "echo third")

	want := []string{"abc", "second", "third"}
	for i, w := range want {
		if got[i].status != StatusOK || got[i].stream.Text != w {
			t.Errorf("cell %d = %+v, want ok %q", i+1, got[i], w)
		}
	}
}

func TestSessionStateSurvivesFailedCell(t *testing.T) {
	got := runCells(t, shellKernel(t),
		"x=5",
		"echo broken >&2; exit 1",
		"echo $x",
	)

	if got[0].status != StatusOK || got[0].stream.Text != "" {
		t.Errorf("cell 1 = %+v", got[0])
	}
	if got[1].status != StatusError || got[1].stream.Text != "broken" {
		t.Errorf("cell 2 = %+v", got[1])
	}
	if got[2].status != StatusOK || got[2].stream.Text != "5" {
		t.Errorf("cell 3 = %+v, want state from cell 1 and no replayed error", got[2])
	}
}
