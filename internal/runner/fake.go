package runner

import (
	"context"
	"io"
	"strings"
	"sync"
)

// Call records a single invocation of a command.
type Call struct {
	Name string
	Args []string
}

func (c Call) String() string {
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Response is a pre-configured response for a command pattern.
type Response struct {
	Stdout string
	Stderr string
	Err    error
}

// FakeRunner records command calls and returns pre-configured responses.
// Exported for use by engine and kernel tests.
type FakeRunner struct {
	mu        sync.Mutex
	Calls     []Call
	responses map[string]Response // key: "name arg1 arg2..."
	fallback  Response
}

// NewFakeRunner creates a FakeRunner with no responses configured.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		responses: make(map[string]Response),
	}
}

// SetResponse configures a response for a specific command string.
func (f *FakeRunner) SetResponse(cmd string, resp Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[cmd] = resp
}

// SetFallback sets the default response for unmatched commands.
func (f *FakeRunner) SetFallback(resp Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallback = resp
}

// Run records the call and returns the matching response.
func (f *FakeRunner) Run(_ context.Context, name string, args ...string) (string, string, error) {
	resp := f.record(name, args)
	return resp.Stdout, resp.Stderr, resp.Err
}

// Stream records the call and writes the matching response to the writers.
func (f *FakeRunner) Stream(_ context.Context, stdout, stderr io.Writer, name string, args ...string) error {
	resp := f.record(name, args)
	if resp.Stdout != "" {
		if _, err := io.WriteString(stdout, resp.Stdout); err != nil {
			return err
		}
	}
	if resp.Stderr != "" {
		if _, err := io.WriteString(stderr, resp.Stderr); err != nil {
			return err
		}
	}
	return resp.Err
}

func (f *FakeRunner) record(name string, args []string) Response {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := Call{Name: name, Args: append([]string(nil), args...)}
	f.Calls = append(f.Calls, call)

	if resp, ok := f.responses[call.String()]; ok {
		return resp
	}

	// Try matching just the command name with first arg for broader matches
	if len(args) > 0 {
		if resp, ok := f.responses[name+" "+args[0]]; ok {
			return resp
		}
	}

	if resp, ok := f.responses[name]; ok {
		return resp
	}

	return f.fallback
}

// Called returns true if a command matching the prefix was recorded.
func (f *FakeRunner) Called(prefix string) bool {
	return f.CallCount(prefix) > 0
}

// CallCount returns the number of times a command matching the prefix was called.
func (f *FakeRunner) CallCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if strings.HasPrefix(c.String(), prefix) {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls.
func (f *FakeRunner) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
}

var (
	_ CommandRunner = (*FakeRunner)(nil)
	_ StreamRunner  = (*FakeRunner)(nil)
	_ CommandRunner = (*OSRunner)(nil)
	_ StreamRunner  = (*OSRunner)(nil)
)
