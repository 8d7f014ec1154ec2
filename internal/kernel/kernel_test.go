package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/ecairns22/seqkernel/internal/runner"
)

type message struct {
	channel string
	msgType string
	content any
}

type fakeHost struct {
	count    int
	messages []message
}

func (h *fakeHost) ExecutionCount() int { return h.count }

func (h *fakeHost) SendResponse(channel, msgType string, content any) error {
	h.messages = append(h.messages, message{channel, msgType, content})
	return nil
}

// scriptedExec writes fixed text to the real stdout/stderr descriptors.
type scriptedExec struct {
	stdout string
	stderr string
	err    error
	calls  []string
}

func (s *scriptedExec) Exec(_ context.Context, code string) error {
	s.calls = append(s.calls, code)
	fmt.Fprint(os.Stdout, s.stdout)
	fmt.Fprint(os.Stderr, s.stderr)
	return s.err
}

func newTestKernel(exec Executor) (*Kernel, *runner.FakeRunner) {
	fake := runner.NewFakeRunner()
	fake.SetResponse("seqc --version", runner.Response{Stdout: "seqc version 0.10.2 (build info)\n"})
	return New(fake, exec, Options{}, log.New(io.Discard)), fake
}

func TestExecuteBlankCode(t *testing.T) {
	for _, code := range []string{"", "   ", "\n\t  \n"} {
		exec := &scriptedExec{stdout: "should not run"}
		k, _ := newTestKernel(exec)
		host := &fakeHost{count: 4}

		outcome, err := k.Execute(context.Background(), host, ExecuteRequest{Code: code})
		if err != nil {
			t.Fatalf("execute %q: %v", code, err)
		}
		if outcome.Reply.Status != StatusOK || outcome.Reply.ExecutionCount != 4 {
			t.Errorf("reply = %+v, want ok with count 4", outcome.Reply)
		}
		if len(exec.calls) != 0 {
			t.Errorf("engine should not run for %q", code)
		}
		if len(host.messages) != 0 {
			t.Errorf("no message should be sent for %q, got %v", code, host.messages)
		}
	}
}

func TestExecuteStdout(t *testing.T) {
	exec := &scriptedExec{stdout: "1\n"}
	k, _ := newTestKernel(exec)
	host := &fakeHost{count: 1}

	outcome, err := k.Execute(context.Background(), host, ExecuteRequest{Code: "print(1)", StoreHistory: true})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.Reply.Status != StatusOK {
		t.Errorf("status = %q, want ok", outcome.Reply.Status)
	}
	if len(host.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(host.messages))
	}
	m := host.messages[0]
	if m.channel != IOPub || m.msgType != MsgStream {
		t.Errorf("message = %s/%s, want iopub/stream", m.channel, m.msgType)
	}
	if got := m.content.(StreamContent); got != (StreamContent{Name: Stdout, Text: "1"}) {
		t.Errorf("content = %+v", got)
	}
	if exec.calls[0] != "print(1)" {
		t.Errorf("engine got %q", exec.calls[0])
	}
}

func TestExecuteEmptyOutputStillSendsStdout(t *testing.T) {
	k, _ := newTestKernel(&scriptedExec{})
	host := &fakeHost{}

	if _, err := k.Execute(context.Background(), host, ExecuteRequest{Code: "x = 1"}); err != nil {
		t.Fatal(err)
	}
	if len(host.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(host.messages))
	}
	if got := host.messages[0].content.(StreamContent); got != (StreamContent{Name: Stdout, Text: ""}) {
		t.Errorf("content = %+v", got)
	}
}

func TestExecuteStderrWins(t *testing.T) {
	exec := &scriptedExec{stdout: "partial output\n", stderr: "  boom\n"}
	k, _ := newTestKernel(exec)
	host := &fakeHost{count: 2}

	outcome, err := k.Execute(context.Background(), host, ExecuteRequest{Code: "raise"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.Reply.Status != StatusError || outcome.Reply.ExecutionCount != 2 {
		t.Errorf("reply = %+v, want error with count 2", outcome.Reply)
	}
	if len(host.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(host.messages))
	}
	if got := host.messages[0].content.(StreamContent); got != (StreamContent{Name: Stderr, Text: "boom"}) {
		t.Errorf("content = %+v", got)
	}
	if outcome.Stdout != "partial output" {
		t.Errorf("outcome should keep stdout for history, got %q", outcome.Stdout)
	}
}

func TestExecuteSilent(t *testing.T) {
	tests := []struct {
		name   string
		exec   *scriptedExec
		status string
	}{
		{"success", &scriptedExec{stdout: "1"}, StatusOK},
		{"error", &scriptedExec{stderr: "boom"}, StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, _ := newTestKernel(tt.exec)
			host := &fakeHost{}

			outcome, err := k.Execute(context.Background(), host, ExecuteRequest{Code: "x", Silent: true})
			if err != nil {
				t.Fatal(err)
			}
			if outcome.Reply.Status != tt.status {
				t.Errorf("status = %q, want %q", outcome.Reply.Status, tt.status)
			}
			if len(host.messages) != 0 {
				t.Errorf("silent execution sent %d messages", len(host.messages))
			}
		})
	}
}

func TestExecuteSetupFailurePropagates(t *testing.T) {
	want := errors.New("cannot start compiler")
	k, _ := newTestKernel(&scriptedExec{err: want})
	host := &fakeHost{}

	_, err := k.Execute(context.Background(), host, ExecuteRequest{Code: "print(1)"})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
	if len(host.messages) != 0 {
		t.Errorf("no message should be sent on setup failure")
	}
}

func TestExecuteReplacesInvalidUTF8(t *testing.T) {
	k, _ := newTestKernel(&scriptedExec{stdout: "a\xffb"})
	host := &fakeHost{}

	if _, err := k.Execute(context.Background(), host, ExecuteRequest{Code: "x"}); err != nil {
		t.Fatal(err)
	}
	if got := host.messages[0].content.(StreamContent).Text; got != "a�b" {
		t.Errorf("text = %q", got)
	}
}

func TestBannerComputedOnce(t *testing.T) {
	k, fake := newTestKernel(&scriptedExec{})
	ctx := context.Background()

	first, err := k.Banner(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := k.Banner(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("banners differ: %q vs %q", first, second)
	}
	if _, err := k.Info(ctx); err != nil {
		t.Fatal(err)
	}
	if n := fake.CallCount("seqc --version"); n != 1 {
		t.Errorf("seqc --version ran %d times, want 1", n)
	}
}

func TestBannerFailureIsNotCached(t *testing.T) {
	fake := runner.NewFakeRunner()
	fake.SetResponse("seqc --version", runner.Response{Stderr: "not found", Err: errors.New("exit 127")})
	k := New(fake, &scriptedExec{}, Options{}, log.New(io.Discard))

	if _, err := k.Banner(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	fake.SetResponse("seqc --version", runner.Response{Stdout: "seqc version 1.2"})
	banner, err := k.Banner(context.Background())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if banner != "seqc version 1.2" {
		t.Errorf("banner = %q", banner)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		text string
		want string
		err  bool
	}{
		{"seqc version 0.10.2 (build info)", "0.10.2", false},
		{"Seq version 1.2\n", "1.2", false},
		{"version 3.0.0.1", "3.0.0.1", false},
		{"seqc version 7", "", true},
		{"seqc 0.10.2", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseVersion(tt.text)
		if tt.err {
			if !errors.Is(err, ErrNoVersion) {
				t.Errorf("ParseVersion(%q) err = %v, want ErrNoVersion", tt.text, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseVersion(%q) = (%q, %v), want %q", tt.text, got, err, tt.want)
		}
	}
}

func TestInfo(t *testing.T) {
	k, _ := newTestKernel(&scriptedExec{})

	info, err := k.Info(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.Implementation != "seqkernel" {
		t.Errorf("implementation = %q", info.Implementation)
	}
	want := LanguageInfo{Name: "Seq", Version: "0.10.2", Mimetype: "application/seq", FileExtension: ".seq"}
	if info.LanguageInfo != want {
		t.Errorf("language_info = %+v, want %+v", info.LanguageInfo, want)
	}
}

func TestInfoUnknownVersion(t *testing.T) {
	fake := runner.NewFakeRunner()
	fake.SetResponse("seqc --version", runner.Response{Stdout: "seqc (dev build)"})
	k := New(fake, &scriptedExec{}, Options{}, log.New(io.Discard))

	info, err := k.Info(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.LanguageInfo.Version != "unknown" {
		t.Errorf("version = %q, want unknown", info.LanguageInfo.Version)
	}
	if _, err := k.LanguageVersion(context.Background()); !errors.Is(err, ErrNoVersion) {
		t.Errorf("LanguageVersion err = %v, want ErrNoVersion", err)
	}
}

func TestExecuteReplyJSON(t *testing.T) {
	ok, err := json.Marshal(OK(3))
	if err != nil {
		t.Fatal(err)
	}
	if string(ok) != `{"status":"ok","execution_count":3,"payload":[],"user_expressions":{}}` {
		t.Errorf("ok reply = %s", ok)
	}

	bad, err := json.Marshal(Error(4))
	if err != nil {
		t.Fatal(err)
	}
	if string(bad) != `{"status":"error","execution_count":4}` {
		t.Errorf("error reply = %s", bad)
	}
}
