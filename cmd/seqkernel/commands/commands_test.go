package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "seqkernel.conf")
	body := fmt.Sprintf(`[compiler]
binary       = "echo"
version_flag = "seqc version 0.10.2"

[history]
driver = "sqlite"
dsn    = %q
`, filepath.Join(dir, "history.db"))
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := Root()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "seqkernel ") || !strings.Contains(out, "protocol 5.3") {
		t.Errorf("output = %q", out)
	}
}

func TestInitChecksCompilerAndStore(t *testing.T) {
	path := writeConfig(t)
	out, err := run(t, "--config", path, "init")
	if err != nil {
		t.Fatalf("init: %v\n%s", err, out)
	}
	for _, want := range []string{"history store (sqlite): OK", "compiler echo: OK (Seq 0.10.2)", "initialized successfully"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(path), "history.db")); err != nil {
		t.Errorf("history db not created: %v", err)
	}
}

func TestInitWritesTemplate(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "etc", "seqkernel.conf")

	out, _ := run(t, "--config", path, "init")
	if !strings.Contains(out, "wrote config template") {
		t.Errorf("output = %q", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("template not written: %v", err)
	}
	if !strings.Contains(string(data), "[compiler]") {
		t.Errorf("template = %q", data)
	}
}

func TestHistoryEmpty(t *testing.T) {
	path := writeConfig(t)
	out, err := run(t, "--config", path, "history")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No sessions recorded") {
		t.Errorf("output = %q", out)
	}

	if _, err := run(t, "--config", path, "history", "missing"); err == nil {
		t.Error("expected error for unknown session")
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"print(1)", "print(1)"},
		{"\n  x = 1\nprint(x)\n", "x = 1 …"},
		{"seqc version 0.10.2\n\n", "seqc version 0.10.2"},
	}
	for _, tt := range tests {
		if got := firstLine(tt.in); got != tt.want {
			t.Errorf("firstLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
