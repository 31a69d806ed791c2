package execx

import (
	"context"
	"strings"
	"testing"
)

func TestExecRunner_CapturesOutput(t *testing.T) {
	r := &ExecRunner{}
	stdout, stderr, code, err := r.Run(context.Background(), "", []string{"echo", "hello"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if code != 0 {
		t.Errorf("exit = %d", code)
	}
	if strings.TrimSpace(stdout) != "hello" {
		t.Errorf("stdout = %q", stdout)
	}
	if stderr != "" {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	r := &ExecRunner{}
	_, _, code, err := r.Run(context.Background(), "", []string{"sh", "-c", "exit 3"})
	if err != nil {
		t.Fatalf("a non-zero exit is not a run error: %v", err)
	}
	if code != 3 {
		t.Errorf("exit = %d, want 3", code)
	}
}

func TestExecRunner_EmptyArgv(t *testing.T) {
	r := &ExecRunner{}
	if _, _, _, err := r.Run(context.Background(), "", nil); err == nil {
		t.Error("empty argv must error")
	}
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r := &ExecRunner{}
	_, _, code, err := r.Run(context.Background(), "", []string{"no-such-binary-xyz"})
	if err == nil {
		t.Error("missing binary must error")
	}
	if code != -1 {
		t.Errorf("exit = %d, want -1", code)
	}
}

func TestExecRunner_WorkingDir(t *testing.T) {
	dir := t.TempDir()
	r := &ExecRunner{}
	stdout, _, _, err := r.Run(context.Background(), dir, []string{"pwd"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(strings.TrimSpace(stdout), dir) {
		t.Errorf("pwd = %q, want %q", stdout, dir)
	}
}
