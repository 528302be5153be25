package exec

import (
	"context"
	"strings"
	"testing"
)

func TestExecRunner_Run(t *testing.T) {
	r := NewRunner()
	if _, err := r.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}

	out, err := r.Run(context.Background(), t.TempDir(), "echo", "hello")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if strings.TrimSpace(string(out)) != "hello" {
		t.Errorf("output = %q", out)
	}
}

func TestExecRunner_RunMissingBinary(t *testing.T) {
	r := NewRunner()
	if _, err := r.Run(context.Background(), "", "mosaic-no-such-binary"); err == nil {
		t.Error("expected error for missing binary")
	}
	if _, err := r.LookPath("mosaic-no-such-binary"); err == nil {
		t.Error("expected LookPath error for missing binary")
	}
}
