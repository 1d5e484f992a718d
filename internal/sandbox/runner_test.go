package sandbox

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/baidakovil/rca"
)

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
}

func TestRunner_Success(t *testing.T) {
	requirePython(t)
	runner := NewRunner(WithWorkDir(t.TempDir()))

	result, err := runner.Run(context.Background(), "print(1)", 10*time.Second)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != rca.ExecutionSuccess {
		t.Errorf("expected success, got %s (stderr: %s)", result.Status, result.Stderr)
	}
	if strings.TrimSpace(result.Stdout) != "1" {
		t.Errorf("unexpected stdout: %q", result.Stdout)
	}
	if result.ExitCode != 0 {
		t.Errorf("unexpected exit code: %d", result.ExitCode)
	}
}

func TestRunner_ScriptFailure(t *testing.T) {
	requirePython(t)
	runner := NewRunner(WithWorkDir(t.TempDir()))

	result, err := runner.Run(context.Background(), `raise RuntimeError("boom")`, 10*time.Second)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != rca.ExecutionFailed {
		t.Errorf("expected failed, got %s", result.Status)
	}
	if result.ExitCode == 0 {
		t.Error("expected non-zero exit code")
	}
	if !strings.Contains(result.Stderr, "boom") {
		t.Errorf("stderr should carry the script error, got %q", result.Stderr)
	}
}

func TestRunner_Timeout(t *testing.T) {
	requirePython(t)
	workDir := t.TempDir()
	runner := NewRunner(WithWorkDir(workDir))

	start := time.Now()
	result, err := runner.Run(context.Background(), "import time\ntime.sleep(30)", 500*time.Millisecond)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != rca.ExecutionTimedOut {
		t.Errorf("expected timed_out, got %s", result.Status)
	}
	if elapsed > 5*time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}

	// The script artifact is removed on every exit path
	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".py" {
			t.Errorf("leaked script artifact: %s", entry.Name())
		}
	}
}

func TestRunner_OutputTruncation(t *testing.T) {
	requirePython(t)
	runner := NewRunner(WithWorkDir(t.TempDir()), WithMaxOutputBytes(64))

	result, err := runner.Run(context.Background(), `print("x" * 10000)`, 10*time.Second)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != rca.ExecutionSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}
	if !result.StdoutTruncated {
		t.Error("expected stdout truncation flag")
	}
	if len(result.Stdout) != 64 {
		t.Errorf("expected 64 captured bytes, got %d", len(result.Stdout))
	}
}

func TestRunner_MissingInterpreter(t *testing.T) {
	runner := NewRunner(
		WithWorkDir(t.TempDir()),
		WithInterpreter("definitely-not-a-real-interpreter"),
	)

	_, err := runner.Run(context.Background(), "print(1)", time.Second)
	if !rca.HasCode(err, rca.ErrCodeInfrastructure) {
		t.Errorf("expected infrastructure error, got %v", err)
	}
}

func TestRunner_DefaultTimeoutApplied(t *testing.T) {
	requirePython(t)
	runner := NewRunner(
		WithWorkDir(t.TempDir()),
		WithDefaultTimeout(500*time.Millisecond),
	)

	result, err := runner.Run(context.Background(), "import time\ntime.sleep(30)", 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != rca.ExecutionTimedOut {
		t.Errorf("expected timed_out via default timeout, got %s", result.Status)
	}
}

func TestRunner_MetricsTracked(t *testing.T) {
	requirePython(t)
	runner := NewRunner(WithWorkDir(t.TempDir()))

	if _, err := runner.Run(context.Background(), "print(1)", 10*time.Second); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := runner.Run(context.Background(), "import sys\nsys.exit(3)", 10*time.Second); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	metrics := runner.Metrics()
	if metrics.RunsStarted != 2 || metrics.RunsSucceeded != 1 || metrics.RunsFailed != 1 {
		t.Errorf("unexpected metrics: %+v", &metrics)
	}
}

func TestCappedBuffer(t *testing.T) {
	buf := newCappedBuffer(5)

	n, err := buf.Write([]byte("abc"))
	if err != nil || n != 3 {
		t.Fatalf("Write returned (%d, %v)", n, err)
	}
	n, err = buf.Write([]byte("defgh"))
	if err != nil || n != 5 {
		t.Fatalf("overflow Write must still report full length, got (%d, %v)", n, err)
	}

	if buf.String() != "abcde" {
		t.Errorf("unexpected content: %q", buf.String())
	}
	if !buf.Truncated() {
		t.Error("expected truncation flag")
	}
}
