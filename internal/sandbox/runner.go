// Package sandbox runs generated scripts as isolated, timeout-bounded
// subprocesses with capped output capture.
package sandbox

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/baidakovil/rca"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
)

const (
	defaultInterpreter    = "python3"
	defaultMaxOutputBytes = 256 << 10
	defaultRunTimeout     = 30 * time.Second
)

// Runner executes scripts through a configured interpreter. Each run
// gets an ephemeral script file and its own process group; the timeout
// kills the whole group.
type Runner struct {
	interpreter    string
	workDir        string
	maxOutputBytes int
	defaultTimeout time.Duration

	metrics RunnerMetrics
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithInterpreter sets the interpreter binary invoked for each run.
func WithInterpreter(interpreter string) RunnerOption {
	return func(r *Runner) {
		r.interpreter = interpreter
	}
}

// WithWorkDir sets the directory where script artifacts are written.
func WithWorkDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.workDir = dir
	}
}

// WithMaxOutputBytes caps how many bytes of each output stream are kept.
func WithMaxOutputBytes(n int) RunnerOption {
	return func(r *Runner) {
		r.maxOutputBytes = n
	}
}

// WithDefaultTimeout sets the timeout applied when a run specifies none.
func WithDefaultTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.defaultTimeout = d
	}
}

// NewRunner creates a runner with the provided options.
func NewRunner(options ...RunnerOption) *Runner {
	r := &Runner{
		interpreter:    defaultInterpreter,
		workDir:        os.TempDir(),
		maxOutputBytes: defaultMaxOutputBytes,
		defaultTimeout: defaultRunTimeout,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Metrics returns a snapshot of the runner metrics.
func (r *Runner) Metrics() RunnerMetrics {
	return r.metrics.Copy()
}

// Run implements rca.Sandbox. The script and its process handle are
// acquired together and released on every exit path; script-level
// failure is encoded in the result, and an error is returned only when
// the sandbox itself cannot operate.
func (r *Runner) Run(ctx context.Context, code string, timeout time.Duration) (rca.ExecutionResult, error) {
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}

	scriptPath := filepath.Join(r.workDir, "rca-"+uuid.New().String()+".py")
	if err := os.WriteFile(scriptPath, []byte(code), 0o600); err != nil {
		return rca.ExecutionResult{}, rca.NewInfrastructureError("failed to write script artifact", err)
	}
	defer os.Remove(scriptPath)

	cmd := exec.Command(r.interpreter, scriptPath)
	cmd.Dir = r.workDir
	configureCommandProcess(cmd)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return rca.ExecutionResult{}, rca.NewInfrastructureError("failed to open stdout pipe", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return rca.ExecutionResult{}, rca.NewInfrastructureError("failed to open stderr pipe", err)
	}

	stdout := newCappedBuffer(r.maxOutputBytes)
	stderr := newCappedBuffer(r.maxOutputBytes)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return rca.ExecutionResult{}, rca.NewInfrastructureError("failed to spawn interpreter", err)
	}
	r.metrics.runStarted()

	// Drain both streams; the capped buffers always accept writes so the
	// child never blocks on a full pipe
	var pumps conc.WaitGroup
	pumps.Go(func() { io.Copy(stdout, stdoutPipe) })
	pumps.Go(func() { io.Copy(stderr, stderrPipe) })

	waitCh := make(chan error, 1)
	go func() {
		pumps.Wait()
		waitCh <- cmd.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var waitErr error
	timedOut := false

	select {
	case waitErr = <-waitCh:
	case <-timer.C:
		timedOut = true
		terminateCommandProcess(cmd)
		<-waitCh
	case <-ctx.Done():
		terminateCommandProcess(cmd)
		<-waitCh
		r.metrics.runFinished(rca.ExecutionFailed, time.Since(start))
		return rca.ExecutionResult{}, rca.NewCancelledError("sandbox", ctx.Err())
	}

	elapsed := time.Since(start)

	result := rca.ExecutionResult{
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		StdoutTruncated: stdout.Truncated(),
		StderrTruncated: stderr.Truncated(),
		Elapsed:         elapsed,
	}

	switch {
	case timedOut:
		result.Status = rca.ExecutionTimedOut
		result.ExitCode = -1
	case waitErr == nil:
		result.Status = rca.ExecutionSuccess
		result.ExitCode = 0
	default:
		exitErr, ok := waitErr.(*exec.ExitError)
		if !ok {
			r.metrics.runFinished(rca.ExecutionFailed, elapsed)
			return rca.ExecutionResult{}, rca.NewInfrastructureError("interpreter wait failed", waitErr)
		}
		result.Status = rca.ExecutionFailed
		result.ExitCode = exitErr.ExitCode()
	}

	r.metrics.runFinished(result.Status, elapsed)
	return result, nil
}

// cappedBuffer keeps at most limit bytes and flags overflow. Write
// always reports the full length so upstream pipes keep draining.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	remaining := b.limit - b.buf.Len()
	switch {
	case remaining >= len(p):
		b.buf.Write(p)
	case remaining > 0:
		b.buf.Write(p[:remaining])
		b.truncated = true
	case len(p) > 0:
		b.truncated = true
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *cappedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
