package sandbox

import (
	"sync"
	"time"

	"github.com/baidakovil/rca"
)

// RunnerMetrics tracks statistics about sandboxed runs.
type RunnerMetrics struct {
	RunsStarted   int
	RunsSucceeded int
	RunsFailed    int
	RunsTimedOut  int

	TotalDuration   time.Duration
	LongestDuration time.Duration

	mu sync.Mutex // Protects metrics updates
}

func (m *RunnerMetrics) runStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RunsStarted++
}

func (m *RunnerMetrics) runFinished(status rca.ExecutionStatus, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch status {
	case rca.ExecutionSuccess:
		m.RunsSucceeded++
	case rca.ExecutionTimedOut:
		m.RunsTimedOut++
	default:
		m.RunsFailed++
	}
	m.TotalDuration += elapsed
	if elapsed > m.LongestDuration {
		m.LongestDuration = elapsed
	}
}

// Copy returns a snapshot without the mutex.
func (m *RunnerMetrics) Copy() RunnerMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	return RunnerMetrics{
		RunsStarted:     m.RunsStarted,
		RunsSucceeded:   m.RunsSucceeded,
		RunsFailed:      m.RunsFailed,
		RunsTimedOut:    m.RunsTimedOut,
		TotalDuration:   m.TotalDuration,
		LongestDuration: m.LongestDuration,
	}
}
