package rca

import (
	"sync"
	"time"
)

// AgentMetrics tracks statistics about chat turns and tool usage.
type AgentMetrics struct {
	TurnsStarted   int
	TurnsSucceeded int
	TurnsFailed    int
	ToolCalls      int
	ToolFailures   int

	TotalTurnDuration   time.Duration
	LongestTurnDuration time.Duration

	mu sync.Mutex // Protects metrics updates
}

func (m *AgentMetrics) turnStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TurnsStarted++
}

func (m *AgentMetrics) turnFinished(succeeded bool, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if succeeded {
		m.TurnsSucceeded++
	} else {
		m.TurnsFailed++
	}
	m.TotalTurnDuration += elapsed
	if elapsed > m.LongestTurnDuration {
		m.LongestTurnDuration = elapsed
	}
}

func (m *AgentMetrics) toolCall(failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ToolCalls++
	if failed {
		m.ToolFailures++
	}
}

// Copy returns a snapshot without the mutex.
func (m *AgentMetrics) Copy() AgentMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	return AgentMetrics{
		TurnsStarted:        m.TurnsStarted,
		TurnsSucceeded:      m.TurnsSucceeded,
		TurnsFailed:         m.TurnsFailed,
		ToolCalls:           m.ToolCalls,
		ToolFailures:        m.ToolFailures,
		TotalTurnDuration:   m.TotalTurnDuration,
		LongestTurnDuration: m.LongestTurnDuration,
	}
}
