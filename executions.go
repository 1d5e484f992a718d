package rca

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/baidakovil/rca/internal/eventbus"
	"github.com/google/uuid"
)

// executionRecord tracks one async sandbox run from start to outcome.
type executionRecord struct {
	id        string
	request   ExecutionRequest
	startTime time.Time
	endTime   time.Time

	done   bool
	result ExecutionResult
	err    error
}

// AsyncExecutionStatus is the pollable status of an async sandbox run.
type AsyncExecutionStatus struct {
	ExecutionID  string          `json:"execution_id"`
	State        string          `json:"state"`
	Status       ExecutionStatus `json:"status,omitempty"`
	StartTime    time.Time       `json:"start_time"`
	Duration     time.Duration   `json:"duration"`
	IsComplete   bool            `json:"is_complete"`
	HasError     bool            `json:"has_error"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// ExecuteAsync starts a sandbox run in the background and returns a
// unique execution ID for polling. There is no caller-driven
// cancellation; the run's timeout is the only canceller.
func (a *Agent) ExecuteAsync(ctx context.Context, req ExecutionRequest) (string, error) {
	if a.sandbox == nil {
		return "", NewConfigurationError("no sandbox configured", nil)
	}
	if strings.TrimSpace(req.Code) == "" {
		return "", NewValidationError("sandbox", "code must not be empty", nil)
	}
	if req.Timeout < 0 {
		return "", NewValidationError("sandbox", "timeout must not be negative", nil)
	}

	executionID := uuid.New().String()

	record := &executionRecord{
		id:        executionID,
		request:   req,
		startTime: time.Now(),
	}

	a.asyncExecutionsMutex.Lock()
	a.asyncExecutions[executionID] = record
	a.asyncExecutionsMutex.Unlock()

	a.publishExecutionEvent(ctx, eventbus.EventExecutionStarted, map[string]interface{}{
		"execution_id": executionID,
		"code_bytes":   len(req.Code),
	})

	go func() {
		// Background context: the run outlives the caller's request, and
		// the timeout inside the sandbox is the only canceller
		result, err := a.sandbox.Run(context.Background(), req.Code, req.Timeout)

		a.asyncExecutionsMutex.Lock()
		record.result = result
		record.err = err
		record.done = true
		record.endTime = time.Now()
		a.asyncExecutionsMutex.Unlock()

		eventType := eventbus.EventExecutionSuccess
		metadata := map[string]interface{}{
			"execution_id": executionID,
			"duration_ms":  record.endTime.Sub(record.startTime).Milliseconds(),
		}
		if err != nil {
			eventType = eventbus.EventExecutionFailure
			metadata["error"] = err.Error()
		} else {
			switch result.Status {
			case ExecutionFailed:
				eventType = eventbus.EventExecutionFailure
			case ExecutionTimedOut:
				eventType = eventbus.EventExecutionTimedOut
			}
		}
		a.publishExecutionEvent(context.Background(), eventType, metadata)
	}()

	return executionID, nil
}

// GetExecutionStatus retrieves the current status of an async execution.
func (a *Agent) GetExecutionStatus(executionID string) (*AsyncExecutionStatus, error) {
	a.asyncExecutionsMutex.RLock()
	defer a.asyncExecutionsMutex.RUnlock()

	record, exists := a.asyncExecutions[executionID]
	if !exists {
		return nil, fmt.Errorf("execution with ID '%s' not found", executionID)
	}

	status := &AsyncExecutionStatus{
		ExecutionID: executionID,
		State:       "running",
		StartTime:   record.startTime,
		Duration:    time.Since(record.startTime),
		IsComplete:  record.done,
	}

	if record.done {
		status.Duration = record.endTime.Sub(record.startTime)
		if record.err != nil {
			status.State = "error"
			status.HasError = true
			status.ErrorMessage = record.err.Error()
		} else {
			status.State = "complete"
			status.Status = record.result.Status
		}
	}

	return status, nil
}

// GetExecutionResult retrieves the result of a completed async
// execution. Returns an error if the execution is still in progress or
// the sandbox itself failed.
func (a *Agent) GetExecutionResult(executionID string) (ExecutionResult, error) {
	a.asyncExecutionsMutex.RLock()
	defer a.asyncExecutionsMutex.RUnlock()

	record, exists := a.asyncExecutions[executionID]
	if !exists {
		return ExecutionResult{}, fmt.Errorf("execution with ID '%s' not found", executionID)
	}

	if !record.done {
		return ExecutionResult{}, fmt.Errorf("execution is still in progress")
	}

	if record.err != nil {
		return ExecutionResult{}, record.err
	}

	return record.result, nil
}

// ListExecutions returns all async execution IDs and their current states.
func (a *Agent) ListExecutions() map[string]string {
	a.asyncExecutionsMutex.RLock()
	defer a.asyncExecutionsMutex.RUnlock()

	result := make(map[string]string)
	for id, record := range a.asyncExecutions {
		state := "running"
		if record.done {
			if record.err != nil {
				state = "error"
			} else {
				state = string(record.result.Status)
			}
		}
		result[id] = state
	}

	return result
}

// CleanupCompletedExecutions removes finished executions older than the
// given duration. This keeps long-running processes from accumulating
// records indefinitely.
func (a *Agent) CleanupCompletedExecutions(olderThan time.Duration) int {
	a.asyncExecutionsMutex.Lock()
	defer a.asyncExecutionsMutex.Unlock()

	now := time.Now()
	count := 0

	for id, record := range a.asyncExecutions {
		if record.done && now.Sub(record.endTime) > olderThan {
			delete(a.asyncExecutions, id)
			count++
		}
	}

	return count
}
