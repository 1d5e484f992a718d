package rca

import (
	"context"
	"errors"
	"fmt"
)

// Error codes for specific failure types
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeConfiguration    = "CONFIGURATION_ERROR"
	ErrCodeProvider         = "PROVIDER_ERROR"
	ErrCodeToolNotFound     = "TOOL_NOT_FOUND"
	ErrCodeToolExecution    = "TOOL_EXECUTION_ERROR"
	ErrCodeToolLoopExceeded = "TOOL_LOOP_EXCEEDED"
	ErrCodeInfrastructure   = "INFRASTRUCTURE_ERROR"
	ErrCodeCancelled        = "EXECUTION_CANCELLED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// AgentError is the typed error carried by every failure the runtime
// surfaces. Code is machine readable; Stage names the turn state or
// component where the failure occurred.
type AgentError struct {
	Code    string // machine-readable code (e.g. ErrCodeProvider)
	Stage   string // where the error occurred (e.g. "invoking", "sandbox")
	Message string // human-readable message
	Cause   error  // underlying error, if any
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Stage, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Stage, e.Code, e.Message)
}

// Unwrap returns the underlying cause, allowing errors.Is/As chaining.
func (e *AgentError) Unwrap() error {
	return e.Cause
}

// NewError creates a new AgentError.
func NewError(code, stage, message string, cause error) *AgentError {
	return &AgentError{
		Code:    code,
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}

// HasCode reports whether err (or anything it wraps) is an AgentError
// with the given code.
func HasCode(err error, code string) bool {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// Specific error constructors

func NewValidationError(stage, message string, cause error) *AgentError {
	return NewError(ErrCodeValidation, stage, message, cause)
}

func NewConfigurationError(message string, cause error) *AgentError {
	return NewError(ErrCodeConfiguration, "configuration", message, cause)
}

// NewProviderError annotates a failed backend invocation with the
// provider kind so callers can decide whether a retry makes sense.
func NewProviderError(kind ProviderKind, cause error) *AgentError {
	return NewError(ErrCodeProvider, "invoking", fmt.Sprintf("provider %q invocation failed", kind), cause)
}

func NewToolNotFoundError(toolName string) *AgentError {
	return NewError(ErrCodeToolNotFound, "tool_round_trip", fmt.Sprintf("tool %q not found", toolName), nil)
}

func NewToolExecutionError(toolName string, cause error) *AgentError {
	return NewError(ErrCodeToolExecution, "tool_round_trip", fmt.Sprintf("execution failed for tool %q", toolName), cause)
}

// NewToolLoopExceededError marks a turn that hit the tool round-trip
// bound. The turn fails but session history stays intact.
func NewToolLoopExceededError(rounds int) *AgentError {
	return NewError(ErrCodeToolLoopExceeded, "tool_round_trip", fmt.Sprintf("tool round trips exceeded the maximum of %d", rounds), nil)
}

// NewInfrastructureError marks the sandbox itself as inoperable: the
// script artifact could not be written or the process could not spawn.
func NewInfrastructureError(message string, cause error) *AgentError {
	return NewError(ErrCodeInfrastructure, "sandbox", message, cause)
}

func NewCancelledError(stage string, cause error) *AgentError {
	msg := "execution cancelled"
	if cause != nil && cause.Error() != "" && !errors.Is(cause, context.Canceled) {
		msg = fmt.Sprintf("execution cancelled: %v", cause)
	}
	return NewError(ErrCodeCancelled, stage, msg, cause)
}

func NewInternalError(stage, message string, cause error) *AgentError {
	return NewError(ErrCodeInternal, stage, message, cause)
}
