package rca

import (
	"context"
	"fmt"
	"time"

	"github.com/baidakovil/rca/internal/eventbus"
)

// TurnState represents the current state of a chat turn.
type TurnState string

const (
	// StateInit is the initial state of the turn
	StateInit TurnState = "init"
	// StateResolvePipeline resolves or builds the provider pipeline
	StateResolvePipeline TurnState = "resolve_pipeline"
	// StateInvoking represents the model invocation phase
	StateInvoking TurnState = "invoking"
	// StateToolRoundTrip executes model-requested tool calls
	StateToolRoundTrip TurnState = "tool_round_trip"
	// StateError represents an error state
	StateError TurnState = "error"
	// StateComplete represents the completed state
	StateComplete TurnState = "complete"
	// StateCancelled represents the cancelled state
	StateCancelled TurnState = "cancelled"
)

// TurnContext carries the data of one chat turn through the state
// machine. It acts as the "tape" of the pushdown automaton.
type TurnContext struct {
	// Input parameters
	SessionID string
	Input     string

	// Resolved collaborators
	session  *Session
	pipeline *Pipeline

	// Intermediate results
	Reply       *ModelReply
	FinalAnswer string
	ToolRounds  int

	// Error handling
	LastError  error
	ErrorStage string

	// State management
	CurrentState TurnState
	StateStack   []TurnState

	// Timestamp tracking
	StartTime       time.Time
	EndTime         time.Time
	StateStartTimes map[TurnState]time.Time
}

// NewTurnContext creates a turn context for one user message.
func NewTurnContext(sessionID, input string) *TurnContext {
	return &TurnContext{
		SessionID:       sessionID,
		Input:           input,
		CurrentState:    StateInit,
		StateStack:      []TurnState{},
		StartTime:       time.Now(),
		StateStartTimes: make(map[TurnState]time.Time),
	}
}

// PushState pushes the current state onto the stack and sets a new current state.
func (tc *TurnContext) PushState(state TurnState) {
	tc.StateStack = append(tc.StateStack, tc.CurrentState)
	tc.CurrentState = state
	tc.StateStartTimes[state] = time.Now()
}

// PopState pops the top state from the stack and sets it as the current state.
// Returns false if the stack is empty.
func (tc *TurnContext) PopState() bool {
	if len(tc.StateStack) == 0 {
		return false
	}
	lastIdx := len(tc.StateStack) - 1
	tc.CurrentState = tc.StateStack[lastIdx]
	tc.StateStack = tc.StateStack[:lastIdx]
	tc.StateStartTimes[tc.CurrentState] = time.Now()
	return true
}

// IsTerminal checks if the current state is a terminal state.
func (tc *TurnContext) IsTerminal() bool {
	return tc.CurrentState == StateComplete || tc.CurrentState == StateError || tc.CurrentState == StateCancelled
}

// SetError sets the last error and error stage, transitioning to StateError.
func (tc *TurnContext) SetError(err error, stage string) {
	tc.LastError = err
	tc.ErrorStage = stage
	tc.CurrentState = StateError
	tc.StateStartTimes[StateError] = time.Now()
}

// SetCancelled sets the state to Cancelled and records the cancellation error.
func (tc *TurnContext) SetCancelled(err error, stage string) {
	tc.LastError = err
	tc.ErrorStage = stage
	tc.CurrentState = StateCancelled
	tc.StateStartTimes[StateCancelled] = time.Now()
}

// Complete marks the turn as complete and sets the end time.
func (tc *TurnContext) Complete() {
	tc.CurrentState = StateComplete
	tc.EndTime = time.Now()
	tc.StateStartTimes[StateComplete] = tc.EndTime
}

// GetTotalDuration returns the total duration of the turn so far.
func (tc *TurnContext) GetTotalDuration() time.Duration {
	if tc.CurrentState == StateComplete {
		return tc.EndTime.Sub(tc.StartTime)
	}
	return time.Since(tc.StartTime)
}

// TurnTransition defines a transition function for the state machine.
type TurnTransition func(ctx context.Context, eventBus eventbus.EventBus, tCtx *TurnContext) (TurnState, error)

// TurnStateMachine is the finite state machine driving one chat turn.
type TurnStateMachine struct {
	transitions map[TurnState]TurnTransition
	eventBus    eventbus.EventBus
}

// NewTurnStateMachine creates a state machine with no transitions registered.
func NewTurnStateMachine(eventBus eventbus.EventBus) *TurnStateMachine {
	return &TurnStateMachine{
		transitions: make(map[TurnState]TurnTransition),
		eventBus:    eventBus,
	}
}

// RegisterTransition registers a state transition function.
func (sm *TurnStateMachine) RegisterTransition(state TurnState, transition TurnTransition) {
	sm.transitions[state] = transition
}

// Execute runs the state machine until a terminal state is reached.
// It returns the final answer and any error encountered, including
// cancellation.
func (sm *TurnStateMachine) Execute(ctx context.Context, tCtx *TurnContext) (string, error) {
	for !tCtx.IsTerminal() {
		// Check for context cancellation before executing the next state
		select {
		case <-ctx.Done():
			err := ctx.Err()
			currentStage := string(tCtx.CurrentState)
			tCtx.SetCancelled(err, currentStage)
			return "", NewCancelledError(currentStage, err)
		default:
		}

		transition, exists := sm.transitions[tCtx.CurrentState]
		if !exists {
			err := NewInternalError(string(tCtx.CurrentState), fmt.Sprintf("no transition defined for state: %s", tCtx.CurrentState), nil)
			tCtx.SetError(err, string(tCtx.CurrentState))
			return "", err
		}

		nextState, err := transition(ctx, sm.eventBus, tCtx)
		if err != nil {
			currentStage := string(tCtx.CurrentState)
			if err == context.Canceled || err == context.DeadlineExceeded {
				tCtx.SetCancelled(err, currentStage)
			} else if !tCtx.IsTerminal() {
				// Transitions usually set terminal state themselves; cover
				// the ones that just return the error.
				tCtx.SetError(err, currentStage)
			}
			continue
		}

		if !tCtx.IsTerminal() {
			tCtx.CurrentState = nextState
			tCtx.StateStartTimes[nextState] = time.Now()
		}
	}

	return tCtx.FinalAnswer, tCtx.LastError
}
