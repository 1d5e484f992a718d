package rca

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/baidakovil/rca/internal/eventbus"
)

// turnComponents bundles the collaborators the turn transitions need.
type turnComponents struct {
	registry *ToolRegistry
	metrics  *AgentMetrics

	// resolvePipeline returns the pipeline for the current provider
	// configuration, building and caching it on first use.
	resolvePipeline func(ctx context.Context) (*Pipeline, error)

	providerKind  ProviderKind
	maxToolRounds int
}

// CreateTurnStateMachine builds a complete state machine for one chat turn.
func createTurnStateMachine(components turnComponents, eventBus eventbus.EventBus) *TurnStateMachine {
	sm := NewTurnStateMachine(eventBus)

	sm.RegisterTransition(StateInit, createInitTransition(components))
	sm.RegisterTransition(StateResolvePipeline, createResolvePipelineTransition(components))
	sm.RegisterTransition(StateInvoking, createInvokingTransition(components))
	sm.RegisterTransition(StateToolRoundTrip, createToolRoundTripTransition(components))
	sm.RegisterTransition(StateError, createErrorTransition(components))
	sm.RegisterTransition(StateComplete, createCompleteTransition(components))
	sm.RegisterTransition(StateCancelled, createCancelledTransition(components))

	return sm
}

// createInitTransition records the user message and announces the turn.
func createInitTransition(_ turnComponents) TurnTransition {
	return func(ctx context.Context, eb eventbus.EventBus, tCtx *TurnContext) (TurnState, error) {
		hasEventBus := eb != nil

		if hasEventBus {
			startEvent := eventbus.NewEvent(
				eventbus.EventTurnStarted,
				tCtx.Input,
				"TurnMachine.Init",
				map[string]interface{}{
					"session_id": tCtx.SessionID,
					"timestamp":  time.Now().Format(time.RFC3339),
				},
			)
			eb.Publish(ctx, startEvent)
		}

		// The user message joins the history before anything can fail, so
		// a failed turn still retains what the user said.
		tCtx.session.Append(RoleUser, tCtx.Input)

		return StateResolvePipeline, nil
	}
}

// createResolvePipelineTransition obtains the cached or freshly built pipeline.
func createResolvePipelineTransition(components turnComponents) TurnTransition {
	return func(ctx context.Context, eb eventbus.EventBus, tCtx *TurnContext) (TurnState, error) {
		hasEventBus := eb != nil

		if hasEventBus {
			buildStartEvent := eventbus.NewEvent(
				eventbus.EventPipelineBuildStarted,
				string(components.providerKind),
				"TurnMachine.ResolvePipeline",
				nil,
			)
			eb.Publish(ctx, buildStartEvent)
		}

		pipeline, err := components.resolvePipeline(ctx)
		if err != nil {
			if hasEventBus {
				failEvent := eventbus.NewEvent(
					eventbus.EventPipelineBuildFailure,
					err.Error(),
					"TurnMachine.ResolvePipeline",
					map[string]interface{}{
						"provider": string(components.providerKind),
					},
				)
				eb.Publish(ctx, failEvent)
			}
			return StateError, err
		}

		if hasEventBus {
			successEvent := eventbus.NewEvent(
				eventbus.EventPipelineBuildSuccess,
				string(components.providerKind),
				"TurnMachine.ResolvePipeline",
				map[string]interface{}{
					"tools_bound": pipeline.ToolsBound(),
				},
			)
			eb.Publish(ctx, successEvent)
		}

		tCtx.pipeline = pipeline

		return StateInvoking, nil
	}
}

// createInvokingTransition runs the model against the session history.
func createInvokingTransition(components turnComponents) TurnTransition {
	return func(ctx context.Context, eb eventbus.EventBus, tCtx *TurnContext) (TurnState, error) {
		reply, err := tCtx.pipeline.Invoke(ctx, tCtx.session.History())
		if err != nil {
			if err == context.Canceled || err == context.DeadlineExceeded {
				return StateCancelled, err
			}
			return StateError, NewProviderError(components.providerKind, err)
		}

		if reply == nil || (reply.Text == "" && !reply.HasToolCalls()) {
			return StateError, NewProviderError(components.providerKind, fmt.Errorf("empty reply"))
		}

		tCtx.Reply = reply

		if reply.HasToolCalls() {
			return StateToolRoundTrip, nil
		}

		// The assistant message is appended only on success
		tCtx.session.Append(RoleAssistant, reply.Text)
		tCtx.FinalAnswer = reply.Text

		return StateComplete, nil
	}
}

// createToolRoundTripTransition executes model-requested tool calls and
// feeds their outputs back into the history.
func createToolRoundTripTransition(components turnComponents) TurnTransition {
	return func(ctx context.Context, eb eventbus.EventBus, tCtx *TurnContext) (TurnState, error) {
		hasEventBus := eb != nil

		tCtx.ToolRounds++
		if tCtx.ToolRounds > components.maxToolRounds {
			return StateError, NewToolLoopExceededError(components.maxToolRounds)
		}

		for _, call := range tCtx.Reply.ToolCalls {
			if hasEventBus {
				callStartEvent := eventbus.NewEvent(
					eventbus.EventToolCallStarted,
					call.Input,
					"TurnMachine.ToolRoundTrip",
					map[string]interface{}{
						"tool":  call.Name,
						"round": tCtx.ToolRounds,
					},
				)
				eb.Publish(ctx, callStartEvent)
			}

			output, err := executeToolCall(ctx, components.registry, call)
			if components.metrics != nil {
				components.metrics.toolCall(err != nil)
			}
			if err != nil {
				if hasEventBus {
					failEvent := eventbus.NewEvent(
						eventbus.EventToolCallFailure,
						err.Error(),
						"TurnMachine.ToolRoundTrip",
						map[string]interface{}{
							"tool": call.Name,
						},
					)
					eb.Publish(ctx, failEvent)
				}
				return StateError, err
			}

			if hasEventBus {
				successEvent := eventbus.NewEvent(
					eventbus.EventToolCallSuccess,
					output,
					"TurnMachine.ToolRoundTrip",
					map[string]interface{}{
						"tool": call.Name,
					},
				)
				eb.Publish(ctx, successEvent)
			}

			tCtx.session.AppendToolResult(call.Name, renderToolOutput(output))
		}

		// Hand the enriched history back to the model
		return StateInvoking, nil
	}
}

// executeToolCall resolves, validates, and runs one requested tool.
func executeToolCall(ctx context.Context, registry *ToolRegistry, call ToolCall) (map[string]interface{}, error) {
	tool, err := registry.Get(call.Name)
	if err != nil {
		return nil, err
	}

	if err := tool.Validate(call.Input); err != nil {
		return nil, NewToolExecutionError(call.Name, err)
	}

	output, err := tool.Execute(ctx, call.Input)
	if err != nil {
		return nil, NewToolExecutionError(call.Name, err)
	}
	return output, nil
}

// renderToolOutput serializes a tool result for the history.
func renderToolOutput(output map[string]interface{}) string {
	data, err := json.Marshal(output)
	if err != nil {
		log.Printf("tool output serialization failed: %v", err)
		return fmt.Sprintf("%v", output)
	}
	return string(data)
}

// createErrorTransition handles error states.
func createErrorTransition(_ turnComponents) TurnTransition {
	return func(ctx context.Context, eb eventbus.EventBus, tCtx *TurnContext) (TurnState, error) {
		// The error is already recorded in the turn context; terminal.
		return StateError, tCtx.LastError
	}
}

// createCompleteTransition handles the complete state.
func createCompleteTransition(_ turnComponents) TurnTransition {
	return func(ctx context.Context, eb eventbus.EventBus, tCtx *TurnContext) (TurnState, error) {
		return StateComplete, nil
	}
}

// createCancelledTransition handles the cancelled state.
func createCancelledTransition(_ turnComponents) TurnTransition {
	return func(ctx context.Context, eb eventbus.EventBus, tCtx *TurnContext) (TurnState, error) {
		return StateCancelled, tCtx.LastError
	}
}
