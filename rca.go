// Package rca provides the core runtime for a session-scoped conversational
// code assistant: chat turns over interchangeable model backends, bounded
// tool round trips, and an isolated sandbox for dry-running generated code.
package rca

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/baidakovil/rca/internal/eventbus"
	"github.com/baidakovil/rca/internal/prompt"
)

// Config holds the configuration options for the agent runtime.
type Config struct {
	// Provider selects and parameterizes the chat backend
	Provider ProviderConfig

	// EnableTools binds registered tools into the pipeline
	EnableTools bool

	// MaxToolRounds bounds tool round trips per turn
	MaxToolRounds int

	// SystemPrompt is prepended to every model invocation
	SystemPrompt string

	// Event bus configuration
	EnableEventBus      bool
	EventBusBufferSize  int
	EventBusWorkerCount int
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:            ProviderConfig{Kind: ProviderFake},
		EnableTools:         false,
		MaxToolRounds:       5,
		SystemPrompt:        prompt.DefaultSystem,
		EnableEventBus:      true,
		EventBusBufferSize:  100,
		EventBusWorkerCount: 5,
	}
}

// Agent is the main entry point into the rca runtime. It owns the
// session store, the pipeline cache, the tool registry, and the
// optional execution sandbox.
type Agent struct {
	// Core components
	factory  BackendFactory
	sandbox  Sandbox
	registry *ToolRegistry
	sessions *sessionStore
	cache    *pipelineCache
	eventBus eventbus.EventBus

	// Configuration
	config Config

	metrics AgentMetrics

	// pendingTools holds tools passed via WithTools until New registers
	// them and can surface registration errors.
	pendingTools []Tool

	// Async sandbox executions
	asyncExecutions      map[string]*executionRecord
	asyncExecutionsMutex sync.RWMutex
}

// Option is a function that configures an Agent instance.
type Option func(*Agent)

// WithConfig sets the agent configuration.
func WithConfig(config Config) Option {
	return func(a *Agent) {
		a.config = config
	}
}

// WithBackendFactory sets the backend factory component.
func WithBackendFactory(factory BackendFactory) Option {
	return func(a *Agent) {
		a.factory = factory
	}
}

// WithSandbox sets the execution sandbox component.
func WithSandbox(sandbox Sandbox) Option {
	return func(a *Agent) {
		a.sandbox = sandbox
	}
}

// WithTools registers tools at construction time. Registration errors
// surface from New.
func WithTools(tools ...Tool) Option {
	return func(a *Agent) {
		a.pendingTools = append(a.pendingTools, tools...)
	}
}

// New creates a new Agent instance with the provided options.
func New(options ...Option) (*Agent, error) {
	a := &Agent{
		config:          DefaultConfig(),
		registry:        NewToolRegistry(),
		sessions:        newSessionStore(),
		cache:           newPipelineCache(),
		asyncExecutions: make(map[string]*executionRecord),
	}

	// Apply options
	for _, option := range options {
		option(a)
	}

	// Validate required components
	if a.factory == nil {
		return nil, NewConfigurationError("backend factory is required", nil)
	}

	if err := a.config.Provider.Validate(); err != nil {
		return nil, err
	}

	if a.config.MaxToolRounds <= 0 {
		a.config.MaxToolRounds = DefaultConfig().MaxToolRounds
	}

	for _, tool := range a.pendingTools {
		if err := a.registry.Register(tool); err != nil {
			return nil, err
		}
	}
	a.pendingTools = nil

	// Initialize event bus if enabled but not provided
	if a.config.EnableEventBus && a.eventBus == nil {
		a.eventBus = eventbus.NewChannelEventBus(
			eventbus.WithBufferSize(a.config.EventBusBufferSize),
			eventbus.WithWorkerCount(a.config.EventBusWorkerCount),
		)
		log.Printf("Initialized default channel-based event bus")
	}

	return a, nil
}

// Chat processes one user message on a session and returns the
// assistant's reply. Turns on the same session are strictly
// serialized; different sessions proceed independently.
func (a *Agent) Chat(ctx context.Context, sessionID, message string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", NewValidationError("init", "session id must not be empty", nil)
	}
	if strings.TrimSpace(message) == "" {
		return "", NewValidationError("init", "message must not be empty", nil)
	}

	session, created := a.sessions.getOrCreate(sessionID)
	if created && a.config.EnableEventBus && a.eventBus != nil {
		a.eventBus.Publish(ctx, eventbus.NewEvent(
			eventbus.EventSessionCreated,
			sessionID,
			"Agent.Chat",
			nil,
		))
	}

	// The turn lock covers the whole append-invoke-append cycle
	session.BeginTurn()
	defer session.EndTurn()

	a.metrics.turnStarted()

	stateMachine := a.createTurnMachine()
	turnContext := NewTurnContext(sessionID, message)
	turnContext.session = session

	answer, err := stateMachine.Execute(ctx, turnContext)

	elapsed := turnContext.GetTotalDuration()
	a.metrics.turnFinished(err == nil, elapsed)

	if a.config.EnableEventBus && a.eventBus != nil {
		eventType := eventbus.EventTurnSuccess
		metadata := map[string]interface{}{
			"session_id":  sessionID,
			"duration_ms": elapsed.Milliseconds(),
			"tool_rounds": turnContext.ToolRounds,
		}
		if err != nil {
			eventType = eventbus.EventTurnFailure
			metadata["error"] = err.Error()
			metadata["error_stage"] = turnContext.ErrorStage
		}
		a.eventBus.Publish(ctx, eventbus.NewEvent(eventType, message, "Agent.Chat", metadata))
	}

	return answer, err
}

// createTurnMachine builds a state machine with all necessary
// transitions for one chat turn.
func (a *Agent) createTurnMachine() *TurnStateMachine {
	var bus eventbus.EventBus
	if a.config.EnableEventBus {
		bus = a.eventBus
	}

	components := turnComponents{
		registry:        a.registry,
		metrics:         &a.metrics,
		resolvePipeline: a.resolvePipeline,
		providerKind:    a.config.Provider.Kind,
		maxToolRounds:   a.config.MaxToolRounds,
	}

	return createTurnStateMachine(components, bus)
}

// resolvePipeline returns the pipeline for the current configuration,
// building and caching it on first use. Concurrent first uses collapse
// into one build.
func (a *Agent) resolvePipeline(ctx context.Context) (*Pipeline, error) {
	if err := errbuilder.WrapIfContextDone(ctx, nil); err != nil {
		return nil, err
	}

	key := PipelineKey{
		Kind:       a.config.Provider.Kind,
		ToolsBound: a.config.EnableTools && a.registry.Len() > 0,
	}

	return a.cache.getOrBuild(key, func(key PipelineKey) (*Pipeline, error) {
		var tools []Tool
		if key.ToolsBound {
			tools = a.registry.List()
		}

		backend, err := a.factory.Build(a.config.Provider, tools)
		if err != nil {
			return nil, err
		}
		return NewPipeline(backend, a.config.SystemPrompt, key.ToolsBound), nil
	})
}

// Execute dry-runs generated code in the sandbox and returns its
// structured outcome. Script-level failure is encoded in the result;
// an error means the sandbox itself could not operate.
func (a *Agent) Execute(ctx context.Context, req ExecutionRequest) (ExecutionResult, error) {
	if a.sandbox == nil {
		return ExecutionResult{}, NewConfigurationError("no sandbox configured", nil)
	}
	if strings.TrimSpace(req.Code) == "" {
		return ExecutionResult{}, NewValidationError("sandbox", "code must not be empty", nil)
	}
	if req.Timeout < 0 {
		return ExecutionResult{}, NewValidationError("sandbox", "timeout must not be negative", nil)
	}

	a.publishExecutionEvent(ctx, eventbus.EventExecutionStarted, map[string]interface{}{
		"code_bytes": len(req.Code),
	})

	result, err := a.sandbox.Run(ctx, req.Code, req.Timeout)
	if err != nil {
		a.publishExecutionEvent(ctx, eventbus.EventExecutionFailure, map[string]interface{}{
			"error": err.Error(),
		})
		return ExecutionResult{}, err
	}

	eventType := eventbus.EventExecutionSuccess
	switch result.Status {
	case ExecutionFailed:
		eventType = eventbus.EventExecutionFailure
	case ExecutionTimedOut:
		eventType = eventbus.EventExecutionTimedOut
	}
	a.publishExecutionEvent(ctx, eventType, map[string]interface{}{
		"exit_code":  result.ExitCode,
		"elapsed_ms": result.Elapsed.Milliseconds(),
	})

	return result, nil
}

func (a *Agent) publishExecutionEvent(ctx context.Context, eventType eventbus.EventType, metadata map[string]interface{}) {
	if !a.config.EnableEventBus || a.eventBus == nil {
		return
	}
	a.eventBus.Publish(ctx, eventbus.NewEvent(eventType, nil, "Agent.Execute", metadata))
}

// RegisterTool adds a new tool to the agent runtime. The pipeline
// cache is reset so the next turn rebuilds with the new binding.
func (a *Agent) RegisterTool(tool Tool) error {
	if err := a.registry.Register(tool); err != nil {
		return err
	}
	a.cache.reset()
	return nil
}

// ListTools returns the names of all registered tools.
func (a *Agent) ListTools() []string {
	tools := a.registry.List()
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name())
	}
	return names
}

// ToolSchemas returns the schema of every registered tool.
func (a *Agent) ToolSchemas() []map[string]interface{} {
	return a.registry.Schemas()
}

// History returns a copy of a session's message history.
func (a *Agent) History(sessionID string) ([]Message, error) {
	session, err := a.sessions.get(sessionID)
	if err != nil {
		return nil, err
	}
	return session.History(), nil
}

// SessionCount returns the number of live sessions.
func (a *Agent) SessionCount() int {
	return a.sessions.count()
}

// ResetPipelines drops all cached pipelines. The next turn rebuilds
// against the current configuration.
func (a *Agent) ResetPipelines() {
	a.cache.reset()
}

// ClearSessions drops every session and its history.
func (a *Agent) ClearSessions() {
	a.sessions.clear()
}

// Metrics returns a snapshot of the agent metrics.
func (a *Agent) Metrics() AgentMetrics {
	return a.metrics.Copy()
}

// Close shuts down the agent's event bus.
func (a *Agent) Close() error {
	if a.eventBus != nil {
		return a.eventBus.Close()
	}
	return nil
}
