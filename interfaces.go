package rca

import (
	"context"
	"time"
)

// ChatBackend produces one model reply from an ordered message history.
// Implementations wrap a network-bound model transport or, for the
// deterministic kind, a pure function of the history.
type ChatBackend interface {
	Generate(ctx context.Context, history []Message) (*ModelReply, error)
}

// BackendFactory builds a ChatBackend for a provider configuration.
// When tools is non-empty the backend is built with the tools bound so
// the model can request round trips. Unrecognized kinds and missing
// credentials fail with a configuration error; no network traffic
// happens until the backend is invoked.
type BackendFactory interface {
	Build(cfg ProviderConfig, tools []Tool) (ChatBackend, error)
}

// Tool represents a named, schema-described callable the model may
// request be invoked mid-conversation.
type Tool interface {
	// Execute performs the tool's action with resolved arguments.
	Execute(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)

	// Schema returns a description of the tool. Standard keys:
	// - "name": the tool's name
	// - "description": what the tool does
	// - "parameters": map of parameter names to descriptions
	// - "returns": description of the return value
	Schema() map[string]interface{}

	// Validate checks if the provided input is valid for this tool.
	Validate(input map[string]interface{}) error

	// Name returns the tool's unique name.
	Name() string
}

// Sandbox runs generated code as an isolated, timeout-bounded process.
// Script-level failure is encoded in the result; only an inoperable
// sandbox returns an error.
type Sandbox interface {
	Run(ctx context.Context, code string, timeout time.Duration) (ExecutionResult, error)
}

// Pipeline is the constructed, ready-to-invoke combination of a chat
// backend, a system prompt, and optional tool bindings. Pipelines are
// immutable once built and shared read-only between turns.
type Pipeline struct {
	backend    ChatBackend
	system     string
	toolsBound bool
}

// NewPipeline assembles a pipeline around a built backend.
func NewPipeline(backend ChatBackend, system string, toolsBound bool) *Pipeline {
	return &Pipeline{backend: backend, system: system, toolsBound: toolsBound}
}

// Invoke runs the backend against the history, prepending the system
// instruction when one is configured.
func (p *Pipeline) Invoke(ctx context.Context, history []Message) (*ModelReply, error) {
	if p.system != "" {
		prefixed := make([]Message, 0, len(history)+1)
		prefixed = append(prefixed, Message{Role: RoleSystem, Content: p.system})
		prefixed = append(prefixed, history...)
		history = prefixed
	}
	return p.backend.Generate(ctx, history)
}

// ToolsBound reports whether the pipeline was built with tool bindings.
func (p *Pipeline) ToolsBound() bool {
	return p.toolsBound
}
