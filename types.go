package rca

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser marks a message written by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks a model-produced reply.
	RoleAssistant Role = "assistant"
	// RoleSystem marks the instruction message prepended to a turn.
	RoleSystem Role = "system"
	// RoleTool marks the captured output of a tool round trip.
	RoleTool Role = "tool"
)

// Message is a single entry in a session's ordered history.
// Index is the insertion position within the session and never changes.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Index     int       `json:"index"`
	CreatedAt time.Time `json:"created_at"`

	// ToolName is set only for RoleTool messages and names the tool
	// whose output the message carries.
	ToolName string `json:"tool_name,omitempty"`
}

// ToolCall is a model request to invoke a registered tool.
type ToolCall struct {
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"`
	Ref   string                 `json:"ref,omitempty"`
}

// ModelReply is the structured outcome of one backend invocation.
// A reply carries text, tool calls, or both; an empty reply is a
// provider failure.
type ModelReply struct {
	Text      string     `json:"text"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// HasToolCalls reports whether the model asked for a tool round trip.
func (r *ModelReply) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// ProviderKind enumerates the supported chat backends. The set is
// closed: adding a provider means adding a constant and a factory
// branch, never reflection.
type ProviderKind string

const (
	// ProviderOpenAI is the hosted OpenAI chat-completion backend.
	ProviderOpenAI ProviderKind = "openai"
	// ProviderAnthropic is the hosted Anthropic backend ("claude" is
	// accepted as an alias when parsing).
	ProviderAnthropic ProviderKind = "anthropic"
	// ProviderOllama is a locally served Ollama backend.
	ProviderOllama ProviderKind = "ollama"
	// ProviderFake is a deterministic echo backend: a pure function of
	// its input history, used for tests and offline development.
	ProviderFake ProviderKind = "fake"
)

// ParseProviderKind normalizes a provider identifier. Empty input maps
// to ProviderFake so the system stays usable without credentials.
func ParseProviderKind(raw string) (ProviderKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch normalized {
	case "":
		return ProviderFake, nil
	case "claude":
		return ProviderAnthropic, nil
	case string(ProviderOpenAI), string(ProviderAnthropic), string(ProviderOllama), string(ProviderFake):
		return ProviderKind(normalized), nil
	}
	return "", NewConfigurationError(fmt.Sprintf("invalid provider %q (valid: openai, anthropic, claude, ollama, fake)", raw), nil)
}

// Remote reports whether the kind calls a hosted service and therefore
// requires a credential.
func (k ProviderKind) Remote() bool {
	return k == ProviderOpenAI || k == ProviderAnthropic
}

// ProviderConfig selects and parameterizes a chat backend.
type ProviderConfig struct {
	Kind        ProviderKind `json:"kind"`
	Model       string       `json:"model,omitempty"`
	Temperature float64      `json:"temperature"`
	// Endpoint is the base URL for locally served backends (Ollama).
	Endpoint string `json:"endpoint,omitempty"`
	// APIKey is the credential for remote kinds. A missing credential is
	// a configuration error, never a runtime fault.
	APIKey string `json:"-"`
}

// Validate checks the configuration invariants before any backend is
// constructed.
func (c ProviderConfig) Validate() error {
	switch c.Kind {
	case ProviderOpenAI, ProviderAnthropic, ProviderOllama, ProviderFake:
	default:
		return NewConfigurationError(fmt.Sprintf("unrecognized provider kind %q", c.Kind), nil)
	}
	if c.Kind.Remote() && c.APIKey == "" {
		return NewConfigurationError(fmt.Sprintf("provider %q requires a credential", c.Kind), nil)
	}
	return nil
}

// defaultModels maps each kind to the model used when none is configured.
var defaultModels = map[ProviderKind]string{
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-3-5-sonnet-latest",
	ProviderOllama:    "llama3.1:8b",
}

// ModelName returns the configured model or the kind's default.
func (c ProviderConfig) ModelName() string {
	if c.Model != "" {
		return c.Model
	}
	return defaultModels[c.Kind]
}

// QualifiedModel returns the provider-prefixed model identifier used by
// the model transport (e.g. "openai/gpt-4o-mini").
func (c ProviderConfig) QualifiedModel() string {
	return string(c.Kind) + "/" + c.ModelName()
}

// PipelineKey identifies a cached pipeline instance: one per provider
// kind and tool-binding flag.
type PipelineKey struct {
	Kind       ProviderKind
	ToolsBound bool
}

// String renders the canonical cache key.
func (k PipelineKey) String() string {
	if k.ToolsBound {
		return string(k.Kind) + "+tools"
	}
	return string(k.Kind)
}

// ExecutionStatus classifies the outcome of a sandboxed script run.
type ExecutionStatus string

const (
	// ExecutionSuccess means the script exited zero.
	ExecutionSuccess ExecutionStatus = "success"
	// ExecutionFailed means the script exited non-zero.
	ExecutionFailed ExecutionStatus = "failed"
	// ExecutionTimedOut means the process tree was killed at the deadline.
	ExecutionTimedOut ExecutionStatus = "timed_out"
)

// ExecutionRequest describes one sandboxed run.
type ExecutionRequest struct {
	Code    string        `json:"code"`
	Timeout time.Duration `json:"timeout"`
}

// ExecutionResult is the structured outcome of a sandboxed run. Every
// request yields exactly one result; script-level failure is encoded
// here and never raised as an error.
type ExecutionResult struct {
	Status          ExecutionStatus `json:"status"`
	Stdout          string          `json:"stdout"`
	Stderr          string          `json:"stderr"`
	StdoutTruncated bool            `json:"stdout_truncated,omitempty"`
	StderrTruncated bool            `json:"stderr_truncated,omitempty"`
	// ExitCode is meaningful for Success and Failed outcomes.
	ExitCode int           `json:"exit_code"`
	Elapsed  time.Duration `json:"elapsed"`
}
