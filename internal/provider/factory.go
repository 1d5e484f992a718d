// Package provider builds chat backends for the supported provider kinds.
package provider

import (
	"sync"

	"github.com/baidakovil/rca"
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Factory builds rca.ChatBackend instances. Remote and local-served
// kinds go through the genkit transport; the fake kind is pure Go.
// Tool definitions are registered with genkit at most once per factory
// lifetime, keyed by tool name.
type Factory struct {
	g *genkit.Genkit

	mu       sync.Mutex
	toolRefs map[string]ai.Tool
}

// NewFactory creates a factory. g may be nil when only the fake kind
// will ever be built.
func NewFactory(g *genkit.Genkit) *Factory {
	return &Factory{
		g:        g,
		toolRefs: make(map[string]ai.Tool),
	}
}

// Build implements rca.BackendFactory.
func (f *Factory) Build(cfg rca.ProviderConfig, tools []rca.Tool) (rca.ChatBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Kind == rca.ProviderFake {
		return NewDeterministicBackend(), nil
	}

	if f.g == nil {
		return nil, rca.NewConfigurationError("model transport is not initialized", nil)
	}

	refs, err := f.bindTools(tools)
	if err != nil {
		return nil, err
	}

	return &genkitBackend{
		g:           f.g,
		model:       cfg.QualifiedModel(),
		temperature: cfg.Temperature,
		tools:       refs,
	}, nil
}

// bindTools registers each tool with the transport once and returns
// the references for binding into a generation call.
func (f *Factory) bindTools(tools []rca.Tool) ([]ai.Tool, error) {
	if len(tools) == 0 {
		return nil, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	refs := make([]ai.Tool, 0, len(tools))
	for _, tool := range tools {
		if ref, exists := f.toolRefs[tool.Name()]; exists {
			refs = append(refs, ref)
			continue
		}

		description, _ := tool.Schema()["description"].(string)
		ref := defineTool(f.g, tool, description)
		f.toolRefs[tool.Name()] = ref
		refs = append(refs, ref)
	}
	return refs, nil
}

// defineTool exposes an rca.Tool to the transport. The handler is only
// reached when the model side executes tools itself; the agent loop
// normally intercepts requests via the returned tool calls.
func defineTool(g *genkit.Genkit, tool rca.Tool, description string) ai.Tool {
	return genkit.DefineTool(g, tool.Name(), description,
		func(tc *ai.ToolContext, input map[string]any) (map[string]any, error) {
			return tool.Execute(tc, input)
		})
}
