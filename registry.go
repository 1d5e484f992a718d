package rca

import (
	"fmt"
	"sort"
	"sync"
)

// ToolRegistry holds the named tools a turn may round-trip through.
// Registration is name-unique; the registry is safe for concurrent use.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds a tool. A nil tool, empty name, or duplicate name is an
// error; existing registrations are never silently replaced.
func (r *ToolRegistry) Register(tool Tool) error {
	if tool == nil {
		return NewValidationError("registry", "cannot register a nil tool", nil)
	}
	name := tool.Name()
	if name == "" {
		return NewValidationError("registry", "cannot register a tool with an empty name", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return NewValidationError("registry", fmt.Sprintf("tool %q is already registered", name), nil)
	}
	r.tools[name] = tool
	return nil
}

// Get returns the named tool or a ToolNotFound error.
func (r *ToolRegistry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return nil, NewToolNotFoundError(name)
	}
	return tool, nil
}

// List returns every registered tool in name order.
func (r *ToolRegistry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Tool, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name])
	}
	return out
}

// Schemas returns the schema of every registered tool, in name order.
func (r *ToolRegistry) Schemas() []map[string]interface{} {
	tools := r.List()
	out := make([]map[string]interface{}, 0, len(tools))
	for _, tool := range tools {
		out = append(out, tool.Schema())
	}
	return out
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
