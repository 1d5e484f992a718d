// Package prompt builds the system instructions handed to the model.
package prompt

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultSystem is the assistant instruction prepended to every turn.
const DefaultSystem = "You are a helpful assistant for Autodesk Revit via pyRevit. " +
	"Be concise. When generating code, use Python and pyRevit/Revit API."

// System renders the system instruction, annotated with the schemas of
// the tools bound to the pipeline. With no tools it is the bare
// instruction.
func System(toolSchemas []map[string]interface{}) string {
	if len(toolSchemas) == 0 {
		return DefaultSystem
	}

	var b strings.Builder
	b.WriteString(DefaultSystem)
	b.WriteString("\n\nYou can call the following tools:\n")
	for _, schema := range toolSchemas {
		name, _ := schema["name"].(string)
		description, _ := schema["description"].(string)
		b.WriteString(fmt.Sprintf("- %s: %s\n", name, description))
		if params, ok := schema["parameters"].(map[string]string); ok {
			keys := make([]string, 0, len(params))
			for k := range params {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				b.WriteString(fmt.Sprintf("    %s: %s\n", k, params[k]))
			}
		}
	}
	return b.String()
}

// Registry holds named prompt templates.
type Registry struct {
	mu      sync.RWMutex
	prompts map[string]string
}

// NewRegistry creates a registry seeded with the default system prompt
// under the name "system".
func NewRegistry() *Registry {
	return &Registry{
		prompts: map[string]string{
			"system": DefaultSystem,
		},
	}
}

// Register stores a template under a name, replacing any previous one.
func (r *Registry) Register(name, template string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts[name] = template
}

// Get returns the named template.
func (r *Registry) Get(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	template, ok := r.prompts[name]
	return template, ok
}

// Names returns the registered template names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.prompts))
	for name := range r.prompts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
