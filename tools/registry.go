// Tool registration and lookup.
//
// Information Hiding:
// - Tool storage and ordering hidden behind the Registry API
// - Catalogue formatting for the system prompt centralized here

package tools

import (
	"fmt"
	"strings"
)

// Registry holds the set of available tools, keyed by unique name.
// Registration order is preserved: Describe emits tools in the order they
// were registered, and that text goes verbatim into the system prompt, so
// the ordering is part of the contract with the model.
//
// The registry is fixed after construction and safe for concurrent reads.
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry builds a registry from the given tools.
// Returns an error if two tools share a name.
func NewRegistry(ts ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		name := t.Descriptor().Name
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("tool %q already registered", name)
		}
		r.tools[name] = t
		r.order = append(r.order, name)
	}
	return r, nil
}

// Get returns a tool by name. Lookup never fails hard: absence is reported
// through the boolean, and the caller turns it into an "unknown tool"
// envelope for the model to recover from.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}

// Describe returns the tool catalogue for prompt injection: one block per
// tool with name, description, and a comma-joined parameter list.
func (r *Registry) Describe() string {
	var blocks []string
	for _, name := range r.order {
		d := r.tools[name].Descriptor()
		params := make([]string, 0, len(d.Parameters))
		for _, p := range d.Parameters {
			params = append(params, fmt.Sprintf("%s: %s, %s", p.Name, p.Type, p.Description))
		}
		blocks = append(blocks, fmt.Sprintf(
			"- Tool name: %s\n  Description: %s\n  Parameters: %s",
			d.Name, d.Description, strings.Join(params, ", ")))
	}
	return strings.Join(blocks, "\n")
}
