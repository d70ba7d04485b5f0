// Package tools provides the data-fetching tool system for the stock agent.
//
// Information Hiding:
// - Upstream data sources (Yahoo Finance, Google News, search APIs) hidden
//   behind the Tool interface
// - Parameter decoding and defaulting internalized per tool
// - Error handling internalized per tool
package tools

import (
	"context"
	"fmt"
	"strconv"
)

// Parameter describes one tool parameter.
// Types are descriptive, for the model's benefit; they are not enforced.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
}

// Descriptor describes what a tool does and how to call it.
// Parameter order is fixed at declaration and reproduced verbatim in the
// system prompt's tool catalogue.
type Descriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
}

// String returns a short representation of the descriptor.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s: %s", d.Name, d.Description)
}

// Tool is the interface every data tool implements.
//
// Run takes the parameters parsed out of a model directive and returns a
// JSON-serializable value (nested maps, slices and scalars). Failures are
// reported through the error return; the agent folds them into an
// error-status envelope rather than aborting the analysis.
type Tool interface {
	Descriptor() Descriptor
	Run(ctx context.Context, params map[string]any) (any, error)
}

// Parameter decoding helpers shared by tool implementations.
// Directive parameters arrive as map[string]any straight from JSON, so
// numbers are float64 and everything else is loosely typed.

// StringParam returns a required string parameter.
func StringParam(params map[string]any, name string) (string, error) {
	v, ok := params[name]
	if !ok {
		return "", fmt.Errorf("missing required parameter %q", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string, got %T", name, v)
	}
	if s == "" {
		return "", fmt.Errorf("parameter %q must not be empty", name)
	}
	return s, nil
}

// OptionalString returns a string parameter or the given default.
func OptionalString(params map[string]any, name, def string) string {
	if v, ok := params[name]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

// OptionalInt returns an integer parameter or the given default.
// Accepts JSON numbers and numeric strings, since models emit both.
func OptionalInt(params map[string]any, name string, def int) int {
	v, ok := params[name]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return def
}
