// Package tools holds the static catalog of read-only data functions
// exposed to the model.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/athena-api/athena/internal/ai"
)

// Handler executes one tool call. Args is the raw JSON argument object
// from the model. The returned string is fed back to the model verbatim
// as the tool result.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     Handler
}

// Registry is assembled once at startup and immutable afterwards.
type Registry struct {
	tools  []Tool
	byName map[string]Tool
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		if t.Name == "" {
			return nil, fmt.Errorf("tools: tool with empty name")
		}
		if _, dup := byName[t.Name]; dup {
			return nil, fmt.Errorf("tools: duplicate tool name %q", t.Name)
		}
		if t.Handler == nil {
			return nil, fmt.Errorf("tools: tool %q has no handler", t.Name)
		}
		byName[t.Name] = t
	}
	return &Registry{tools: tools, byName: byName}, nil
}

// Descriptors returns the catalog in the form offered to the model.
func (r *Registry) Descriptors() []ai.ToolDef {
	defs := make([]ai.ToolDef, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, ai.ToolDef{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return defs
}

// Dispatch runs the named tool. An unknown name or a handler failure is
// returned as an error; callers decide whether to feed it back to the
// model or terminate the turn.
func (r *Registry) Dispatch(ctx context.Context, call ai.ToolCall) (string, error) {
	t, ok := r.byName[call.Name]
	if !ok {
		return "", fmt.Errorf("tools: unknown tool %q", call.Name)
	}
	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	return t.Handler(ctx, args)
}
