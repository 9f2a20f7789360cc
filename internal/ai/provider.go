package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Message roles as sent on the wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	// Set on tool-role messages to correlate a result with its call.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// Set on assistant messages that requested tool invocations.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a function invocation requested by the model. Arguments is
// the raw JSON object the model produced.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDef describes a callable function to the model. Parameters is a
// JSON-schema object.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolChoice controls whether the model may, must, or must not call a
// tool on a turn. Required is first-class here: the chat pipeline's
// grounding guarantee depends on it being distinct from auto.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
	ToolChoiceNone     ToolChoice = "none"
)

// Event is one fragment of a streaming model response: either a text
// delta or a batch of tool calls.
type Event struct {
	Delta     string
	ToolCalls []ToolCall
}

// BackendError wraps any failure reaching or reading the model backend.
type BackendError struct {
	Provider string
	Err      error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend: %v", e.Provider, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// IsBackendError reports whether err originated at the model backend.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// Provider is a chat-completion backend. ChatStream returns immediately;
// both channels are closed when the turn ends. A stream is not
// restartable: each turn needs a fresh call.
type Provider interface {
	ChatStream(ctx context.Context, messages []Message, tools []ToolDef, choice ToolChoice) (<-chan Event, <-chan error)
}
