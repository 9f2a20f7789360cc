// Package chat orchestrates one tool-augmented chat request end to end:
// history assembly, forced tool selection, tool dispatch, and
// incremental relay of the model's answer.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/athena-api/athena/internal/ai"
	"github.com/athena-api/athena/internal/tools"
)

// systemInstruction is prepended to every conversation. Fixed text: the
// model must always see the same tool list and persona.
const systemInstruction = `When asked for customer, sales, or order data, use the available tools:
- GetSalesForCustomer(customerId) for sales orders of a specific customer
- GetAllSales() for all sales orders
- GetCustomer(customerId) for customer information
- GetAllCustomers() for all customers

Provide analysis from the perspective of a sales analyst or dispatcher who
needs to understand customer purchase patterns and make recommendations
based on sales data and customer behavior.`

var (
	// ErrNoToolCall reports a model that answered a forced turn without
	// selecting a tool.
	ErrNoToolCall = errors.New("chat: model produced no tool call on a required turn")

	// ErrTooManyToolRounds reports a turn that kept requesting tools
	// past the configured cap.
	ErrTooManyToolRounds = errors.New("chat: tool round limit exceeded")
)

// turnState tracks where a request is in its lifecycle. The turn is an
// explicit state machine so multi-call rounds and cancellation points
// stay precise.
type turnState int

const (
	stateAwaitingModel turnState = iota
	stateDispatchingTools
	stateResumingModel
	stateDone
	stateFailed
)

type Service struct {
	provider  ai.Provider
	registry  *tools.Registry
	timeout   time.Duration
	maxRounds int
}

func NewService(provider ai.Provider, registry *tools.Registry, timeout time.Duration, maxRounds int) *Service {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if maxRounds <= 0 || maxRounds > 20 {
		maxRounds = 5
	}
	return &Service{provider: provider, registry: registry, timeout: timeout, maxRounds: maxRounds}
}

// turn carries the mutable state of one request.
type turn struct {
	state   turnState
	history []ai.Message
	choice  ai.ToolChoice
	calls   []ai.ToolCall
	round   int
	err     error
}

// Stream runs one chat request. The caller's messages are appended after
// the fixed system instruction; chunks of the assistant's final answer
// are delivered on the first channel as they arrive. Both channels close
// when the request ends; a value on the error channel means the stream
// terminated abnormally (already-delivered chunks stand).
func (s *Service) Stream(ctx context.Context, incoming []ai.Message) (<-chan string, <-chan error) {
	out := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		t := &turn{
			state:  stateAwaitingModel,
			choice: ai.ToolChoiceRequired,
		}
		t.history = make([]ai.Message, 0, len(incoming)+1)
		t.history = append(t.history, ai.Message{Role: ai.RoleSystem, Content: systemInstruction})
		t.history = append(t.history, incoming...)

		for {
			switch t.state {
			case stateAwaitingModel, stateResumingModel:
				s.runModelTurn(ctx, t, out)
			case stateDispatchingTools:
				s.dispatchTools(ctx, t)
			case stateDone:
				return
			case stateFailed:
				errs <- t.err
				return
			}
		}
	}()

	return out, errs
}

// runModelTurn streams one model response, relaying text deltas and
// collecting tool calls. Transitions to dispatchingTools, done, or
// failed.
func (s *Service) runModelTurn(ctx context.Context, t *turn, out chan<- string) {
	if t.round >= s.maxRounds {
		t.state = stateFailed
		t.err = ErrTooManyToolRounds
		return
	}
	t.round++

	events, perrs := s.provider.ChatStream(ctx, t.history, s.registry.Descriptors(), t.choice)

	t.calls = t.calls[:0]
	for ev := range events {
		if len(ev.ToolCalls) > 0 {
			t.calls = append(t.calls, ev.ToolCalls...)
			continue
		}
		if ev.Delta == "" {
			continue
		}
		// On a forced turn the model's output is its tool selection;
		// any prose it emits alongside is preamble, not the answer.
		if t.choice == ai.ToolChoiceRequired {
			continue
		}
		select {
		case out <- ev.Delta:
		case <-ctx.Done():
			t.state = stateFailed
			t.err = ctx.Err()
			return
		}
	}

	// The event channel is closed; a pending error decides the outcome.
	if err := <-perrs; err != nil {
		t.state = stateFailed
		t.err = err
		return
	}

	if len(t.calls) > 0 {
		t.state = stateDispatchingTools
		return
	}
	if t.choice == ai.ToolChoiceRequired {
		t.state = stateFailed
		t.err = ErrNoToolCall
		return
	}
	t.state = stateDone
}

// dispatchTools resolves the collected calls in emission order and
// appends one tool-role message per call, keyed by call id. Transitions
// to resumingModel or failed.
func (s *Service) dispatchTools(ctx context.Context, t *turn) {
	t.history = append(t.history, ai.Message{Role: ai.RoleAssistant, ToolCalls: t.calls})

	for _, call := range t.calls {
		// Nothing is dispatched once cancellation is observed.
		if err := ctx.Err(); err != nil {
			t.state = stateFailed
			t.err = err
			return
		}

		content, err := s.registry.Dispatch(ctx, call)
		if err != nil {
			// Dispatch failures go back to the model as an error
			// payload; it can rephrase, retry another tool, or report.
			log.Printf("[chat] tool dispatch failed tool=%s call_id=%s err=%v", call.Name, call.ID, err)
			content = toolErrorPayload(err)
		}
		t.history = append(t.history, ai.Message{
			Role:       ai.RoleTool,
			Content:    content,
			ToolCallID: call.ID,
		})
	}

	t.calls = nil
	// After the first resolved round the model may answer freely.
	t.choice = ai.ToolChoiceAuto
	t.state = stateResumingModel
}

func toolErrorPayload(err error) string {
	b, mErr := json.Marshal(map[string]string{"error": err.Error()})
	if mErr != nil {
		return fmt.Sprintf(`{"error": %q}`, strings.ReplaceAll(err.Error(), `"`, `'`))
	}
	return string(b)
}
