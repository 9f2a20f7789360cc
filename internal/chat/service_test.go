package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/athena-api/athena/internal/ai"
	"github.com/athena-api/athena/internal/tools"
)

type scriptedTurn struct {
	events []ai.Event
	err    error
}

// fakeProvider replays scripted turns and records what the service sent
// on each one.
type fakeProvider struct {
	mu       sync.Mutex
	turns    []scriptedTurn
	messages [][]ai.Message
	choices  []ai.ToolChoice
}

func (p *fakeProvider) ChatStream(ctx context.Context, messages []ai.Message, defs []ai.ToolDef, choice ai.ToolChoice) (<-chan ai.Event, <-chan error) {
	p.mu.Lock()
	p.messages = append(p.messages, append([]ai.Message(nil), messages...))
	p.choices = append(p.choices, choice)
	idx := len(p.choices) - 1
	p.mu.Unlock()

	events := make(chan ai.Event, 16)
	errs := make(chan error, 1)
	go func() {
		defer close(events)
		defer close(errs)
		if idx >= len(p.turns) {
			errs <- errors.New("fake provider: no scripted turn")
			return
		}
		turn := p.turns[idx]
		for _, ev := range turn.events {
			select {
			case events <- ev:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if turn.err != nil {
			errs <- turn.err
		}
	}()
	return events, errs
}

func (p *fakeProvider) turnCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.choices)
}

func stubRegistry(t *testing.T, handlers map[string]tools.Handler) *tools.Registry {
	t.Helper()
	var list []tools.Tool
	for name, h := range handlers {
		list = append(list, tools.Tool{
			Name:        name,
			Description: name,
			Parameters:  map[string]any{"type": "object"},
			Handler:     h,
		})
	}
	reg, err := tools.NewRegistry(list...)
	if err != nil {
		t.Fatalf("stub registry: %v", err)
	}
	return reg
}

func okHandler(result string) tools.Handler {
	return func(ctx context.Context, args json.RawMessage) (string, error) {
		return result, nil
	}
}

func collect(t *testing.T, ctx context.Context, svc *Service, msgs []ai.Message) (string, error) {
	t.Helper()
	chunks, errs := svc.Stream(ctx, msgs)
	var b strings.Builder
	for c := range chunks {
		b.WriteString(c)
	}
	return b.String(), <-errs
}

func userMessages(contents ...string) []ai.Message {
	msgs := make([]ai.Message, 0, len(contents))
	for _, c := range contents {
		msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: c})
	}
	return msgs
}

func toolCall(id, name, args string) ai.ToolCall {
	return ai.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

func TestStream_SystemInstructionFirstExactlyOnce(t *testing.T) {
	provider := &fakeProvider{turns: []scriptedTurn{
		{events: []ai.Event{{ToolCalls: []ai.ToolCall{toolCall("call-1", "GetAllCustomers", "{}")}}}},
		{events: []ai.Event{{Delta: "done"}}},
	}}
	reg := stubRegistry(t, map[string]tools.Handler{"GetAllCustomers": okHandler("[]")})
	svc := NewService(provider, reg, time.Minute, 5)

	_, err := collect(t, context.Background(), svc, userMessages("hi", "list customers"))
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	for round, msgs := range provider.messages {
		if len(msgs) < 3 {
			t.Fatalf("round %d: expected system + 2 user messages, got %d", round, len(msgs))
		}
		if msgs[0].Role != ai.RoleSystem {
			t.Fatalf("round %d: first message role = %q, want system", round, msgs[0].Role)
		}
		systemCount := 0
		firstUser := -1
		for i, m := range msgs {
			if m.Role == ai.RoleSystem {
				systemCount++
			}
			if m.Role == ai.RoleUser && firstUser == -1 {
				firstUser = i
			}
		}
		if systemCount != 1 {
			t.Fatalf("round %d: system message count = %d, want 1", round, systemCount)
		}
		if firstUser != 1 {
			t.Fatalf("round %d: first user message at index %d, want 1", round, firstUser)
		}
	}
}

func TestStream_FirstTurnForcesToolChoice(t *testing.T) {
	provider := &fakeProvider{turns: []scriptedTurn{
		{events: []ai.Event{{ToolCalls: []ai.ToolCall{toolCall("call-1", "GetAllSales", "{}")}}}},
		{events: []ai.Event{{Delta: "analysis"}}},
	}}
	reg := stubRegistry(t, map[string]tools.Handler{"GetAllSales": okHandler("[]")})
	svc := NewService(provider, reg, time.Minute, 5)

	out, err := collect(t, context.Background(), svc, userMessages("how are sales?"))
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if out != "analysis" {
		t.Fatalf("unexpected output %q", out)
	}

	if provider.choices[0] != ai.ToolChoiceRequired {
		t.Fatalf("first turn choice = %q, want required", provider.choices[0])
	}
	if provider.choices[1] != ai.ToolChoiceAuto {
		t.Fatalf("resumed turn choice = %q, want auto", provider.choices[1])
	}
}

func TestStream_ToolResultCorrelatedBeforeResume(t *testing.T) {
	provider := &fakeProvider{turns: []scriptedTurn{
		{events: []ai.Event{{ToolCalls: []ai.ToolCall{toolCall("call-1", "GetCustomer", `{"customerId":"CUST-001"}`)}}}},
		{events: []ai.Event{{Delta: "found it"}}},
	}}
	reg := stubRegistry(t, map[string]tools.Handler{"GetCustomer": okHandler(`{"name":"Acme Corporation"}`)})
	svc := NewService(provider, reg, time.Minute, 5)

	if _, err := collect(t, context.Background(), svc, userMessages("who is CUST-001?")); err != nil {
		t.Fatalf("stream: %v", err)
	}

	// The resumed turn must carry exactly one tool result for call-1,
	// after the assistant message that requested it.
	resumed := provider.messages[1]
	var results []ai.Message
	assistantIdx := -1
	for i, m := range resumed {
		if m.Role == ai.RoleAssistant && len(m.ToolCalls) > 0 {
			assistantIdx = i
		}
		if m.Role == ai.RoleTool {
			results = append(results, m)
			if i < assistantIdx {
				t.Fatalf("tool result appeared before its originating call")
			}
		}
	}
	if assistantIdx == -1 {
		t.Fatalf("assistant tool-call message missing from resumed history")
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly 1 tool result, got %d", len(results))
	}
	if results[0].ToolCallID != "call-1" {
		t.Fatalf("tool result id = %q, want call-1", results[0].ToolCallID)
	}
	if results[0].Content != `{"name":"Acme Corporation"}` {
		t.Fatalf("unexpected tool result content %q", results[0].Content)
	}
}

func TestStream_MultipleCallsResolvedInEmissionOrder(t *testing.T) {
	provider := &fakeProvider{turns: []scriptedTurn{
		{events: []ai.Event{{ToolCalls: []ai.ToolCall{
			toolCall("call-1", "GetAllCustomers", "{}"),
			toolCall("call-2", "GetAllSales", "{}"),
		}}}},
		{events: []ai.Event{{Delta: "summary"}}},
	}}

	var mu sync.Mutex
	var order []string
	record := func(name string) tools.Handler {
		return func(ctx context.Context, args json.RawMessage) (string, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return "[]", nil
		}
	}
	reg := stubRegistry(t, map[string]tools.Handler{
		"GetAllCustomers": record("GetAllCustomers"),
		"GetAllSales":     record("GetAllSales"),
	})
	svc := NewService(provider, reg, time.Minute, 5)

	if _, err := collect(t, context.Background(), svc, userMessages("overview")); err != nil {
		t.Fatalf("stream: %v", err)
	}

	if len(order) != 2 || order[0] != "GetAllCustomers" || order[1] != "GetAllSales" {
		t.Fatalf("dispatch order = %v", order)
	}

	resumed := provider.messages[1]
	var ids []string
	for _, m := range resumed {
		if m.Role == ai.RoleTool {
			ids = append(ids, m.ToolCallID)
		}
	}
	if len(ids) != 2 || ids[0] != "call-1" || ids[1] != "call-2" {
		t.Fatalf("tool result ids = %v", ids)
	}
}

func TestStream_RequiredTurnWithoutToolCallFails(t *testing.T) {
	provider := &fakeProvider{turns: []scriptedTurn{
		{events: []ai.Event{{Delta: "I think the answer is 42."}}},
	}}
	reg := stubRegistry(t, map[string]tools.Handler{"GetAllSales": okHandler("[]")})
	svc := NewService(provider, reg, time.Minute, 5)

	out, err := collect(t, context.Background(), svc, userMessages("how are sales?"))
	if !errors.Is(err, ErrNoToolCall) {
		t.Fatalf("expected ErrNoToolCall, got %v", err)
	}
	// Prose on a forced turn is never relayed as the answer.
	if out != "" {
		t.Fatalf("expected no output, got %q", out)
	}
}

func TestStream_ToolFailureFedBackToModel(t *testing.T) {
	provider := &fakeProvider{turns: []scriptedTurn{
		{events: []ai.Event{{ToolCalls: []ai.ToolCall{toolCall("call-1", "GetAllSales", "{}")}}}},
		{events: []ai.Event{{Delta: "the data source is unavailable"}}},
	}}
	reg := stubRegistry(t, map[string]tools.Handler{
		"GetAllSales": func(ctx context.Context, args json.RawMessage) (string, error) {
			return "", errors.New("connection refused")
		},
	})
	svc := NewService(provider, reg, time.Minute, 5)

	out, err := collect(t, context.Background(), svc, userMessages("how are sales?"))
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if out != "the data source is unavailable" {
		t.Fatalf("unexpected output %q", out)
	}

	resumed := provider.messages[1]
	found := false
	for _, m := range resumed {
		if m.Role == ai.RoleTool && m.ToolCallID == "call-1" {
			found = true
			var payload struct {
				Error string `json:"error"`
			}
			if jsonErr := json.Unmarshal([]byte(m.Content), &payload); jsonErr != nil || payload.Error == "" {
				t.Fatalf("expected error payload, got %q", m.Content)
			}
		}
	}
	if !found {
		t.Fatalf("tool error result missing from resumed history")
	}
}

func TestStream_BackendErrorKeepsEarlierChunks(t *testing.T) {
	backendErr := &ai.BackendError{Provider: "ollama", Err: errors.New("connection reset")}
	provider := &fakeProvider{turns: []scriptedTurn{
		{events: []ai.Event{{ToolCalls: []ai.ToolCall{toolCall("call-1", "GetAllSales", "{}")}}}},
		{events: []ai.Event{{Delta: "Sales are "}, {Delta: "trending up"}}, err: backendErr},
	}}
	reg := stubRegistry(t, map[string]tools.Handler{"GetAllSales": okHandler("[]")})
	svc := NewService(provider, reg, time.Minute, 5)

	out, err := collect(t, context.Background(), svc, userMessages("how are sales?"))
	if !ai.IsBackendError(err) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if out != "Sales are trending up" {
		t.Fatalf("chunks before the failure must stand, got %q", out)
	}
}

func TestStream_CancellationStopsFurtherDispatch(t *testing.T) {
	provider := &fakeProvider{turns: []scriptedTurn{
		{events: []ai.Event{{ToolCalls: []ai.ToolCall{
			toolCall("call-1", "GetAllCustomers", "{}"),
			toolCall("call-2", "GetAllSales", "{}"),
		}}}},
	}}

	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	dispatched := map[string]int{}
	reg := stubRegistry(t, map[string]tools.Handler{
		"GetAllCustomers": func(ctx context.Context, args json.RawMessage) (string, error) {
			mu.Lock()
			dispatched["GetAllCustomers"]++
			mu.Unlock()
			cancel()
			return "[]", nil
		},
		"GetAllSales": func(ctx context.Context, args json.RawMessage) (string, error) {
			mu.Lock()
			dispatched["GetAllSales"]++
			mu.Unlock()
			return "[]", nil
		},
	})
	svc := NewService(provider, reg, time.Minute, 5)

	_, err := collect(t, ctx, svc, userMessages("overview"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if dispatched["GetAllSales"] != 0 {
		t.Fatalf("tool dispatched after cancellation")
	}
	if provider.turnCount() != 1 {
		t.Fatalf("model resumed after cancellation: %d turns", provider.turnCount())
	}
}

// stallingProvider produces nothing until the request context expires,
// then reports the context error the way the real clients do.
type stallingProvider struct{}

func (*stallingProvider) ChatStream(ctx context.Context, messages []ai.Message, defs []ai.ToolDef, choice ai.ToolChoice) (<-chan ai.Event, <-chan error) {
	events := make(chan ai.Event)
	errs := make(chan error, 1)
	go func() {
		defer close(events)
		defer close(errs)
		<-ctx.Done()
		errs <- &ai.BackendError{Provider: "test", Err: ctx.Err()}
	}()
	return events, errs
}

func TestStream_DeadlineBoundsSlowBackend(t *testing.T) {
	reg := stubRegistry(t, map[string]tools.Handler{"GetAllSales": okHandler("[]")})
	svc := NewService(&stallingProvider{}, reg, 50*time.Millisecond, 5)

	start := time.Now()
	_, err := collect(t, context.Background(), svc, userMessages("how are sales?"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("request not bounded by its deadline, took %v", elapsed)
	}
}

func TestStream_ToolRoundLimit(t *testing.T) {
	// The model keeps asking for tools forever.
	turns := make([]scriptedTurn, 10)
	for i := range turns {
		turns[i] = scriptedTurn{events: []ai.Event{{ToolCalls: []ai.ToolCall{
			toolCall("call", "GetAllSales", "{}"),
		}}}}
	}
	provider := &fakeProvider{turns: turns}
	reg := stubRegistry(t, map[string]tools.Handler{"GetAllSales": okHandler("[]")})
	svc := NewService(provider, reg, time.Minute, 3)

	_, err := collect(t, context.Background(), svc, userMessages("loop"))
	if !errors.Is(err, ErrTooManyToolRounds) {
		t.Fatalf("expected ErrTooManyToolRounds, got %v", err)
	}
	if provider.turnCount() != 3 {
		t.Fatalf("expected 3 model turns, got %d", provider.turnCount())
	}
}
