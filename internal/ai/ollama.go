package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/athena-api/athena/internal/common"
)

type OllamaProvider struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaProvider{
		BaseURL: baseURL,
		Model:   model,
		// No client timeout: streams can be long, the request context
		// carries the deadline.
		Client: &http.Client{},
	}
}

type ollamaChatReq struct {
	Model      string      `json:"model"`
	Messages   []ollamaMsg `json:"messages"`
	Stream     bool        `json:"stream"`
	Tools      []wireTool  `json:"tools,omitempty"`
	ToolChoice string      `json:"tool_choice,omitempty"`
}

type ollamaMsg struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolCalls  []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	ID       string `json:"id,omitempty"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type ollamaStreamResp struct {
	Message ollamaMsg `json:"message"`
	Done    bool      `json:"done"`
	Error   string    `json:"error,omitempty"`
}

func toOllamaMessages(messages []Message) []ollamaMsg {
	out := make([]ollamaMsg, 0, len(messages))
	for _, m := range messages {
		om := ollamaMsg{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			var otc ollamaToolCall
			otc.ID = tc.ID
			otc.Function.Name = tc.Name
			otc.Function.Arguments = tc.Arguments
			om.ToolCalls = append(om.ToolCalls, otc)
		}
		out = append(out, om)
	}
	return out
}

// ChatStream streams one model turn over Ollama's /api/chat NDJSON
// protocol. Text deltas and tool calls arrive interleaved; both channels
// close when the turn ends.
func (p *OllamaProvider) ChatStream(ctx context.Context, messages []Message, tools []ToolDef, choice ToolChoice) (<-chan Event, <-chan error) {
	events := make(chan Event, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		fail := func(err error) {
			errs <- &BackendError{Provider: "ollama", Err: err}
		}

		if p.Client == nil {
			fail(errors.New("http client is nil"))
			return
		}

		reqBody := ollamaChatReq{
			Model:    p.Model,
			Stream:   true,
			Messages: toOllamaMessages(messages),
			Tools:    toWireTools(tools),
		}
		if choice != "" && choice != ToolChoiceAuto {
			reqBody.ToolChoice = string(choice)
		}

		b, err := json.Marshal(reqBody)
		if err != nil {
			fail(err)
			return
		}

		url := fmt.Sprintf("%s/api/chat", p.BaseURL)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			fail(err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.Client.Do(req)
		if err != nil {
			fail(err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			fail(fmt.Errorf("status %d", resp.StatusCode))
			return
		}

		sc := bufio.NewScanner(resp.Body)
		// Increase scanner buffer for long JSON lines.
		buf := make([]byte, 0, 64*1024)
		sc.Buffer(buf, 2*1024*1024)

		for sc.Scan() {
			line := sc.Bytes()
			if len(line) == 0 {
				continue
			}

			var decoded ollamaStreamResp
			if err := json.Unmarshal(line, &decoded); err != nil {
				fail(err)
				return
			}
			if decoded.Error != "" {
				fail(errors.New(decoded.Error))
				return
			}

			if len(decoded.Message.ToolCalls) > 0 {
				calls := make([]ToolCall, 0, len(decoded.Message.ToolCalls))
				for _, otc := range decoded.Message.ToolCalls {
					id := otc.ID
					if id == "" {
						// Ollama omits call ids; synthesize one so
						// results can still be correlated.
						id, err = common.NewULID()
						if err != nil {
							fail(err)
							return
						}
					}
					calls = append(calls, ToolCall{
						ID:        id,
						Name:      otc.Function.Name,
						Arguments: otc.Function.Arguments,
					})
				}
				select {
				case events <- Event{ToolCalls: calls}:
				case <-ctx.Done():
					fail(ctx.Err())
					return
				}
			}

			if decoded.Message.Content != "" {
				select {
				case events <- Event{Delta: decoded.Message.Content}:
				case <-ctx.Done():
					fail(ctx.Err())
					return
				}
			}

			if decoded.Done {
				return
			}
		}

		if err := sc.Err(); err != nil {
			fail(err)
			return
		}
	}()

	return events, errs
}
