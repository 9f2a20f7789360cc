package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// OpenRouterProvider speaks the OpenAI-compatible chat-completions
// protocol, which honors tool_choice natively.
type OpenRouterProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

func NewOpenRouterProvider(baseURL, apiKey, model string) *OpenRouterProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{},
	}
}

type openRouterMsg struct {
	Role       string               `json:"role"`
	Content    string               `json:"content"`
	ToolCallID string               `json:"tool_call_id,omitempty"`
	ToolCalls  []openRouterToolCall `json:"tool_calls,omitempty"`
}

type openRouterToolCall struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openRouterChatReq struct {
	Model      string          `json:"model"`
	Messages   []openRouterMsg `json:"messages"`
	Stream     bool            `json:"stream"`
	Tools      []wireTool      `json:"tools,omitempty"`
	ToolChoice string          `json:"tool_choice,omitempty"`
}

type openRouterStreamResp struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id,omitempty"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func toOpenRouterMessages(messages []Message) []openRouterMsg {
	out := make([]openRouterMsg, 0, len(messages))
	for _, m := range messages {
		om := openRouterMsg{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			var otc openRouterToolCall
			otc.ID = tc.ID
			otc.Type = "function"
			otc.Function.Name = tc.Name
			otc.Function.Arguments = string(tc.Arguments)
			om.ToolCalls = append(om.ToolCalls, otc)
		}
		out = append(out, om)
	}
	return out
}

// partialCall accumulates a tool call streamed as argument fragments.
type partialCall struct {
	id   string
	name string
	args strings.Builder
}

func (p *OpenRouterProvider) ChatStream(ctx context.Context, messages []Message, tools []ToolDef, choice ToolChoice) (<-chan Event, <-chan error) {
	events := make(chan Event, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		fail := func(err error) {
			errs <- &BackendError{Provider: "openrouter", Err: err}
		}

		if strings.TrimSpace(p.APIKey) == "" {
			fail(errors.New("api key is required"))
			return
		}
		model := strings.TrimSpace(p.Model)
		if model == "" {
			fail(errors.New("model is required"))
			return
		}

		reqBody := openRouterChatReq{
			Model:    model,
			Stream:   true,
			Messages: toOpenRouterMessages(messages),
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

		url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			fail(err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.APIKey)

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

		pending := make(map[int]*partialCall)

		flushCalls := func() bool {
			if len(pending) == 0 {
				return true
			}
			idxs := make([]int, 0, len(pending))
			for i := range pending {
				idxs = append(idxs, i)
			}
			sort.Ints(idxs)
			calls := make([]ToolCall, 0, len(idxs))
			for _, i := range idxs {
				pc := pending[i]
				calls = append(calls, ToolCall{
					ID:        pc.id,
					Name:      pc.name,
					Arguments: json.RawMessage(pc.args.String()),
				})
			}
			pending = make(map[int]*partialCall)
			select {
			case events <- Event{ToolCalls: calls}:
				return true
			case <-ctx.Done():
				fail(ctx.Err())
				return false
			}
		}

		sc := bufio.NewScanner(resp.Body)
		buf := make([]byte, 0, 64*1024)
		sc.Buffer(buf, 2*1024*1024)

		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, ":") {
				continue
			}
			data, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				continue
			}
			if data == "[DONE]" {
				flushCalls()
				return
			}

			var decoded openRouterStreamResp
			if err := json.Unmarshal([]byte(data), &decoded); err != nil {
				fail(err)
				return
			}
			if decoded.Error != nil {
				fail(errors.New(decoded.Error.Message))
				return
			}
			if len(decoded.Choices) == 0 {
				continue
			}
			ch := decoded.Choices[0]

			for _, tc := range ch.Delta.ToolCalls {
				pc, ok := pending[tc.Index]
				if !ok {
					pc = &partialCall{}
					pending[tc.Index] = pc
				}
				if tc.ID != "" {
					pc.id = tc.ID
				}
				if tc.Function.Name != "" {
					pc.name = tc.Function.Name
				}
				pc.args.WriteString(tc.Function.Arguments)
			}

			if ch.Delta.Content != "" {
				select {
				case events <- Event{Delta: ch.Delta.Content}:
				case <-ctx.Done():
					fail(ctx.Err())
					return
				}
			}

			if ch.FinishReason == "tool_calls" {
				if !flushCalls() {
					return
				}
			}
		}

		if err := sc.Err(); err != nil {
			fail(err)
			return
		}
		flushCalls()
	}()

	return events, errs
}
