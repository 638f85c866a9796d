package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
)

func TestChatClientComplete(t *testing.T) {
	var captured chatRequest

	client := newTestHTTPClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.String() != "https://api.test/v1/chat/completions" {
			t.Errorf("unexpected URL: %s", req.URL)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(req.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Fatalf("request body: %v", err)
		}
		return newTestHTTPResponse(req, 200, "application/json", `{
			"id": "cmpl-1",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hello there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
		}`), nil
	})

	c, err := NewChatClient("sk-test", "https://api.test/v1/", "deepseek-chat", client)
	if err != nil {
		t.Fatalf("NewChatClient: %v", err)
	}

	resp, err := c.Complete(context.Background(), &CompletionRequest{
		Turns: []*Turn{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
		},
		Temperature: NewTemperature(0.7),
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if resp.Content != "hello there" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.PromptTokens != 12 || resp.Usage.CompletionTokens != 4 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
	if captured.Model != "deepseek-chat" {
		t.Errorf("request model = %q", captured.Model)
	}
	if captured.Stream {
		t.Error("stream should be false")
	}
	if captured.Temperature == nil || *captured.Temperature != 0.7 {
		t.Errorf("temperature = %v", captured.Temperature)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", captured.Messages)
	}
}

func TestChatClientTemperature(t *testing.T) {
	tests := []struct {
		name string
		temp *float64
		want *float64
	}{
		{"unset omits the field", nil, nil},
		{"explicit zero is sent", NewTemperature(0), NewTemperature(0)},
		{"nonzero is sent", NewTemperature(1.3), NewTemperature(1.3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured chatRequest
			client := newTestHTTPClient(func(req *http.Request) (*http.Response, error) {
				body, _ := io.ReadAll(req.Body)
				if err := json.Unmarshal(body, &captured); err != nil {
					t.Fatalf("request body: %v", err)
				}
				return newTestHTTPResponse(req, 200, "application/json", `{
					"choices": [{"message": {"role": "assistant", "content": "ok"}, "finish_reason": "stop"}]
				}`), nil
			})

			c, err := NewChatClient("key", "https://api.test/v1", "deepseek-chat", client)
			if err != nil {
				t.Fatalf("NewChatClient: %v", err)
			}
			if _, err := c.Complete(context.Background(), &CompletionRequest{
				Turns:       []*Turn{{Role: "user", Content: "hi"}},
				Temperature: tt.temp,
			}); err != nil {
				t.Fatalf("Complete: %v", err)
			}

			switch {
			case tt.want == nil && captured.Temperature != nil:
				t.Errorf("temperature = %v, want omitted", *captured.Temperature)
			case tt.want != nil && (captured.Temperature == nil || *captured.Temperature != *tt.want):
				t.Errorf("temperature = %v, want %v", captured.Temperature, *tt.want)
			}
		})
	}
}

func TestChatClientCompleteToolCalls(t *testing.T) {
	client := newTestHTTPClient(func(req *http.Request) (*http.Response, error) {
		return newTestHTTPResponse(req, 200, "application/json", `{
			"choices": [{"message": {"role": "assistant", "content": null, "tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "get_current_datetime", "arguments": "{\"format\":\"full\"}"}}
			]}, "finish_reason": "tool_calls"}],
			"usage": {"prompt_tokens": 30, "completion_tokens": 10, "total_tokens": 40}
		}`), nil
	})

	c, err := NewChatClient("key", "https://api.test/v1", "gpt-4o-mini", client)
	if err != nil {
		t.Fatalf("NewChatClient: %v", err)
	}

	resp, err := c.Complete(context.Background(), &CompletionRequest{
		Turns: []*Turn{{Role: "user", Content: "what time is it"}},
		Tools: []map[string]interface{}{{"type": "function"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if resp.Content != "" {
		t.Errorf("null content should decode to empty string, got %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %+v", resp.ToolCalls)
	}
	if resp.FinishReason != "tool_calls" {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}

	id, name, args := ParseToolCall(resp.ToolCalls[0])
	if id != "call_1" || name != "get_current_datetime" {
		t.Errorf("ParseToolCall = (%q, %q)", id, name)
	}
	if args != `{"format":"full"}` {
		t.Errorf("args = %q", args)
	}
}

func TestChatClientRateLimited(t *testing.T) {
	const body = `{"error": {"message": "Rate limit reached", "type": "rate_limit_error"}}`

	client := newTestHTTPClient(func(req *http.Request) (*http.Response, error) {
		return newTestHTTPResponse(req, 429, "application/json", body), nil
	})

	c, err := NewChatClient("key", "https://api.test/v1", "deepseek-chat", client)
	if err != nil {
		t.Fatalf("NewChatClient: %v", err)
	}

	_, err = c.Complete(context.Background(), &CompletionRequest{
		Turns: []*Turn{{Role: "user", Content: "hi"}},
	})

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.StatusCode != 429 || provErr.Class != StatusRateLimited {
		t.Errorf("ProviderError = %+v", provErr)
	}
	if provErr.Body != body {
		t.Errorf("error body not preserved: %q", provErr.Body)
	}
}

func TestChatClientStatusClasses(t *testing.T) {
	tests := []struct {
		status int
		want   StatusClass
	}{
		{400, StatusBadRequest},
		{401, StatusAuth},
		{403, StatusForbidden},
		{429, StatusRateLimited},
		{500, StatusServerUnavailable},
		{503, StatusServerUnavailable},
		{418, StatusUnknown},
	}

	for _, tt := range tests {
		client := newTestHTTPClient(func(req *http.Request) (*http.Response, error) {
			return newTestHTTPResponse(req, tt.status, "application/json", "oops"), nil
		})
		c, err := NewChatClient("key", "https://api.test/v1", "m", client)
		if err != nil {
			t.Fatalf("NewChatClient: %v", err)
		}

		_, err = c.Complete(context.Background(), &CompletionRequest{Turns: []*Turn{{Role: "user", Content: "x"}}})
		var provErr *ProviderError
		if !errors.As(err, &provErr) {
			t.Fatalf("status %d: expected ProviderError, got %v", tt.status, err)
		}
		if provErr.Class != tt.want {
			t.Errorf("status %d classified as %v, want %v", tt.status, provErr.Class, tt.want)
		}
	}
}

func TestChatClientEmptyChoices(t *testing.T) {
	client := newTestHTTPClient(func(req *http.Request) (*http.Response, error) {
		return newTestHTTPResponse(req, 200, "application/json", `{"choices": []}`), nil
	})

	c, err := NewChatClient("key", "https://api.test/v1", "m", client)
	if err != nil {
		t.Fatalf("NewChatClient: %v", err)
	}

	resp, err := c.Complete(context.Background(), &CompletionRequest{Turns: []*Turn{{Role: "user", Content: "x"}}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "" || len(resp.ToolCalls) != 0 {
		t.Errorf("expected empty response, got %+v", resp)
	}
}

func TestNewChatClientValidation(t *testing.T) {
	if _, err := NewChatClient("key", "https://api.test/v1", "", nil); err == nil {
		t.Error("expected error for missing model")
	}
	if _, err := NewChatClient("key", "", "m", nil); err == nil {
		t.Error("expected error for missing base URL")
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name    string
		content interface{}
		want    string
	}{
		{"plain string", "hi", "hi"},
		{"nil content", nil, ""},
		{"typed parts", []interface{}{
			map[string]interface{}{"type": "text", "text": "a"},
			map[string]interface{}{"type": "text", "text": "b"},
		}, "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractText(tt.content); got != tt.want {
				t.Errorf("extractText = %q, want %q", got, tt.want)
			}
		})
	}
}
