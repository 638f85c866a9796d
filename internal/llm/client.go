// Package llm talks to chat-completion providers. All supported
// backends (DeepSeek, OpenAI, Hugging Face router) speak the same
// OpenAI-style wire format, so a single HTTP client serves them all;
// the Gateway picks endpoint, credentials and model per provider.
package llm

import "context"

// Turn is one message in a completion request: a system prompt, a
// user or assistant turn, or a tool result keyed to the call that
// produced it.
type Turn struct {
	Role      string
	Content   string
	ToolCalls []map[string]interface{}
	// ToolCallID links a "tool" turn to the assistant tool call it
	// answers.
	ToolCallID string
}

// Usage reports the provider's token accounting for one request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionRequest is a single chat-completion call.
type CompletionRequest struct {
	Turns []*Turn
	// Temperature nil means the provider's default; an explicit 0 is
	// sent as 0.
	Temperature *float64
	// Tools carries JSON-schema tool declarations in the provider's
	// {"type":"function","function":{...}} shape. Empty means no
	// tools are offered.
	Tools      []map[string]interface{}
	ToolChoice string
}

// CompletionResponse is the provider's answer. ToolCalls is non-empty
// when the model wants tools executed instead of (or before) giving a
// final answer.
type CompletionResponse struct {
	Content      string
	ToolCalls    []map[string]interface{}
	FinishReason string
	Usage        Usage
}

// NewTemperature builds the pointer CompletionRequest.Temperature
// expects.
func NewTemperature(v float64) *float64 {
	return &v
}

// Client is a chat-completion backend.
type Client interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	ModelName() string
}
