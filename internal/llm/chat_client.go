package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ChatClient implements Client against any OpenAI-style chat
// completions endpoint. DeepSeek, OpenAI and the Hugging Face router
// all accept the same payloads, so one implementation covers every
// provider; only base URL, key and model differ.
type ChatClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewChatClient constructs a client for a chat-completions API.
// baseURL must point at the API root (e.g. https://api.deepseek.com/v1).
// An empty apiKey sends requests without an Authorization header. A
// nil httpClient gets a default with a 60 second timeout.
func NewChatClient(apiKey, baseURL, modelName string, httpClient *http.Client) (*ChatClient, error) {
	model := strings.TrimSpace(modelName)
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	trimmedBase := strings.TrimSpace(baseURL)
	if trimmedBase == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	return &ChatClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    strings.TrimRight(trimmedBase, "/"),
		httpClient: httpClient,
	}, nil
}

func (c *ChatClient) ModelName() string {
	return c.model
}

func (c *ChatClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("completion request cannot be nil")
	}

	httpReq, err := c.newChatRequest(ctx, c.buildChatRequest(req))
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Class:      classifyStatus(resp.StatusCode),
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode completion response: %w", err)
	}

	out := &CompletionResponse{FinishReason: "stop"}
	if chatResp.Usage != nil {
		out.Usage = *chatResp.Usage
	}

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message == nil {
		return out, nil
	}

	first := chatResp.Choices[0]
	out.Content = extractText(first.Message.Content)
	out.ToolCalls = NormalizeToolCallIDs(first.Message.ToolCalls)
	if strings.TrimSpace(first.FinishReason) != "" {
		out.FinishReason = first.FinishReason
	}

	return out, nil
}

func (c *ChatClient) buildChatRequest(req *CompletionRequest) *chatRequest {
	payload := &chatRequest{
		Model:    c.model,
		Messages: make([]chatMessage, 0, len(req.Turns)),
		Stream:   false,
	}

	for _, turn := range req.Turns {
		if turn == nil {
			continue
		}
		payload.Messages = append(payload.Messages, chatMessage{
			Role:       turn.Role,
			Content:    turn.Content,
			ToolCalls:  turn.ToolCalls,
			ToolCallID: turn.ToolCallID,
		})
	}

	payload.Temperature = req.Temperature
	if len(req.Tools) > 0 {
		payload.Tools = req.Tools
		payload.ToolChoice = req.ToolChoice
		if payload.ToolChoice == "" {
			payload.ToolChoice = "auto"
		}
	}

	return payload
}

func (c *ChatClient) newChatRequest(ctx context.Context, payload *chatRequest) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode completion payload: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create completion request: %w", err)
	}

	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	return req, nil
}

// Wire types for the chat completions endpoint.

type chatRequest struct {
	Model       string                   `json:"model"`
	Messages    []chatMessage            `json:"messages"`
	Stream      bool                     `json:"stream"`
	Temperature *float64                 `json:"temperature,omitempty"`
	Tools       []map[string]interface{} `json:"tools,omitempty"`
	ToolChoice  string                   `json:"tool_choice,omitempty"`
}

type chatMessage struct {
	Role       string                   `json:"role"`
	Content    string                   `json:"content"`
	ToolCalls  []map[string]interface{} `json:"tool_calls,omitempty"`
	ToolCallID string                   `json:"tool_call_id,omitempty"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Choices []chatChoice `json:"choices"`
	Usage   *Usage       `json:"usage,omitempty"`
}

type chatChoice struct {
	Index        int                  `json:"index"`
	Message      *chatResponseMessage `json:"message"`
	FinishReason string               `json:"finish_reason"`
}

// chatResponseMessage keeps Content loosely typed: some backends
// return a string, others a list of typed parts.
type chatResponseMessage struct {
	Role      string                   `json:"role"`
	Content   interface{}              `json:"content"`
	ToolCalls []map[string]interface{} `json:"tool_calls,omitempty"`
}

// extractText flattens a response content field to plain text. A null
// content (tool-call-only turns) yields an empty string.
func extractText(content interface{}) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []interface{}:
		var b strings.Builder
		for _, part := range v {
			m, ok := part.(map[string]interface{})
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok {
				b.WriteString(text)
			}
		}
		return b.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
