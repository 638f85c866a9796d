// Package orchestrator drives a conversation turn: it assembles the
// provider request, runs the bounded tool-calling loop and produces
// the final assistant message with its accounting metadata.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/olgaz/aichat/internal/chat"
	"github.com/olgaz/aichat/internal/llm"
	"github.com/olgaz/aichat/internal/logger"
	"github.com/olgaz/aichat/internal/tools"
)

// DefaultToolLoopLimit bounds provider round-trips within one
// exchange when no explicit limit is configured.
const DefaultToolLoopLimit = 5

var (
	// ErrToolLoopExceeded is returned when the model keeps requesting
	// tools past the configured loop limit.
	ErrToolLoopExceeded = errors.New("tool call limit exceeded without a final answer")
	// ErrEmptyResponse is returned when the provider produced neither
	// text nor tool calls.
	ErrEmptyResponse = errors.New("the provider returned an empty response")
)

// Gateway resolves provider clients from settings. Implemented by
// llm.Gateway.
type Gateway interface {
	ClientFor(settings chat.Settings) (llm.Client, error)
	ActualModel(settings chat.Settings) chat.Model
}

// Store is the slice of history the engine needs: reading the
// unsummarized tail and persisting summaries. Implemented by
// history.Store.
type Store interface {
	MessagesAfterLastSummary(ctx context.Context) ([]*chat.Message, error)
	SaveSummary(ctx context.Context, summary *chat.Message, coveredIDs []string) error
}

// Engine orchestrates conversation turns and summarization. One
// mutex serializes both, so a summarization pass never interleaves
// with an in-flight response on the same conversation.
type Engine struct {
	gateway   Gateway
	tools     *tools.Registry
	store     Store
	loopLimit int
	log       *logger.Logger

	mu sync.Mutex
}

// New creates an engine. loopLimit <= 0 selects the default.
func New(gateway Gateway, registry *tools.Registry, store Store, loopLimit int) *Engine {
	if loopLimit <= 0 {
		loopLimit = DefaultToolLoopLimit
	}
	return &Engine{
		gateway:   gateway,
		tools:     registry,
		store:     store,
		loopLimit: loopLimit,
		log:       logger.Global().WithPrefix("orchestrator"),
	}
}

// Respond produces the assistant's reply to the given conversation
// context. Tool calls requested by the model are executed in order
// and fed back until the model answers in plain text or the loop
// limit is hit.
func (e *Engine) Respond(ctx context.Context, messages []*chat.Message, settings chat.Settings) (*chat.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	client, err := e.gateway.ClientFor(settings)
	if err != nil {
		return nil, err
	}

	turns := make([]*llm.Turn, 0, len(messages)+1)
	turns = append(turns, &llm.Turn{Role: "system", Content: llm.SystemPrompt(settings)})
	for _, m := range messages {
		turns = append(turns, &llm.Turn{Role: string(m.Role), Content: m.Content})
	}

	start := time.Now()

	descriptors := e.tools.ListAvailable(ctx, settings)
	if len(descriptors) == 0 {
		resp, err := client.Complete(ctx, &llm.CompletionRequest{
			Turns:       turns,
			Temperature: llm.NewTemperature(settings.Temperature),
		})
		if err != nil {
			return nil, err
		}
		return e.finalize(resp, settings, start, nil)
	}

	schemas := make([]map[string]interface{}, len(descriptors))
	for i, d := range descriptors {
		schemas[i] = d.ToJSONSchema()
	}

	var usedTools []string
	for iteration := 0; iteration < e.loopLimit; iteration++ {
		resp, err := client.Complete(ctx, &llm.CompletionRequest{
			Turns:       turns,
			Temperature: llm.NewTemperature(settings.Temperature),
			Tools:       schemas,
			ToolChoice:  "auto",
		})
		if err != nil {
			return nil, err
		}

		if len(resp.ToolCalls) == 0 {
			return e.finalize(resp, settings, start, usedTools)
		}

		e.log.Debug("iteration %d: model requested %d tool call(s)", iteration+1, len(resp.ToolCalls))

		// The assistant turn carrying the calls must precede the tool
		// results in the follow-up request.
		turns = append(turns, &llm.Turn{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			id, name, argsJSON := llm.ParseToolCall(tc)
			if name == "" {
				e.log.Warn("skipping tool call without a name")
				continue
			}
			usedTools = append(usedTools, name)

			result := e.tools.Execute(ctx, name, tools.CoerceArguments(argsJSON))
			turns = append(turns, &llm.Turn{
				Role:       "tool",
				Content:    resultText(result),
				ToolCallID: id,
			})
		}
	}

	e.log.Warn("tool loop limit (%d) reached", e.loopLimit)
	return nil, ErrToolLoopExceeded
}

func resultText(result tools.Result) string {
	switch r := result.(type) {
	case tools.Success:
		text := r.Text()
		if strings.TrimSpace(text) == "" {
			return "(no output)"
		}
		return text
	case tools.CallError:
		return fmt.Sprintf("Error: %s", r.Message)
	default:
		return "(no output)"
	}
}

// finalize turns the provider response into a stored assistant
// message: decodes the configured format and attaches metadata.
func (e *Engine) finalize(resp *llm.CompletionResponse, settings chat.Settings, start time.Time, usedTools []string) (*chat.Message, error) {
	if strings.TrimSpace(resp.Content) == "" {
		return nil, ErrEmptyResponse
	}

	display, structured := llm.Decode(resp.Content, settings.ResponseFormat)

	msg := chat.NewMessage(chat.RoleAssistant, resp.Content)
	msg.DisplayContent = display
	msg.Structured = structured
	msg.Metadata = &chat.Metadata{
		ResponseTimeMS: time.Since(start).Milliseconds(),
		InputTokens:    resp.Usage.PromptTokens,
		OutputTokens:   resp.Usage.CompletionTokens,
		Provider:       settings.Provider,
		Model:          e.gateway.ActualModel(settings),
		UsedTools:      usedTools,
	}
	return msg, nil
}
