package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/olgaz/aichat/internal/chat"
	"github.com/olgaz/aichat/internal/llm"
)

// summarizationTemperature keeps synopses factual rather than
// creative.
const summarizationTemperature = 0.3

const summarizationSystemPrompt = `You condense conversations into short, information-dense summaries. Produce a synopsis that preserves:
1. The context and goal of the conversation.
2. Key points and decisions made.
3. Current status and open items.
4. Tone and notable details worth keeping.

Write at most seven sentences. Use the language the conversation is held in. Answer with the summary only, no preamble.`

// MaybeSummarize runs a summarization pass when the unsummarized tail
// has crossed either threshold (message count or total tokens). It
// returns the stored summary message, or nil when no pass was needed.
func (e *Engine) MaybeSummarize(ctx context.Context, settings chat.Settings) (*chat.Message, error) {
	if !settings.Summarization.Enabled {
		return nil, nil
	}

	tail, err := e.summarizableTail(ctx)
	if err != nil {
		return nil, err
	}
	if len(tail) == 0 {
		return nil, nil
	}

	count := len(tail)
	tokens := e.tailTokens(tail, settings).Total()
	if count < settings.Summarization.MessageThreshold && tokens < settings.Summarization.TokenThreshold {
		return nil, nil
	}

	e.log.Info("summarizing %d messages (%d tokens)", count, tokens)
	return e.summarizeTail(ctx, settings, tail)
}

// Summarize runs a summarization pass unconditionally (the manual
// path). With nothing to summarize it returns nil.
func (e *Engine) Summarize(ctx context.Context, settings chat.Settings) (*chat.Message, error) {
	tail, err := e.summarizableTail(ctx)
	if err != nil {
		return nil, err
	}
	if len(tail) == 0 {
		return nil, nil
	}
	return e.summarizeTail(ctx, settings, tail)
}

// summarizableTail is the unsummarized user/assistant conversation
// since the last summary.
func (e *Engine) summarizableTail(ctx context.Context) ([]*chat.Message, error) {
	tail, err := e.store.MessagesAfterLastSummary(ctx)
	if err != nil {
		return nil, err
	}

	var out []*chat.Message
	for _, m := range tail {
		if m.Role == chat.RoleUser || m.Role == chat.RoleAssistant {
			out = append(out, m)
		}
	}
	return out, nil
}

// tailTokens totals the tail's token usage: provider-reported counts
// where available, an encoder estimate on the input side for messages
// without metadata.
func (e *Engine) tailTokens(tail []*chat.Message, settings chat.Settings) chat.ConversationTokens {
	model := e.gateway.ActualModel(settings)

	usage := chat.TokensFromMessages(tail)
	for _, m := range tail {
		if m.Metadata == nil {
			usage.InputTokens += llm.EstimateTokens(model.APIName, m.Content)
		}
	}
	return usage
}

func (e *Engine) summarizeTail(ctx context.Context, settings chat.Settings, tail []*chat.Message) (*chat.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	client, err := e.gateway.ClientFor(settings)
	if err != nil {
		return nil, err
	}

	var transcript strings.Builder
	for _, m := range tail {
		fmt.Fprintf(&transcript, "%s: %s\n\n", m.Role, m.DisplayText())
	}

	resp, err := client.Complete(ctx, &llm.CompletionRequest{
		Turns: []*llm.Turn{
			{Role: "system", Content: summarizationSystemPrompt},
			{Role: "user", Content: "Analyze and summarize the following conversation:\n\n" + transcript.String()},
		},
		Temperature: llm.NewTemperature(summarizationTemperature),
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return nil, ErrEmptyResponse
	}

	summary := chat.NewMessage(chat.RoleAssistant, resp.Content)
	summary.IsSummary = true
	// Summaries must sort after everything they cover even when the
	// wall clock matches the tail's last message.
	if last := tail[len(tail)-1]; summary.Timestamp <= last.Timestamp {
		summary.Timestamp = last.Timestamp + 1
	}
	// The descriptor accounts for the messages that were compressed,
	// not for the summarization request itself.
	tailUsage := e.tailTokens(tail, settings)
	summary.Summarization = &chat.SummarizationInfo{
		MessageCount: len(tail),
		InputTokens:  tailUsage.InputTokens,
		OutputTokens: tailUsage.OutputTokens,
	}
	summary.Metadata = &chat.Metadata{
		ResponseTimeMS: 0,
		InputTokens:    resp.Usage.PromptTokens,
		OutputTokens:   resp.Usage.CompletionTokens,
		Provider:       settings.Provider,
		Model:          e.gateway.ActualModel(settings),
	}

	coveredIDs := make([]string, len(tail))
	for i, m := range tail {
		coveredIDs[i] = m.ID
	}

	if err := e.store.SaveSummary(ctx, summary, coveredIDs); err != nil {
		return nil, err
	}

	return summary, nil
}
