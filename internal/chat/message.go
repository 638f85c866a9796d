// Package chat holds the conversation domain model: messages, their
// metadata, and the user-tunable settings that steer a conversation.
package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ParseRole maps a stored role string back to a Role. Unknown values
// fall back to RoleUser so a corrupted row never breaks loading.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleUser, RoleAssistant, RoleSystem:
		return Role(s)
	default:
		return RoleUser
	}
}

// Message is a single conversation turn. Content is the raw text sent
// to or received from the provider; DisplayContent is what the user
// sees (they differ when a file is embedded into the prompt or when a
// structured response was decoded).
type Message struct {
	ID             string
	Role           Role
	Content        string
	DisplayContent string
	Timestamp      int64 // unix milliseconds
	Structured     *StructuredData
	Metadata       *Metadata
	AttachedFile   *FileAttachment
	Summarization  *SummarizationInfo
	IsSummary      bool
	// CoveredBySummaryID points at the summary message that absorbed
	// this one; empty while the message is still live context.
	CoveredBySummaryID string
}

// NewMessage creates a message with a fresh ID and the current time.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:             uuid.NewString(),
		Role:           role,
		Content:        content,
		DisplayContent: content,
		Timestamp:      time.Now().UnixMilli(),
	}
}

// DisplayText returns the text shown to the user, falling back to the
// raw content for messages that never set a display form.
func (m *Message) DisplayText() string {
	if m.DisplayContent != "" {
		return m.DisplayContent
	}
	return m.Content
}

// StructuredData is the decoded form of a JSON or XML response.
type StructuredData struct {
	Datetime string
	Topic    string
	Question string
	Answer   string
	Tags     []string
	Links    []string
	Language string
	// Raw keeps the provider text exactly as received, fences and all.
	Raw    string
	Format ResponseFormat
}

// FileAttachment records a file whose contents were embedded into the
// raw prompt of a user message.
type FileAttachment struct {
	Name      string
	CharCount int
}

// SummarizationInfo is present only on summary messages and records
// what the summarization pass consumed and produced.
type SummarizationInfo struct {
	MessageCount int
	InputTokens  int
	OutputTokens int
}

// Metadata captures per-response accounting for an assistant message.
type Metadata struct {
	ResponseTimeMS int64
	InputTokens    int
	OutputTokens   int
	Provider       Provider
	Model          Model
	UsedTools      []string
}

// DeepSeek list pricing per one million tokens, in USD.
const (
	deepSeekInputPricePerM  = 0.28
	deepSeekOutputPricePerM = 0.42
)

// Cost derives the request cost in USD from the token counts. Only
// DeepSeek has a price table; other providers report zero.
func (m *Metadata) Cost() float64 {
	if m == nil || m.Provider != ProviderDeepSeek {
		return 0
	}
	return float64(m.InputTokens)*deepSeekInputPricePerM/1_000_000 +
		float64(m.OutputTokens)*deepSeekOutputPricePerM/1_000_000
}

// ConversationTokens aggregates token usage over a set of messages.
type ConversationTokens struct {
	InputTokens  int
	OutputTokens int
}

// TokensFromMessages sums the metadata token counts of the given
// messages. Messages without metadata contribute nothing.
func TokensFromMessages(messages []*Message) ConversationTokens {
	var t ConversationTokens
	for _, m := range messages {
		if m.Metadata == nil {
			continue
		}
		t.InputTokens += m.Metadata.InputTokens
		t.OutputTokens += m.Metadata.OutputTokens
	}
	return t
}

func (t ConversationTokens) Total() int {
	return t.InputTokens + t.OutputTokens
}

// FormatTotal renders the total with K/M suffixes: 999, 1.5K, 1.5M.
func (t ConversationTokens) FormatTotal() string {
	total := t.Total()
	switch {
	case total >= 1_000_000:
		return trimZero(fmt.Sprintf("%.1fM", float64(total)/1_000_000))
	case total >= 1_000:
		return trimZero(fmt.Sprintf("%.1fK", float64(total)/1_000))
	default:
		return fmt.Sprintf("%d", total)
	}
}

// trimZero turns "2.0K" into "2K" but leaves "1.5K" alone.
func trimZero(s string) string {
	if len(s) >= 3 && s[len(s)-3] == '.' && s[len(s)-2] == '0' {
		return s[:len(s)-3] + s[len(s)-1:]
	}
	return s
}

// Reminder is a user note scheduled for a point in time, managed via
// the reminder tools.
type Reminder struct {
	ID        string
	Text      string
	At        time.Time
	Done      bool
	CreatedAt time.Time
}
