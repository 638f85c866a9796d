package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/olgaz/aichat/internal/chat"
)

// ReminderStore persists reminders. Implemented by the history store.
type ReminderStore interface {
	CreateReminder(ctx context.Context, text string, at time.Time) (*chat.Reminder, error)
	PendingReminders(ctx context.Context) ([]*chat.Reminder, error)
	CancelReminder(ctx context.Context, id string) error
}

// ReminderHandler exposes reminder management as local tools. It is
// gated by the reminder toggle in the conversation settings.
type ReminderHandler struct {
	store ReminderStore
}

func NewReminderHandler(store ReminderStore) *ReminderHandler {
	return &ReminderHandler{store: store}
}

const (
	toolCreateReminder = "create_reminder"
	toolListReminders  = "list_reminders"
	toolCancelReminder = "cancel_reminder"

	reminderTimeLayout = "2006-01-02 15:04"
)

func (h *ReminderHandler) Enabled(settings chat.Settings) bool {
	return settings.ReminderToolsEnabled
}

func (h *ReminderHandler) Tools() []Descriptor {
	return []Descriptor{
		{
			Name:        toolCreateReminder,
			Description: "Creates a reminder for the user at the given date and time.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]PropertySchema{
					"text": {
						Type:        "string",
						Description: "What to remind the user about",
					},
					"datetime": {
						Type:        "string",
						Description: "When to remind, in the form YYYY-MM-DD HH:MM (local time)",
					},
				},
				Required: []string{"text", "datetime"},
			},
		},
		{
			Name:        toolListReminders,
			Description: "Lists the user's pending reminders.",
			InputSchema: InputSchema{Type: "object", Properties: map[string]PropertySchema{}},
		},
		{
			Name:        toolCancelReminder,
			Description: "Cancels a pending reminder by its identifier.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]PropertySchema{
					"id": {
						Type:        "string",
						Description: "Identifier of the reminder to cancel",
					},
				},
				Required: []string{"id"},
			},
		},
	}
}

func (h *ReminderHandler) CanHandle(name string) bool {
	switch name {
	case toolCreateReminder, toolListReminders, toolCancelReminder:
		return true
	default:
		return false
	}
}

func (h *ReminderHandler) Call(ctx context.Context, name string, args map[string]interface{}) Result {
	switch name {
	case toolCreateReminder:
		return h.create(ctx, args)
	case toolListReminders:
		return h.list(ctx)
	case toolCancelReminder:
		return h.cancel(ctx, args)
	default:
		return CallError{ToolName: name, Message: fmt.Sprintf("unknown tool: %s", name)}
	}
}

func (h *ReminderHandler) create(ctx context.Context, args map[string]interface{}) Result {
	text := strings.TrimSpace(GetStringParam(args, "text", ""))
	if text == "" {
		return CallError{ToolName: toolCreateReminder, Message: "text is required"}
	}

	raw := GetStringParam(args, "datetime", "")
	at, err := time.ParseInLocation(reminderTimeLayout, raw, time.Local)
	if err != nil {
		return CallError{ToolName: toolCreateReminder, Message: fmt.Sprintf("invalid datetime %q, expected YYYY-MM-DD HH:MM", raw)}
	}

	reminder, err := h.store.CreateReminder(ctx, text, at)
	if err != nil {
		return CallError{ToolName: toolCreateReminder, Message: err.Error()}
	}

	return Success{
		ToolName: toolCreateReminder,
		Content: []Content{TextContent{Text: fmt.Sprintf(
			"Reminder %s created: %q at %s", reminder.ID, reminder.Text, reminder.At.Format(reminderTimeLayout),
		)}},
	}
}

func (h *ReminderHandler) list(ctx context.Context) Result {
	reminders, err := h.store.PendingReminders(ctx)
	if err != nil {
		return CallError{ToolName: toolListReminders, Message: err.Error()}
	}
	if len(reminders) == 0 {
		return Success{
			ToolName: toolListReminders,
			Content:  []Content{TextContent{Text: "No pending reminders."}},
		}
	}

	var b strings.Builder
	for _, r := range reminders {
		fmt.Fprintf(&b, "%s: %s at %s\n", r.ID, r.Text, r.At.Format(reminderTimeLayout))
	}
	return Success{
		ToolName: toolListReminders,
		Content:  []Content{TextContent{Text: strings.TrimRight(b.String(), "\n")}},
	}
}

func (h *ReminderHandler) cancel(ctx context.Context, args map[string]interface{}) Result {
	id := strings.TrimSpace(GetStringParam(args, "id", ""))
	if id == "" {
		return CallError{ToolName: toolCancelReminder, Message: "id is required"}
	}

	if err := h.store.CancelReminder(ctx, id); err != nil {
		return CallError{ToolName: toolCancelReminder, Message: err.Error()}
	}
	return Success{
		ToolName: toolCancelReminder,
		Content:  []Content{TextContent{Text: fmt.Sprintf("Reminder %s cancelled.", id)}},
	}
}
