package tools

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olgaz/aichat/internal/chat"
)

type memReminderStore struct {
	reminders []*chat.Reminder
	nextID    int
}

func (s *memReminderStore) CreateReminder(ctx context.Context, text string, at time.Time) (*chat.Reminder, error) {
	s.nextID++
	r := &chat.Reminder{
		ID:        fmt.Sprintf("rem-%d", s.nextID),
		Text:      text,
		At:        at,
		CreatedAt: time.Now(),
	}
	s.reminders = append(s.reminders, r)
	return r, nil
}

func (s *memReminderStore) PendingReminders(ctx context.Context) ([]*chat.Reminder, error) {
	var out []*chat.Reminder
	for _, r := range s.reminders {
		if !r.Done {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memReminderStore) CancelReminder(ctx context.Context, id string) error {
	for _, r := range s.reminders {
		if r.ID == id {
			r.Done = true
			return nil
		}
	}
	return fmt.Errorf("reminder %s not found", id)
}

func TestReminderCreateListCancel(t *testing.T) {
	store := &memReminderStore{}
	h := NewReminderHandler(store)
	ctx := context.Background()

	result := h.Call(ctx, toolCreateReminder, map[string]interface{}{
		"text":     "call the dentist",
		"datetime": "2025-07-01 09:30",
	})
	success, ok := result.(Success)
	require.True(t, ok, "%#v", result)
	assert.Contains(t, success.Text(), "call the dentist")

	result = h.Call(ctx, toolListReminders, nil)
	success, ok = result.(Success)
	require.True(t, ok)
	assert.Contains(t, success.Text(), "rem-1")

	result = h.Call(ctx, toolCancelReminder, map[string]interface{}{"id": "rem-1"})
	_, ok = result.(Success)
	require.True(t, ok, "%#v", result)

	result = h.Call(ctx, toolListReminders, nil)
	success, ok = result.(Success)
	require.True(t, ok)
	assert.Equal(t, "No pending reminders.", success.Text())
}

func TestReminderValidation(t *testing.T) {
	h := NewReminderHandler(&memReminderStore{})
	ctx := context.Background()

	result := h.Call(ctx, toolCreateReminder, map[string]interface{}{"datetime": "2025-07-01 09:30"})
	callErr, ok := result.(CallError)
	require.True(t, ok)
	assert.Contains(t, callErr.Message, "text is required")

	result = h.Call(ctx, toolCreateReminder, map[string]interface{}{
		"text":     "x",
		"datetime": "tomorrow at noon",
	})
	callErr, ok = result.(CallError)
	require.True(t, ok)
	assert.Contains(t, callErr.Message, "invalid datetime")

	result = h.Call(ctx, toolCancelReminder, map[string]interface{}{"id": "rem-404"})
	callErr, ok = result.(CallError)
	require.True(t, ok)
	assert.Contains(t, callErr.Message, "not found")
}

func TestReminderGatedBySettings(t *testing.T) {
	h := NewReminderHandler(&memReminderStore{})

	settings := chat.DefaultSettings()
	assert.False(t, h.Enabled(settings))

	settings.ReminderToolsEnabled = true
	assert.True(t, h.Enabled(settings))
}
