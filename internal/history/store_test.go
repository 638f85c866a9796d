package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olgaz/aichat/internal/chat"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func message(role chat.Role, content string, ts int64) *chat.Message {
	m := chat.NewMessage(role, content)
	m.Timestamp = ts
	return m
}

func TestInsertAndAllMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := message(chat.RoleUser, "hello", 1000)
	second := message(chat.RoleAssistant, "hi!", 2000)
	second.Metadata = &chat.Metadata{
		ResponseTimeMS: 420,
		InputTokens:    15,
		OutputTokens:   8,
		Provider:       chat.ProviderDeepSeek,
		Model:          chat.ModelDeepSeekChat,
		UsedTools:      []string{"get_current_datetime"},
	}

	require.NoError(t, store.InsertMessage(ctx, first))
	require.NoError(t, store.InsertMessage(ctx, second))

	all, err := store.AllMessages(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	assert.Equal(t, "hello", all[0].Content)
	assert.Equal(t, chat.RoleUser, all[0].Role)

	require.NotNil(t, all[1].Metadata)
	assert.Equal(t, 15, all[1].Metadata.InputTokens)
	assert.Equal(t, chat.ModelDeepSeekChat, all[1].Metadata.Model)
	assert.Equal(t, []string{"get_current_datetime"}, all[1].Metadata.UsedTools)
}

func TestStructuredDataRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m := message(chat.RoleAssistant, "Paris", 1000)
	m.DisplayContent = "Paris"
	m.Structured = &chat.StructuredData{
		Topic:    "geography",
		Answer:   "Paris",
		Tags:     []string{"geo"},
		Links:    []string{"https://a.test"},
		Language: "en",
		Raw:      `{"answer":"Paris"}`,
		Format:   chat.FormatJSON,
	}
	require.NoError(t, store.InsertMessage(ctx, m))

	all, err := store.AllMessages(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	st := all[0].Structured
	require.NotNil(t, st)
	assert.Equal(t, "Paris", st.Answer)
	assert.Equal(t, chat.FormatJSON, st.Format)
	assert.Equal(t, []string{"geo"}, st.Tags)
}

func TestLastMessageEmptyHistory(t *testing.T) {
	store := newTestStore(t)

	m, err := store.LastMessage(context.Background())
	require.NoError(t, err)
	assert.Nil(t, m)

	summary, err := store.LastSummary(context.Background())
	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestContextForRequestWithoutSummary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertMessage(ctx, message(chat.RoleUser, "one", 1000)))
	require.NoError(t, store.InsertMessage(ctx, message(chat.RoleAssistant, "two", 2000)))

	context_, err := store.ContextForRequest(ctx)
	require.NoError(t, err)
	require.Len(t, context_, 2)
	assert.Equal(t, "one", context_[0].Content)
}

func TestContextForRequestWithSummary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old1 := message(chat.RoleUser, "old question", 1000)
	old2 := message(chat.RoleAssistant, "old answer", 2000)
	require.NoError(t, store.InsertMessage(ctx, old1))
	require.NoError(t, store.InsertMessage(ctx, old2))

	summary := message(chat.RoleAssistant, "summary of the start", 3000)
	summary.IsSummary = true
	summary.Summarization = &chat.SummarizationInfo{MessageCount: 2, InputTokens: 100, OutputTokens: 20}
	require.NoError(t, store.SaveSummary(ctx, summary, []string{old1.ID, old2.ID}))

	require.NoError(t, store.InsertMessage(ctx, message(chat.RoleUser, "new question", 4000)))

	context_, err := store.ContextForRequest(ctx)
	require.NoError(t, err)
	require.Len(t, context_, 2)
	assert.True(t, context_[0].IsSummary)
	assert.Equal(t, "summary of the start", context_[0].Content)
	assert.Equal(t, "new question", context_[1].Content)

	// Covered messages are marked but kept in the full history.
	all, err := store.AllMessages(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	for _, m := range all {
		if m.ID == old1.ID || m.ID == old2.ID {
			assert.Equal(t, summary.ID, m.CoveredBySummaryID)
		}
	}

	loaded, err := store.LastSummary(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.NotNil(t, loaded.Summarization)
	assert.Equal(t, 2, loaded.Summarization.MessageCount)
}

func TestReplaceKeepsCoveringReference(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m := message(chat.RoleUser, "old question", 1000)
	require.NoError(t, store.InsertMessage(ctx, m))

	summary := message(chat.RoleAssistant, "sum", 2000)
	summary.IsSummary = true
	require.NoError(t, store.SaveSummary(ctx, summary, []string{m.ID}))

	// Re-save a copy that predates the covering update, through both
	// insert paths.
	require.NoError(t, store.InsertMessages(ctx, []*chat.Message{m}))
	require.NoError(t, store.InsertMessage(ctx, m))

	all, err := store.AllMessages(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, summary.ID, all[0].CoveredBySummaryID)
}

func TestInsertMessagesKeepsAllColumns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m := message(chat.RoleUser, "[Файл: notes.txt]\n---\ntext", 1000)
	m.DisplayContent = "see the file"
	m.AttachedFile = &chat.FileAttachment{Name: "notes.txt", CharCount: 4}
	require.NoError(t, store.InsertMessages(ctx, []*chat.Message{m}))

	all, err := store.AllMessages(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].AttachedFile)
	assert.Equal(t, "notes.txt", all[0].AttachedFile.Name)
	assert.Equal(t, 4, all[0].AttachedFile.CharCount)
}

func TestOnlyNewestSummaryIsUsed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	s1 := message(chat.RoleAssistant, "first summary", 1000)
	s1.IsSummary = true
	require.NoError(t, store.SaveSummary(ctx, s1, nil))

	require.NoError(t, store.InsertMessage(ctx, message(chat.RoleUser, "mid", 2000)))

	s2 := message(chat.RoleAssistant, "second summary", 3000)
	s2.IsSummary = true
	require.NoError(t, store.SaveSummary(ctx, s2, nil))

	require.NoError(t, store.InsertMessage(ctx, message(chat.RoleUser, "tail", 4000)))

	context_, err := store.ContextForRequest(ctx)
	require.NoError(t, err)
	require.Len(t, context_, 2)
	assert.Equal(t, "second summary", context_[0].Content)
	assert.Equal(t, "tail", context_[1].Content)
}

func TestMessagesAfterLastSummaryExcludesSummaries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertMessage(ctx, message(chat.RoleUser, "before", 1000)))

	summary := message(chat.RoleAssistant, "sum", 2000)
	summary.IsSummary = true
	require.NoError(t, store.SaveSummary(ctx, summary, nil))

	require.NoError(t, store.InsertMessage(ctx, message(chat.RoleUser, "after", 3000)))

	tail, err := store.MessagesAfterLastSummary(ctx)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "after", tail[0].Content)
}

func TestCountByRoleAndUnanswered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	unanswered, err := store.HasUnansweredUserMessage(ctx)
	require.NoError(t, err)
	assert.False(t, unanswered)

	require.NoError(t, store.InsertMessage(ctx, message(chat.RoleUser, "q1", 1000)))
	require.NoError(t, store.InsertMessage(ctx, message(chat.RoleAssistant, "a1", 2000)))
	require.NoError(t, store.InsertMessage(ctx, message(chat.RoleUser, "q2", 3000)))

	users, err := store.CountByRole(ctx, chat.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, 2, users)

	unanswered, err = store.HasUnansweredUserMessage(ctx)
	require.NoError(t, err)
	assert.True(t, unanswered)
}

func TestDeleteAllMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertMessage(ctx, message(chat.RoleUser, "x", 1000)))
	require.NoError(t, store.DeleteAllMessages(ctx))

	all, err := store.AllMessages(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestReminders(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2025, 7, 1, 9, 30, 0, 0, time.Local)
	r, err := store.CreateReminder(ctx, "water the plants", at)
	require.NoError(t, err)
	require.NotEmpty(t, r.ID)

	pending, err := store.PendingReminders(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "water the plants", pending[0].Text)
	assert.Equal(t, at.UnixMilli(), pending[0].At.UnixMilli())

	require.NoError(t, store.CancelReminder(ctx, r.ID))

	pending, err = store.PendingReminders(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Error(t, store.CancelReminder(ctx, "missing"))
}
