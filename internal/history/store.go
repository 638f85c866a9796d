// Package history persists the conversation in SQLite: messages,
// summaries, the settings singleton and reminders.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/olgaz/aichat/internal/chat"
)

// Store handles all SQLite operations for the conversation history.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the history database at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn between the chat loop and the summarizer.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		display_content TEXT NOT NULL DEFAULT '',
		timestamp INTEGER NOT NULL,
		structured TEXT,
		metadata TEXT,
		file_name TEXT,
		file_char_count INTEGER,
		summary_msg_count INTEGER,
		summary_input_tokens INTEGER,
		summary_output_tokens INTEGER,
		is_summary BOOLEAN NOT NULL DEFAULT FALSE,
		covered_by_summary_id TEXT
	);

	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		provider TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		communication_style TEXT NOT NULL DEFAULT '',
		deep_thinking BOOLEAN NOT NULL DEFAULT FALSE,
		response_format TEXT NOT NULL DEFAULT '',
		send_message_mode TEXT NOT NULL DEFAULT '',
		system_prompt_mode TEXT NOT NULL DEFAULT '',
		custom_system_prompt TEXT NOT NULL DEFAULT '',
		temperature REAL NOT NULL DEFAULT 1.0,
		summarization_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		summarization_message_threshold INTEGER NOT NULL DEFAULT 10,
		summarization_token_threshold INTEGER NOT NULL DEFAULT 10000,
		weather_tools_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		reminder_tools_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		mcp_server_url TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS reminders (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		remind_at INTEGER NOT NULL,
		done BOOLEAN NOT NULL DEFAULT FALSE,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp);
	CREATE INDEX IF NOT EXISTS idx_messages_summary ON messages(is_summary, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// storedStructured and storedMetadata are the JSON column shapes.

type storedStructured struct {
	Datetime string   `json:"datetime,omitempty"`
	Topic    string   `json:"topic,omitempty"`
	Question string   `json:"question,omitempty"`
	Answer   string   `json:"answer,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Links    []string `json:"links,omitempty"`
	Language string   `json:"language,omitempty"`
	Raw      string   `json:"raw,omitempty"`
	Format   string   `json:"format,omitempty"`
}

type storedMetadata struct {
	ResponseTimeMS int64    `json:"response_time_ms"`
	InputTokens    int      `json:"input_tokens"`
	OutputTokens   int      `json:"output_tokens"`
	Provider       string   `json:"provider"`
	Model          string   `json:"model"`
	UsedTools      []string `json:"used_tools,omitempty"`
}

const messageColumns = `id, role, content, display_content, timestamp, structured, metadata,
	file_name, file_char_count, summary_msg_count, summary_input_tokens, summary_output_tokens,
	is_summary, covered_by_summary_id`

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// InsertMessage stores one message.
func (s *Store) InsertMessage(ctx context.Context, m *chat.Message) error {
	return insertMessage(ctx, s.db, m)
}

// InsertMessages stores several messages in one transaction.
func (s *Store) InsertMessages(ctx context.Context, messages []*chat.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, m := range messages {
		if err := insertMessage(ctx, tx, m); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// insertMessage writes the full column set. A replace never clears an
// existing covering reference, even when the caller's copy of the
// message predates the summary that covered it.
func insertMessage(ctx context.Context, db execer, m *chat.Message) error {
	structured, metadata, err := encodeJSONColumns(m)
	if err != nil {
		return err
	}

	var fileName sql.NullString
	var fileChars sql.NullInt64
	if m.AttachedFile != nil {
		fileName = sql.NullString{String: m.AttachedFile.Name, Valid: true}
		fileChars = sql.NullInt64{Int64: int64(m.AttachedFile.CharCount), Valid: true}
	}

	var sumCount, sumIn, sumOut sql.NullInt64
	if m.Summarization != nil {
		sumCount = sql.NullInt64{Int64: int64(m.Summarization.MessageCount), Valid: true}
		sumIn = sql.NullInt64{Int64: int64(m.Summarization.InputTokens), Valid: true}
		sumOut = sql.NullInt64{Int64: int64(m.Summarization.OutputTokens), Valid: true}
	}

	var covered sql.NullString
	if m.CoveredBySummaryID != "" {
		covered = sql.NullString{String: m.CoveredBySummaryID, Valid: true}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			role = excluded.role,
			content = excluded.content,
			display_content = excluded.display_content,
			timestamp = excluded.timestamp,
			structured = excluded.structured,
			metadata = excluded.metadata,
			file_name = excluded.file_name,
			file_char_count = excluded.file_char_count,
			summary_msg_count = excluded.summary_msg_count,
			summary_input_tokens = excluded.summary_input_tokens,
			summary_output_tokens = excluded.summary_output_tokens,
			is_summary = excluded.is_summary,
			covered_by_summary_id = COALESCE(excluded.covered_by_summary_id, messages.covered_by_summary_id)`,
		m.ID, string(m.Role), m.Content, m.DisplayContent, m.Timestamp,
		structured, metadata, fileName, fileChars, sumCount, sumIn, sumOut,
		m.IsSummary, covered,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func encodeJSONColumns(m *chat.Message) (structured, metadata sql.NullString, err error) {
	if m.Structured != nil {
		data, jerr := json.Marshal(storedStructured{
			Datetime: m.Structured.Datetime,
			Topic:    m.Structured.Topic,
			Question: m.Structured.Question,
			Answer:   m.Structured.Answer,
			Tags:     m.Structured.Tags,
			Links:    m.Structured.Links,
			Language: m.Structured.Language,
			Raw:      m.Structured.Raw,
			Format:   string(m.Structured.Format),
		})
		if jerr != nil {
			return structured, metadata, fmt.Errorf("failed to encode structured data: %w", jerr)
		}
		structured = sql.NullString{String: string(data), Valid: true}
	}

	if m.Metadata != nil {
		data, jerr := json.Marshal(storedMetadata{
			ResponseTimeMS: m.Metadata.ResponseTimeMS,
			InputTokens:    m.Metadata.InputTokens,
			OutputTokens:   m.Metadata.OutputTokens,
			Provider:       string(m.Metadata.Provider),
			Model:          m.Metadata.Model.Name,
			UsedTools:      m.Metadata.UsedTools,
		})
		if jerr != nil {
			return structured, metadata, fmt.Errorf("failed to encode metadata: %w", jerr)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	return structured, metadata, nil
}

func scanMessage(scanner interface {
	Scan(dest ...interface{}) error
}) (*chat.Message, error) {
	var m chat.Message
	var role string
	var structured, metadata, fileName, covered sql.NullString
	var fileChars, sumCount, sumIn, sumOut sql.NullInt64

	err := scanner.Scan(
		&m.ID, &role, &m.Content, &m.DisplayContent, &m.Timestamp,
		&structured, &metadata, &fileName, &fileChars,
		&sumCount, &sumIn, &sumOut, &m.IsSummary, &covered,
	)
	if err != nil {
		return nil, err
	}

	m.Role = chat.ParseRole(role)
	m.CoveredBySummaryID = covered.String

	if structured.Valid && structured.String != "" {
		var st storedStructured
		if err := json.Unmarshal([]byte(structured.String), &st); err == nil {
			m.Structured = &chat.StructuredData{
				Datetime: st.Datetime,
				Topic:    st.Topic,
				Question: st.Question,
				Answer:   st.Answer,
				Tags:     st.Tags,
				Links:    st.Links,
				Language: st.Language,
				Raw:      st.Raw,
				Format:   chat.ParseResponseFormat(st.Format),
			}
		}
	}

	if metadata.Valid && metadata.String != "" {
		var md storedMetadata
		if err := json.Unmarshal([]byte(metadata.String), &md); err == nil {
			provider := chat.ParseProvider(md.Provider)
			m.Metadata = &chat.Metadata{
				ResponseTimeMS: md.ResponseTimeMS,
				InputTokens:    md.InputTokens,
				OutputTokens:   md.OutputTokens,
				Provider:       provider,
				Model:          chat.ParseModel(md.Model, provider),
				UsedTools:      md.UsedTools,
			}
		}
	}

	if fileName.Valid {
		m.AttachedFile = &chat.FileAttachment{
			Name:      fileName.String,
			CharCount: int(fileChars.Int64),
		}
	}

	if sumCount.Valid {
		m.Summarization = &chat.SummarizationInfo{
			MessageCount: int(sumCount.Int64),
			InputTokens:  int(sumIn.Int64),
			OutputTokens: int(sumOut.Int64),
		}
	}

	return &m, nil
}

func (s *Store) queryMessages(ctx context.Context, query string, args ...interface{}) ([]*chat.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*chat.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AllMessages returns the full history in chronological order.
func (s *Store) AllMessages(ctx context.Context) ([]*chat.Message, error) {
	return s.queryMessages(ctx, `
		SELECT `+messageColumns+` FROM messages
		ORDER BY timestamp ASC, rowid ASC`)
}

// LastMessage returns the newest message, or nil when the history is
// empty.
func (s *Store) LastMessage(ctx context.Context) (*chat.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		ORDER BY timestamp DESC, rowid DESC LIMIT 1`)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// LastSummary returns the newest summary message, or nil when none
// exists.
func (s *Store) LastSummary(ctx context.Context) (*chat.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE is_summary = 1
		ORDER BY timestamp DESC, rowid DESC LIMIT 1`)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// MessagesAfterLastSummary returns the non-summary messages newer
// than the latest summary; with no summary yet, the whole non-summary
// history.
func (s *Store) MessagesAfterLastSummary(ctx context.Context) ([]*chat.Message, error) {
	return s.queryMessages(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE timestamp > COALESCE(
			(SELECT MAX(timestamp) FROM messages WHERE is_summary = 1), 0)
		AND is_summary = 0
		ORDER BY timestamp ASC, rowid ASC`)
}

// UnsummarizedMessages returns user and assistant messages not yet
// absorbed by any summary.
func (s *Store) UnsummarizedMessages(ctx context.Context) ([]*chat.Message, error) {
	return s.queryMessages(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE is_summary = 0 AND covered_by_summary_id IS NULL
		ORDER BY timestamp ASC, rowid ASC`)
}

// ContextForRequest assembles the provider context: the most recent
// summary (when one exists) followed by every later non-summary
// message.
func (s *Store) ContextForRequest(ctx context.Context) ([]*chat.Message, error) {
	summary, err := s.LastSummary(ctx)
	if err != nil {
		return nil, err
	}

	tail, err := s.MessagesAfterLastSummary(ctx)
	if err != nil {
		return nil, err
	}

	if summary == nil {
		return tail, nil
	}
	return append([]*chat.Message{summary}, tail...), nil
}

// SaveSummary inserts the summary and marks the messages it covers,
// atomically. A crash can never leave messages marked covered by a
// summary that was not stored.
func (s *Store) SaveSummary(ctx context.Context, summary *chat.Message, coveredIDs []string) error {
	structured, metadata, err := encodeJSONColumns(summary)
	if err != nil {
		return err
	}

	var sumCount, sumIn, sumOut sql.NullInt64
	if summary.Summarization != nil {
		sumCount = sql.NullInt64{Int64: int64(summary.Summarization.MessageCount), Valid: true}
		sumIn = sql.NullInt64{Int64: int64(summary.Summarization.InputTokens), Valid: true}
		sumOut = sql.NullInt64{Int64: int64(summary.Summarization.OutputTokens), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, role, content, display_content, timestamp, structured, metadata,
			summary_msg_count, summary_input_tokens, summary_output_tokens, is_summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		summary.ID, string(summary.Role), summary.Content, summary.DisplayContent,
		summary.Timestamp, structured, metadata, sumCount, sumIn, sumOut,
	); err != nil {
		return fmt.Errorf("failed to insert summary: %w", err)
	}

	for _, id := range coveredIDs {
		if _, err := tx.ExecContext(ctx, `
			UPDATE messages SET covered_by_summary_id = ? WHERE id = ?`,
			summary.ID, id,
		); err != nil {
			return fmt.Errorf("failed to mark message %s covered: %w", id, err)
		}
	}

	return tx.Commit()
}

// DeleteAllMessages clears the conversation history.
func (s *Store) DeleteAllMessages(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages`)
	return err
}

// CountByRole counts non-summary messages with the given role.
func (s *Store) CountByRole(ctx context.Context, role chat.Role) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages WHERE role = ? AND is_summary = 0`,
		string(role)).Scan(&count)
	return count, err
}

// HasUnansweredUserMessage reports whether the newest non-summary
// message is from the user, i.e. a response is still owed.
func (s *Store) HasUnansweredUserMessage(ctx context.Context) (bool, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT role FROM messages WHERE is_summary = 0
		ORDER BY timestamp DESC, rowid DESC LIMIT 1`).Scan(&role)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return chat.ParseRole(role) == chat.RoleUser, nil
}

// CreateReminder stores a new reminder.
func (s *Store) CreateReminder(ctx context.Context, text string, at time.Time) (*chat.Reminder, error) {
	r := &chat.Reminder{
		ID:        uuid.NewString(),
		Text:      text,
		At:        at,
		CreatedAt: time.Now(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (id, text, remind_at, done, created_at)
		VALUES (?, ?, ?, 0, ?)`,
		r.ID, r.Text, r.At.UnixMilli(), r.CreatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}
	return r, nil
}

// PendingReminders lists reminders not yet done, soonest first.
func (s *Store) PendingReminders(ctx context.Context) ([]*chat.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, remind_at, done, created_at FROM reminders
		WHERE done = 0 ORDER BY remind_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*chat.Reminder
	for rows.Next() {
		var r chat.Reminder
		var at, created int64
		if err := rows.Scan(&r.ID, &r.Text, &at, &r.Done, &created); err != nil {
			return nil, err
		}
		r.At = time.UnixMilli(at)
		r.CreatedAt = time.UnixMilli(created)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// CancelReminder marks a reminder done.
func (s *Store) CancelReminder(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE reminders SET done = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("reminder %s not found", id)
	}
	return nil
}
