package history

import (
	"context"
	"database/sql"

	"github.com/olgaz/aichat/internal/chat"
)

// LoadSettings reads the settings singleton. A missing row or
// unknown enum values degrade to defaults instead of failing, so a
// database written by a newer version still loads.
func (s *Store) LoadSettings(ctx context.Context) (chat.Settings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT provider, model, communication_style, deep_thinking, response_format,
			send_message_mode, system_prompt_mode, custom_system_prompt, temperature,
			summarization_enabled, summarization_message_threshold, summarization_token_threshold,
			weather_tools_enabled, reminder_tools_enabled, mcp_server_url
		FROM settings WHERE id = 1`)

	var provider, model, style, format, sendMode, promptMode, customPrompt, mcpURL string
	var deepThinking, sumEnabled, weatherEnabled, reminderEnabled bool
	var temperature float64
	var msgThreshold, tokenThreshold int

	err := row.Scan(
		&provider, &model, &style, &deepThinking, &format,
		&sendMode, &promptMode, &customPrompt, &temperature,
		&sumEnabled, &msgThreshold, &tokenThreshold,
		&weatherEnabled, &reminderEnabled, &mcpURL,
	)
	if err == sql.ErrNoRows {
		return chat.DefaultSettings(), nil
	}
	if err != nil {
		return chat.DefaultSettings(), err
	}

	p := chat.ParseProvider(provider)
	settings := chat.Settings{
		Provider:           p,
		Model:              chat.ParseModel(model, p),
		CommunicationStyle: chat.ParseCommunicationStyle(style),
		DeepThinking:       deepThinking,
		ResponseFormat:     chat.ParseResponseFormat(format),
		SendMessageMode:    chat.ParseSendMessageMode(sendMode),
		SystemPromptMode:   chat.ParseSystemPromptMode(promptMode),
		CustomSystemPrompt: customPrompt,
		Temperature:        temperature,
		Summarization: chat.SummarizationSettings{
			Enabled:          sumEnabled,
			MessageThreshold: msgThreshold,
			TokenThreshold:   tokenThreshold,
		},
		WeatherToolsEnabled:  weatherEnabled,
		ReminderToolsEnabled: reminderEnabled,
		MCPServerURL:         mcpURL,
	}

	if settings.Summarization.MessageThreshold <= 0 {
		settings.Summarization.MessageThreshold = 10
	}
	if settings.Summarization.TokenThreshold <= 0 {
		settings.Summarization.TokenThreshold = 10000
	}

	return settings, nil
}

// SaveSettings upserts the settings singleton.
func (s *Store) SaveSettings(ctx context.Context, settings chat.Settings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO settings (
			id, provider, model, communication_style, deep_thinking, response_format,
			send_message_mode, system_prompt_mode, custom_system_prompt, temperature,
			summarization_enabled, summarization_message_threshold, summarization_token_threshold,
			weather_tools_enabled, reminder_tools_enabled, mcp_server_url
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(settings.Provider), settings.Model.Name, string(settings.CommunicationStyle),
		settings.DeepThinking, string(settings.ResponseFormat), string(settings.SendMessageMode),
		string(settings.SystemPromptMode), settings.CustomSystemPrompt, settings.Temperature,
		settings.Summarization.Enabled, settings.Summarization.MessageThreshold,
		settings.Summarization.TokenThreshold, settings.WeatherToolsEnabled,
		settings.ReminderToolsEnabled, settings.MCPServerURL,
	)
	return err
}
