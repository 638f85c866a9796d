package llm

import (
	"testing"

	"github.com/olgaz/aichat/internal/chat"
	"github.com/olgaz/aichat/internal/config"
)

func testGateway() *Gateway {
	cfg := config.DefaultConfig()
	cfg.DeepSeek.APIKey = "ds-key"
	cfg.OpenAI.APIKey = "oa-key"
	cfg.HuggingFace.APIKey = "hf-key"
	return NewGateway(cfg)
}

func TestActualModelDeepThinking(t *testing.T) {
	g := testGateway()

	tests := []struct {
		name     string
		settings chat.Settings
		want     chat.Model
	}{
		{
			name:     "deepseek upgrades to reasoner",
			settings: chat.Settings{Provider: chat.ProviderDeepSeek, Model: chat.ModelDeepSeekChat, DeepThinking: true},
			want:     chat.ModelDeepSeekReasoner,
		},
		{
			name:     "openai switches to gpt-4o-mini",
			settings: chat.Settings{Provider: chat.ProviderOpenAI, Model: chat.ModelGPT4o, DeepThinking: true},
			want:     chat.ModelGPT4oMini,
		},
		{
			name:     "huggingface keeps the selected model",
			settings: chat.Settings{Provider: chat.ProviderHuggingFace, Model: chat.ModelMistral7B, DeepThinking: true},
			want:     chat.ModelMistral7B,
		},
		{
			name:     "disabled leaves model alone",
			settings: chat.Settings{Provider: chat.ProviderDeepSeek, Model: chat.ModelDeepSeekChat},
			want:     chat.ModelDeepSeekChat,
		},
		{
			name:     "provider mismatch falls back to provider default",
			settings: chat.Settings{Provider: chat.ProviderOpenAI, Model: chat.ModelDeepSeekChat},
			want:     chat.ModelGPT4oMini,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.ActualModel(tt.settings); got != tt.want {
				t.Errorf("ActualModel = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClientForSelectsModel(t *testing.T) {
	g := testGateway()

	client, err := g.ClientFor(chat.Settings{
		Provider:     chat.ProviderDeepSeek,
		Model:        chat.ModelDeepSeekChat,
		DeepThinking: true,
	})
	if err != nil {
		t.Fatalf("ClientFor: %v", err)
	}
	if client.ModelName() != "deepseek-reasoner" {
		t.Errorf("ModelName = %q, want deepseek-reasoner", client.ModelName())
	}
}

func TestClientForMissingKey(t *testing.T) {
	g := NewGateway(config.DefaultConfig())

	if _, err := g.ClientFor(chat.Settings{Provider: chat.ProviderOpenAI, Model: chat.ModelGPT4o}); err == nil {
		t.Error("expected error when API key is not configured")
	}
}
