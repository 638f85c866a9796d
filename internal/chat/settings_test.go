package chat

import "testing"

func TestParseProviderFallback(t *testing.T) {
	tests := []struct {
		in   string
		want Provider
	}{
		{"DEEPSEEK", ProviderDeepSeek},
		{"OPENAI", ProviderOpenAI},
		{"HUGGINGFACE", ProviderHuggingFace},
		{"GEMINI", ProviderDeepSeek},
		{"", ProviderDeepSeek},
	}

	for _, tt := range tests {
		if got := ParseProvider(tt.in); got != tt.want {
			t.Errorf("ParseProvider(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseModelFallback(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		provider Provider
		want     Model
	}{
		{"known deepseek model", "DEEPSEEK_REASONER", ProviderDeepSeek, ModelDeepSeekReasoner},
		{"known openai model", "GPT_4O", ProviderOpenAI, ModelGPT4o},
		{"unknown name", "GPT_5", ProviderOpenAI, ModelGPT4oMini},
		{"model from another provider", "GPT_4O", ProviderDeepSeek, ModelDeepSeekChat},
		{"empty name", "", ProviderHuggingFace, ModelLlama3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseModel(tt.in, tt.provider); got != tt.want {
				t.Errorf("ParseModel(%q, %v) = %v, want %v", tt.in, tt.provider, got, tt.want)
			}
		})
	}
}

func TestParseEnumFallbacks(t *testing.T) {
	if got := ParseCommunicationStyle("FORMAL"); got != StyleGeneral {
		t.Errorf("ParseCommunicationStyle fallback = %v, want %v", got, StyleGeneral)
	}
	if got := ParseResponseFormat("YAML"); got != FormatText {
		t.Errorf("ParseResponseFormat fallback = %v, want %v", got, FormatText)
	}
	if got := ParseResponseFormat("XML"); got != FormatXML {
		t.Errorf("ParseResponseFormat(XML) = %v, want %v", got, FormatXML)
	}
	if got := ParseSendMessageMode("CTRL_ENTER"); got != SendOnEnter {
		t.Errorf("ParseSendMessageMode fallback = %v, want %v", got, SendOnEnter)
	}
	if got := ParseSystemPromptMode("weird"); got != SystemPromptDefault {
		t.Errorf("ParseSystemPromptMode fallback = %v, want %v", got, SystemPromptDefault)
	}
	if got := ParseRole("tool"); got != RoleUser {
		t.Errorf("ParseRole fallback = %v, want %v", got, RoleUser)
	}
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if s.Provider != ProviderDeepSeek {
		t.Errorf("default provider = %v, want %v", s.Provider, ProviderDeepSeek)
	}
	if s.Model != ModelDeepSeekChat {
		t.Errorf("default model = %v, want %v", s.Model, ModelDeepSeekChat)
	}
	if !s.Summarization.Enabled {
		t.Error("summarization should be enabled by default")
	}
	if s.Summarization.MessageThreshold != 10 || s.Summarization.TokenThreshold != 10000 {
		t.Errorf("unexpected summarization thresholds: %+v", s.Summarization)
	}
}

func TestModelsFor(t *testing.T) {
	for _, p := range []Provider{ProviderDeepSeek, ProviderOpenAI, ProviderHuggingFace} {
		models := ModelsFor(p)
		if len(models) == 0 {
			t.Errorf("no models for %v", p)
		}
		for _, m := range models {
			if m.Provider != p {
				t.Errorf("ModelsFor(%v) returned model of %v", p, m.Provider)
			}
		}
	}
}
