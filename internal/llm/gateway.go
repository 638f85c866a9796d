package llm

import (
	"fmt"
	"net/http"
	"time"

	"github.com/olgaz/aichat/internal/chat"
	"github.com/olgaz/aichat/internal/config"
)

// Default API roots per provider.
const (
	deepSeekBaseURL    = "https://api.deepseek.com/v1"
	openAIBaseURL      = "https://api.openai.com/v1"
	huggingFaceBaseURL = "https://router.huggingface.co/v1"
)

// Gateway builds provider clients from the active settings. Clients
// share one HTTP client so connection pools and the request timeout
// are common across providers.
type Gateway struct {
	cfg        *config.Config
	httpClient *http.Client
}

// NewGateway creates a gateway using the credentials and timeout from
// cfg.
func NewGateway(cfg *config.Config) *Gateway {
	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Gateway{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ActualModel resolves the model a request will really use. Deep
// thinking upgrades DeepSeek to its reasoner and downgrades OpenAI to
// gpt-4o-mini; Hugging Face keeps the user's model unchanged.
func (g *Gateway) ActualModel(settings chat.Settings) chat.Model {
	model := settings.Model
	if model.Provider != settings.Provider {
		model = chat.DefaultModel(settings.Provider)
	}
	if !settings.DeepThinking {
		return model
	}

	switch settings.Provider {
	case chat.ProviderDeepSeek:
		return chat.ModelDeepSeekReasoner
	case chat.ProviderOpenAI:
		return chat.ModelGPT4oMini
	default:
		return model
	}
}

// ClientFor returns a client for the provider and model selected by
// settings.
func (g *Gateway) ClientFor(settings chat.Settings) (Client, error) {
	model := g.ActualModel(settings)

	switch settings.Provider {
	case chat.ProviderDeepSeek:
		return g.newDeepSeekClient(model)
	case chat.ProviderOpenAI:
		return g.newOpenAIClient(model)
	case chat.ProviderHuggingFace:
		return g.newHuggingFaceClient(model)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", settings.Provider)
	}
}

func (g *Gateway) newDeepSeekClient(model chat.Model) (Client, error) {
	if g.cfg.DeepSeek.APIKey == "" {
		return nil, fmt.Errorf("DeepSeek API key is not configured")
	}
	return NewChatClient(g.cfg.DeepSeek.APIKey, baseURLOr(g.cfg.DeepSeek.BaseURL, deepSeekBaseURL), model.APIName, g.httpClient)
}

func (g *Gateway) newOpenAIClient(model chat.Model) (Client, error) {
	if g.cfg.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is not configured")
	}
	return NewChatClient(g.cfg.OpenAI.APIKey, baseURLOr(g.cfg.OpenAI.BaseURL, openAIBaseURL), model.APIName, g.httpClient)
}

func (g *Gateway) newHuggingFaceClient(model chat.Model) (Client, error) {
	if g.cfg.HuggingFace.APIKey == "" {
		return nil, fmt.Errorf("Hugging Face API key is not configured")
	}
	return NewChatClient(g.cfg.HuggingFace.APIKey, baseURLOr(g.cfg.HuggingFace.BaseURL, huggingFaceBaseURL), model.APIName, g.httpClient)
}

func baseURLOr(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
