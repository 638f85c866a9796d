package chat

// Provider identifies an LLM backend.
type Provider string

const (
	ProviderDeepSeek    Provider = "DEEPSEEK"
	ProviderOpenAI      Provider = "OPENAI"
	ProviderHuggingFace Provider = "HUGGINGFACE"
)

// ParseProvider maps a stored provider name to a Provider, falling
// back to DeepSeek for anything it does not recognize.
func ParseProvider(s string) Provider {
	switch Provider(s) {
	case ProviderDeepSeek, ProviderOpenAI, ProviderHuggingFace:
		return Provider(s)
	default:
		return ProviderDeepSeek
	}
}

// Model pairs a stable identifier with the name the provider's API
// expects and the provider it belongs to.
type Model struct {
	Name     string
	APIName  string
	Provider Provider
}

var (
	ModelDeepSeekChat     = Model{"DEEPSEEK_CHAT", "deepseek-chat", ProviderDeepSeek}
	ModelDeepSeekReasoner = Model{"DEEPSEEK_REASONER", "deepseek-reasoner", ProviderDeepSeek}
	ModelGPT4o            = Model{"GPT_4O", "gpt-4o", ProviderOpenAI}
	ModelGPT4oMini        = Model{"GPT_4O_MINI", "gpt-4o-mini", ProviderOpenAI}
	ModelO1Preview        = Model{"O1_PREVIEW", "o1-preview", ProviderOpenAI}
	ModelO1Mini           = Model{"O1_MINI", "o1-mini", ProviderOpenAI}
	ModelLlama3           = Model{"LLAMA_3_8B", "meta-llama/Meta-Llama-3-8B-Instruct", ProviderHuggingFace}
	ModelMistral7B        = Model{"MISTRAL_7B", "mistralai/Mistral-7B-Instruct-v0.3", ProviderHuggingFace}
)

var allModels = []Model{
	ModelDeepSeekChat, ModelDeepSeekReasoner,
	ModelGPT4o, ModelGPT4oMini, ModelO1Preview, ModelO1Mini,
	ModelLlama3, ModelMistral7B,
}

// DefaultModel returns the model used when a provider has no explicit
// model selected or the stored one is unknown.
func DefaultModel(p Provider) Model {
	switch p {
	case ProviderOpenAI:
		return ModelGPT4oMini
	case ProviderHuggingFace:
		return ModelLlama3
	default:
		return ModelDeepSeekChat
	}
}

// ParseModel resolves a stored model name, constrained to the given
// provider. Unknown or mismatched names fall back to the provider's
// default model.
func ParseModel(name string, p Provider) Model {
	for _, m := range allModels {
		if m.Name == name && m.Provider == p {
			return m
		}
	}
	return DefaultModel(p)
}

// ModelsFor lists the selectable models of a provider.
func ModelsFor(p Provider) []Model {
	var out []Model
	for _, m := range allModels {
		if m.Provider == p {
			out = append(out, m)
		}
	}
	return out
}

// CommunicationStyle steers the tone of the system prompt.
type CommunicationStyle string

const (
	StyleGeneral       CommunicationStyle = "GENERAL"
	StyleWithQuestions CommunicationStyle = "WITH_QUESTIONS"
)

func ParseCommunicationStyle(s string) CommunicationStyle {
	switch CommunicationStyle(s) {
	case StyleGeneral, StyleWithQuestions:
		return CommunicationStyle(s)
	default:
		return StyleGeneral
	}
}

// ResponseFormat selects how assistant responses are decoded.
type ResponseFormat string

const (
	FormatText ResponseFormat = "TEXT"
	FormatJSON ResponseFormat = "JSON"
	FormatXML  ResponseFormat = "XML"
)

func ParseResponseFormat(s string) ResponseFormat {
	switch ResponseFormat(s) {
	case FormatText, FormatJSON, FormatXML:
		return ResponseFormat(s)
	default:
		return FormatText
	}
}

// SendMessageMode controls which key submits input in interactive UIs.
type SendMessageMode string

const (
	SendOnEnter      SendMessageMode = "ENTER"
	SendOnShiftEnter SendMessageMode = "SHIFT_ENTER"
)

func ParseSendMessageMode(s string) SendMessageMode {
	switch SendMessageMode(s) {
	case SendOnEnter, SendOnShiftEnter:
		return SendMessageMode(s)
	default:
		return SendOnEnter
	}
}

// SystemPromptMode selects between the built-in system prompt and a
// user-supplied one.
type SystemPromptMode string

const (
	SystemPromptDefault SystemPromptMode = "DEFAULT"
	SystemPromptCustom  SystemPromptMode = "CUSTOM"
)

func ParseSystemPromptMode(s string) SystemPromptMode {
	switch SystemPromptMode(s) {
	case SystemPromptDefault, SystemPromptCustom:
		return SystemPromptMode(s)
	default:
		return SystemPromptDefault
	}
}

// SummarizationSettings gates automatic history compaction. The two
// thresholds are OR-combined: crossing either one triggers a pass.
type SummarizationSettings struct {
	Enabled          bool
	MessageThreshold int
	TokenThreshold   int
}

// Settings is the full per-conversation configuration.
type Settings struct {
	Provider             Provider
	Model                Model
	CommunicationStyle   CommunicationStyle
	DeepThinking         bool
	ResponseFormat       ResponseFormat
	SendMessageMode      SendMessageMode
	SystemPromptMode     SystemPromptMode
	CustomSystemPrompt   string
	Temperature          float64
	Summarization        SummarizationSettings
	WeatherToolsEnabled  bool
	ReminderToolsEnabled bool
	MCPServerURL         string
}

// DefaultSettings returns the configuration a fresh conversation
// starts with.
func DefaultSettings() Settings {
	return Settings{
		Provider:           ProviderDeepSeek,
		Model:              ModelDeepSeekChat,
		CommunicationStyle: StyleGeneral,
		ResponseFormat:     FormatText,
		SendMessageMode:    SendOnEnter,
		SystemPromptMode:   SystemPromptDefault,
		Temperature:        1.0,
		Summarization: SummarizationSettings{
			Enabled:          true,
			MessageThreshold: 10,
			TokenThreshold:   10000,
		},
	}
}
