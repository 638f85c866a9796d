package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/olgaz/aichat/internal/chat"
)

// Decode turns a raw provider response into display text plus, for
// structured formats, the parsed payload. Decoding never fails: when
// the payload is malformed or missing its required field, the raw
// text is shown as-is and no structured data is attached.
func Decode(raw string, format chat.ResponseFormat) (string, *chat.StructuredData) {
	switch format {
	case chat.FormatJSON:
		return decodeJSON(raw)
	case chat.FormatXML:
		return decodeXML(raw)
	default:
		return raw, nil
	}
}

// jsonPayload mirrors the response schema the JSON system prompt asks
// the model to produce.
type jsonPayload struct {
	Datetime string   `json:"datetime"`
	Topic    string   `json:"topic"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Tags     []string `json:"tags"`
	Links    []string `json:"links"`
	Language string   `json:"language"`
}

func decodeJSON(raw string) (string, *chat.StructuredData) {
	cleaned := CleanFencedResponse(raw, "json")

	var payload jsonPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil || payload.Answer == "" {
		return raw, nil
	}

	return payload.Answer, &chat.StructuredData{
		Datetime: payload.Datetime,
		Topic:    payload.Topic,
		Question: payload.Question,
		Answer:   payload.Answer,
		Tags:     payload.Tags,
		Links:    payload.Links,
		Language: defaultLanguage(payload.Language),
		Raw:      raw,
		Format:   chat.FormatJSON,
	}
}

func decodeXML(raw string) (string, *chat.StructuredData) {
	cleaned := CleanFencedResponse(raw, "xml")

	answer := extractXMLTag(cleaned, "answer")
	if answer == "" {
		return raw, nil
	}

	return answer, &chat.StructuredData{
		Datetime: extractXMLTag(cleaned, "datetime"),
		Topic:    extractXMLTag(cleaned, "topic"),
		Question: extractXMLTag(cleaned, "question"),
		Answer:   answer,
		Tags:     extractXMLTags(cleaned, "tag"),
		Links:    extractXMLTags(cleaned, "link"),
		Language: defaultLanguage(extractXMLTag(cleaned, "language")),
		Raw:      raw,
		Format:   chat.FormatXML,
	}
}

func defaultLanguage(lang string) string {
	if strings.TrimSpace(lang) == "" {
		return "ru"
	}
	return lang
}

// CleanFencedResponse strips a Markdown code fence wrapping the whole
// response. Models add these despite instructions not to. The lang
// argument names the expected fence label ("json", "xml"); a bare
// fence is stripped too. Already-clean input comes back unchanged, so
// the operation is idempotent.
func CleanFencedResponse(response, lang string) string {
	cleaned := strings.TrimSpace(response)

	if strings.HasPrefix(cleaned, "```"+lang) {
		cleaned = strings.TrimPrefix(cleaned, "```"+lang)
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")

	return strings.TrimSpace(cleaned)
}

// XML extraction is regex-based because provider output is rarely
// well-formed enough for a strict parser; the dot matches newlines so
// multi-line answers survive.

func extractXMLTag(s, tag string) string {
	re := regexp.MustCompile(`(?s)<` + tag + `>(.*?)</` + tag + `>`)
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func extractXMLTags(s, tag string) []string {
	re := regexp.MustCompile(`(?s)<` + tag + `>(.*?)</` + tag + `>`)
	var out []string
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		if v := strings.TrimSpace(m[1]); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// TruncateForLog shortens provider payloads for log lines.
func TruncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
