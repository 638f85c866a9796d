package llm

import (
	"strings"

	"github.com/olgaz/aichat/internal/chat"
)

// SystemPrompt builds the system message for a conversation from the
// active settings: the response-format contract first, then the
// communication style. A custom prompt replaces both when set.
func SystemPrompt(settings chat.Settings) string {
	if settings.SystemPromptMode == chat.SystemPromptCustom &&
		strings.TrimSpace(settings.CustomSystemPrompt) != "" {
		return settings.CustomSystemPrompt
	}

	var b strings.Builder
	b.WriteString(formatPrompt(settings.ResponseFormat))
	b.WriteString("\n\n")
	b.WriteString(stylePrompt(settings.CommunicationStyle))
	return b.String()
}

func formatPrompt(format chat.ResponseFormat) string {
	switch format {
	case chat.FormatJSON:
		return jsonFormatPrompt
	case chat.FormatXML:
		return xmlFormatPrompt
	default:
		return textFormatPrompt
	}
}

func stylePrompt(style chat.CommunicationStyle) string {
	if style == chat.StyleWithQuestions {
		return withQuestionsStylePrompt
	}
	return generalStylePrompt
}

const textFormatPrompt = `You are a helpful assistant. Respond in plain text without any special formatting or markup.`

const jsonFormatPrompt = `You are a helpful assistant. Always respond with a single JSON object and nothing else. Do not wrap the JSON in Markdown code fences.

The object must have exactly these fields:
{
  "datetime": "response date and time, ISO 8601",
  "topic": "short topic of the conversation",
  "question": "the user's question, rephrased briefly",
  "answer": "your full answer to the user",
  "tags": ["up to five short keyword tags"],
  "links": ["relevant URLs, or an empty array"],
  "language": "two-letter language code of the answer"
}

The "answer" field is required and carries the text shown to the user.`

const xmlFormatPrompt = `You are a helpful assistant. Always respond with a single XML document and nothing else. Do not wrap the XML in Markdown code fences.

Use exactly this structure:
<response>
  <datetime>response date and time, ISO 8601</datetime>
  <topic>short topic of the conversation</topic>
  <question>the user's question, rephrased briefly</question>
  <answer>your full answer to the user</answer>
  <tags>
    <tag>keyword</tag>
  </tags>
  <links>
    <link>relevant URL</link>
  </links>
  <language>two-letter language code of the answer</language>
</response>

The <answer> element is required and carries the text shown to the user.`

const generalStylePrompt = `Communicate naturally and directly. Answer the user's question without unnecessary preamble. Match the language of the user's message.`

const withQuestionsStylePrompt = `Communicate naturally and directly. Match the language of the user's message. After answering, ask one short follow-up question that helps move the conversation forward.`
