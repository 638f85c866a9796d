package llm

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizeToolCallIDs ensures every tool call has a stable identifier.
// Some backends occasionally omit call IDs, which breaks follow-up
// requests that require tool_call_id on tool messages.
func NormalizeToolCallIDs(toolCalls []map[string]interface{}) []map[string]interface{} {
	for i, tc := range toolCalls {
		if tc == nil {
			continue
		}

		id := firstNonEmptyString(tc["id"], tc["call_id"])
		if strings.TrimSpace(id) == "" {
			if fn, ok := tc["function"].(map[string]interface{}); ok {
				if name := sanitizeToolName(fn["name"]); name != "" {
					id = fmt.Sprintf("call_%s_%d", name, i+1)
				}
			}
		}
		if strings.TrimSpace(id) == "" {
			id = fmt.Sprintf("call_%d", i+1)
		}

		tc["id"] = id
	}
	return toolCalls
}

// ParseToolCall extracts the call ID, function name and raw argument
// JSON from a provider tool call. Arguments default to "{}" when
// absent.
func ParseToolCall(tc map[string]interface{}) (id, name, argsJSON string) {
	if tc == nil {
		return "", "", "{}"
	}

	id = firstNonEmptyString(tc["id"], tc["call_id"])
	argsJSON = "{}"

	if fn, ok := tc["function"].(map[string]interface{}); ok {
		name, _ = fn["name"].(string)
		if raw, ok := fn["arguments"].(string); ok && strings.TrimSpace(raw) != "" {
			argsJSON = raw
		}
	}

	return id, strings.TrimSpace(name), argsJSON
}

func firstNonEmptyString(values ...interface{}) string {
	for _, v := range values {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func sanitizeToolName(raw interface{}) string {
	name, _ := raw.(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
