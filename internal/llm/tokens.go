package llm

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

// EstimateTokens counts the tokens of text with the model's encoding
// when available, falling back to cl100k_base and finally to a
// characters/4 heuristic. Used for messages that carry no provider
// usage report.
func EstimateTokens(modelID, text string) int {
	if text == "" {
		return 0
	}

	if enc, err := tiktoken.EncodingForModel(modelID); err == nil {
		return len(enc.Encode(text, nil, nil))
	}

	encoderOnce.Do(func() {
		encoder, _ = tiktoken.GetEncoding("cl100k_base")
	})
	if encoder != nil {
		return len(encoder.Encode(text, nil, nil))
	}

	// Rough heuristic: 1 token per 4 characters.
	return (utf8.RuneCountInString(text) + 3) / 4
}
