// Package contextpack produces a single markdown snapshot of the project
// (file tree plus file contents) bounded by a token budget, suitable for
// pasting into an agent context window.
package contextpack

import (
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter counts tokens with the cl100k_base encoding, falling back
// to a character-based estimate (4 chars per token) when the codec is
// unavailable.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a token counter. Never fails: a codec error
// degrades to the character estimate.
func NewTokenCounter() *TokenCounter {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return &TokenCounter{}
	}
	return &TokenCounter{codec: codec}
}

// Count returns the number of tokens in text.
func (tc *TokenCounter) Count(text string) int {
	if tc.codec == nil {
		return len(text) / 4
	}

	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// Truncate cuts text down to roughly limit tokens. Approximate: truncation
// happens on character boundaries, proportionally with a safety margin.
func (tc *TokenCounter) Truncate(text string, limit int) string {
	current := tc.Count(text)
	if current <= limit {
		return text
	}

	ratio := float64(limit) / float64(current)
	charLimit := int(float64(len(text)) * ratio * 0.9)
	if charLimit >= len(text) {
		return text
	}

	// Back the cut off to a rune boundary so the snapshot stays valid UTF-8.
	for charLimit > 0 && !utf8.RuneStart(text[charLimit]) {
		charLimit--
	}
	return text[:charLimit]
}
