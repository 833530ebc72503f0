package chunker

import "strings"

// EstimateTokens approximates a token count at ~1.33 tokens per word.
// Used for reporting only; chunk boundaries are measured in characters.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
