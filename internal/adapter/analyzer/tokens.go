package analyzer

import (
	"strings"
	"unicode"
)

// CountTokens returns an approximate token count for LLM budget estimation.
// An average English word is about 1.3 tokens; punctuation-heavy text is
// bounded below by one token per four bytes.
func CountTokens(text string) int {
	words := splitWords(text)
	if len(words) == 0 {
		return 0
	}
	byWords := int(float64(len(words)) * 1.3)
	byChars := len(text) / 4
	return max(byWords, byChars)
}

// splitWords splits text into words using unicode word boundaries.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
		} else {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}
