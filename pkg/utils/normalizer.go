package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TextNormalizer provides convenient string normalization methods.
// Chained transformers carry buffer state across calls, so each Normalize
// builds its own chain; a single TextNormalizer is safe for concurrent use.
type TextNormalizer struct{}

// NewTextNormalizer creates a new TextNormalizer.
func NewTextNormalizer() *TextNormalizer {
	return &TextNormalizer{}
}

// newChain builds a fresh transformer chain for one normalization pass.
func newChain() transform.Transformer {
	return transform.Chain(
		norm.NFKD,                          // Decompose with compatibility decomposition
		runes.Remove(runes.In(unicode.Mn)), // Remove non-spacing marks
		runes.Map(unicode.ToLower),         // Convert to lowercase before normalization
		norm.NFKC,                          // Normalize with compatibility composition
	)
}

// Normalize cleans up text using the normalizer.
// Returns empty string if normalization fails or input is empty.
func (n *TextNormalizer) Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = CompressAllWhitespace(s)
	if s == "" {
		return ""
	}

	result, _, err := transform.String(newChain(), s)
	if err != nil || result == "" {
		return ""
	}

	return result
}

// ContainsWord reports whether word appears in s as a whole word after
// normalization. A match is only counted when the keyword is bounded by
// non-letter, non-digit runes, so "her" never matches inside "here".
func (n *TextNormalizer) ContainsWord(s, word string) bool {
	if s == "" || word == "" {
		return false
	}

	normalizedS := n.Normalize(s)
	normalizedWord := n.Normalize(word)

	if normalizedS == "" || normalizedWord == "" {
		normalizedS = strings.ToLower(s)
		normalizedWord = strings.ToLower(word)
	}

	for start := 0; ; {
		idx := strings.Index(normalizedS[start:], normalizedWord)
		if idx < 0 {
			return false
		}

		idx += start
		end := idx + len(normalizedWord)

		if isWordBoundary(normalizedS, idx, end) {
			return true
		}

		start = idx + 1
		if start >= len(normalizedS) {
			return false
		}
	}
}

// isWordBoundary checks that the match at [start, end) is not embedded
// inside a longer alphanumeric word.
func isWordBoundary(s string, start, end int) bool {
	if start > 0 {
		prev, _ := utf8.DecodeLastRuneInString(s[:start])
		if unicode.IsLetter(prev) || unicode.IsDigit(prev) {
			return false
		}
	}

	if end < len(s) {
		next, _ := utf8.DecodeRuneInString(s[end:])
		if unicode.IsLetter(next) || unicode.IsDigit(next) {
			return false
		}
	}

	return true
}
