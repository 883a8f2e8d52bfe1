package rules

import (
	"github.com/modryx/warden/pkg/utils"
)

// keywordMatcher performs whole-word, case-insensitive keyword scans over
// normalized profile text. Safe for concurrent use; notification handling
// evaluates from multiple goroutines through one shared engine.
type keywordMatcher struct {
	normalizer *utils.TextNormalizer
}

func newKeywordMatcher() *keywordMatcher {
	return &keywordMatcher{normalizer: utils.NewTextNormalizer()}
}

// firstMatch returns the first keyword from the list that appears in text
// as a whole word, or empty string when none match. Keywords are scanned
// in configured order so the reported match is deterministic.
func (m *keywordMatcher) firstMatch(text string, keywords []string) string {
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}

		if m.normalizer.ContainsWord(text, keyword) {
			return keyword
		}
	}

	return ""
}
