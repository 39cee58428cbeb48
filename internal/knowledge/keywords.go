package knowledge

import "strings"

const (
	minKeywordLength = 4
	maxKeywords      = 15
)

// ExtractKeywords derives simple search keywords from cleaned text: the
// first distinct lowercase words longer than three characters, in order
// of appearance.
func ExtractKeywords(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()[]{}<>")
		if len([]rune(word)) < minKeywordLength {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		out = append(out, word)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}
