package extract

import (
	"regexp"
	"strings"
)

const (
	// MaxTextChars caps extracted plain text stored with a knowledge entry.
	MaxTextChars = 8000
	// MaxEmbedChars caps the text submitted to the embedding service.
	MaxEmbedChars = 4000
	// MaxContentBytes caps HTML content persisted to the database.
	MaxContentBytes = 1 << 20
	// TruncationMarker is appended to HTML cut at MaxContentBytes.
	TruncationMarker = "<!-- content truncated -->"
)

var (
	scriptRe     = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	styleRe      = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	tagRe        = regexp.MustCompile(`(?s)<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&amp;", "&",
)

// Text strips markup from HTML and returns plain text capped at MaxTextChars.
// Script and style blocks are removed wholesale before tag stripping so their
// bodies never leak into the text.
func Text(html string) string {
	cleaned := scriptRe.ReplaceAllString(html, " ")
	cleaned = styleRe.ReplaceAllString(cleaned, " ")
	cleaned = tagRe.ReplaceAllString(cleaned, " ")
	cleaned = entityReplacer.Replace(cleaned)
	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)
	return CapChars(cleaned, MaxTextChars)
}

// EmbeddingInput returns the text payload submitted for embedding generation.
func EmbeddingInput(text string) string {
	return CapChars(text, MaxEmbedChars)
}

// CapChars truncates s to at most limit characters (runes, not bytes).
func CapChars(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// CapContent enforces the persistence ceiling on HTML content. Oversized
// content is cut at MaxContentBytes and a visible truncation marker appended.
func CapContent(html string) (string, bool) {
	if len(html) <= MaxContentBytes {
		return html, false
	}
	return html[:MaxContentBytes] + TruncationMarker, true
}

// Preview returns the first n characters of text for metadata display.
func Preview(text string, n int) string {
	return CapChars(text, n)
}
