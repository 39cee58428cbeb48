package images

import "strings"

// Rewrite replaces every successfully relocated original reference with its
// new public URL, globally across the document. Replacement is literal
// string substitution: a document may reference the same image multiple
// times and every occurrence must move. Skipped references are left intact.
func Rewrite(html string, manifest Manifest) (string, int) {
	replaced := 0
	for _, rel := range manifest.Relocated {
		if rel.Original == "" || rel.PublicURL == "" {
			continue
		}
		count := strings.Count(html, rel.Original)
		if count == 0 {
			continue
		}
		html = strings.ReplaceAll(html, rel.Original, rel.PublicURL)
		replaced += count
	}
	return html, replaced
}
