package images

import "regexp"

// Ref kinds recorded in the relocation manifest.
const (
	KindHTTP   = "http"
	KindBase64 = "base64"
)

var (
	httpImgRe = regexp.MustCompile(`(?i)<img[^>]+src=["'](https?://[^"']+)["']`)

	// Two overlapping base64 patterns: one scoped to img tags, one
	// free-standing. The same payload can match both, so discovery
	// deduplicates by the exact data-URL string.
	base64ImgTagRe = regexp.MustCompile(`(?i)<img[^>]+src=["'](data:image/[^;"']+;base64,[A-Za-z0-9+/=]+)["']`)
	base64FreeRe   = regexp.MustCompile(`data:image/[A-Za-z0-9.+-]+;base64,[A-Za-z0-9+/=]+`)
)

// Discovery is the set of image references found in one HTML document,
// in document order.
type Discovery struct {
	HTTPRefs   []string
	Base64Refs []string
}

// Total returns the number of discovered references of both kinds.
func (d Discovery) Total() int {
	return len(d.HTTPRefs) + len(d.Base64Refs)
}

// Discover scans HTML for HTTP(S) image references and inline base64 image
// data URLs. The two scans are independent; running Discover twice on the
// same input yields the same reference sets.
func Discover(html string) Discovery {
	var d Discovery

	for _, m := range httpImgRe.FindAllStringSubmatch(html, -1) {
		d.HTTPRefs = append(d.HTTPRefs, m[1])
	}

	seen := make(map[string]struct{})
	appendRef := func(ref string) {
		if _, ok := seen[ref]; ok {
			return
		}
		seen[ref] = struct{}{}
		d.Base64Refs = append(d.Base64Refs, ref)
	}
	for _, m := range base64ImgTagRe.FindAllStringSubmatch(html, -1) {
		appendRef(m[1])
	}
	for _, ref := range base64FreeRe.FindAllString(html, -1) {
		appendRef(ref)
	}

	return d
}

// ContainsBase64 reports whether any base64 image data URL remains in the
// HTML. Used after rewriting to detect relocation misses.
func ContainsBase64(html string) bool {
	return base64FreeRe.MatchString(html)
}
