package images

import (
	"reflect"
	"testing"
)

const samplePNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="

func TestDiscoverFindsHTTPAndBase64Refs(t *testing.T) {
	html := `<html><body>
<img src="https://example.com/a.png" alt="a">
<img src='http://example.com/b.jpg'>
<img src="data:image/png;base64,` + samplePNG + `">
</body></html>`

	d := Discover(html)
	wantHTTP := []string{"https://example.com/a.png", "http://example.com/b.jpg"}
	if !reflect.DeepEqual(d.HTTPRefs, wantHTTP) {
		t.Fatalf("HTTPRefs = %v, want %v", d.HTTPRefs, wantHTTP)
	}
	wantB64 := []string{"data:image/png;base64," + samplePNG}
	if !reflect.DeepEqual(d.Base64Refs, wantB64) {
		t.Fatalf("Base64Refs = %v, want %v", d.Base64Refs, wantB64)
	}
	if d.Total() != 3 {
		t.Fatalf("Total() = %d, want 3", d.Total())
	}
}

func TestDiscoverDeduplicatesOverlappingBase64Matches(t *testing.T) {
	// The tag-scoped and free-standing patterns both match an inline img
	// src; the payload must be recorded once.
	html := `<img src="data:image/png;base64,` + samplePNG + `">`
	d := Discover(html)
	if len(d.Base64Refs) != 1 {
		t.Fatalf("expected 1 deduplicated base64 ref, got %d", len(d.Base64Refs))
	}

	// A free-standing data URL outside an img tag is still discovered.
	html = `<div style="background:url(data:image/gif;base64,R0lGODlhAQABAAAAACw=)"></div>`
	d = Discover(html)
	if len(d.Base64Refs) != 1 {
		t.Fatalf("expected free-standing base64 ref, got %d", len(d.Base64Refs))
	}
}

func TestDiscoverIsIdempotent(t *testing.T) {
	html := `<img src="https://example.com/a.png"><img src="data:image/png;base64,` + samplePNG + `">` +
		`<p>data:image/png;base64,` + samplePNG + `</p>`

	first := Discover(html)
	second := Discover(html)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Discover not idempotent: %v vs %v", first, second)
	}
	if len(first.Base64Refs) != 1 {
		t.Fatalf("same payload under both patterns should dedupe to 1, got %d", len(first.Base64Refs))
	}
}

func TestDiscoverEmptyHTML(t *testing.T) {
	d := Discover("<html><body><p>no images here</p></body></html>")
	if d.Total() != 0 {
		t.Fatalf("Total() = %d, want 0", d.Total())
	}
}

func TestContainsBase64(t *testing.T) {
	if !ContainsBase64(`<img src="data:image/png;base64,` + samplePNG + `">`) {
		t.Fatal("expected base64 to be detected")
	}
	if ContainsBase64(`<img src="https://example.com/a.png">`) {
		t.Fatal("expected no base64 in plain HTML")
	}
}
