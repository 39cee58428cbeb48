package images

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"knowledge-backend/internal/shared/storage/object/local"
)

func newTestRelocator(t *testing.T) *Relocator {
	t.Helper()
	store := local.New(t.TempDir(), "http://files.test")
	r := NewRelocator(store)
	r.PaceDelay = 0
	r.now = func() time.Time { return time.Unix(1700000000, 0) }
	return r
}

func TestRelocateHTTPImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if got := req.Header.Get("User-Agent"); !strings.Contains(got, "image-relocator") {
			t.Errorf("missing descriptive user agent, got %q", got)
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	t.Cleanup(srv.Close)

	r := newTestRelocator(t)
	manifest := r.Relocate(context.Background(), "user-1", Discovery{HTTPRefs: []string{srv.URL + "/pic.png"}})

	if len(manifest.Skipped) != 0 {
		t.Fatalf("unexpected skips: %+v", manifest.Skipped)
	}
	if len(manifest.Relocated) != 1 {
		t.Fatalf("expected 1 relocated image, got %d", len(manifest.Relocated))
	}
	rel := manifest.Relocated[0]
	if rel.Kind != KindHTTP {
		t.Fatalf("Kind = %q", rel.Kind)
	}
	if rel.FileName != "img-0-1700000000.png" {
		t.Fatalf("FileName = %q", rel.FileName)
	}
	if !strings.HasPrefix(rel.PublicURL, "http://files.test/") {
		t.Fatalf("PublicURL = %q", rel.PublicURL)
	}
	if rel.SizeBytes != int64(len("png-bytes")) {
		t.Fatalf("SizeBytes = %d", rel.SizeBytes)
	}
}

func TestRelocateRejectsNonImageContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	t.Cleanup(srv.Close)

	r := newTestRelocator(t)
	manifest := r.Relocate(context.Background(), "user-1", Discovery{HTTPRefs: []string{srv.URL}})

	if len(manifest.Relocated) != 0 {
		t.Fatalf("expected no relocations, got %+v", manifest.Relocated)
	}
	if len(manifest.Skipped) != 1 {
		t.Fatalf("expected 1 skip, got %d", len(manifest.Skipped))
	}
	if !strings.Contains(manifest.Skipped[0].Reason, "content type") {
		t.Fatalf("skip reason = %q", manifest.Skipped[0].Reason)
	}
}

func TestRelocateRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.NotFound(w, req)
	}))
	t.Cleanup(srv.Close)

	r := newTestRelocator(t)
	manifest := r.Relocate(context.Background(), "user-1", Discovery{HTTPRefs: []string{srv.URL}})
	if len(manifest.Skipped) != 1 || !strings.Contains(manifest.Skipped[0].Reason, "status 404") {
		t.Fatalf("expected status skip, got %+v", manifest.Skipped)
	}
}

func TestRelocateSizeBoundary(t *testing.T) {
	const limit = 4096
	payload := make([]byte, limit+1)

	var serveLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload[:serveLen])
	}))
	t.Cleanup(srv.Close)

	r := newTestRelocator(t)
	r.MaxImageBytes = limit

	// Exactly at the cap: accepted.
	serveLen = limit
	manifest := r.Relocate(context.Background(), "user-1", Discovery{HTTPRefs: []string{srv.URL}})
	if len(manifest.Relocated) != 1 {
		t.Fatalf("image of exactly %d bytes should be accepted: %+v", limit, manifest.Skipped)
	}
	if manifest.Relocated[0].SizeBytes != limit {
		t.Fatalf("SizeBytes = %d, want %d", manifest.Relocated[0].SizeBytes, limit)
	}

	// One byte over: rejected.
	serveLen = limit + 1
	manifest = r.Relocate(context.Background(), "user-1", Discovery{HTTPRefs: []string{srv.URL}})
	if len(manifest.Skipped) != 1 || !strings.Contains(manifest.Skipped[0].Reason, "too large") {
		t.Fatalf("image of %d bytes should be rejected, got %+v", limit+1, manifest)
	}
}

func TestRelocateBase64Image(t *testing.T) {
	r := newTestRelocator(t)
	ref := "data:image/png;base64," + samplePNG

	manifest := r.Relocate(context.Background(), "user-1", Discovery{Base64Refs: []string{ref}})
	if len(manifest.Skipped) != 0 {
		t.Fatalf("unexpected skips: %+v", manifest.Skipped)
	}
	if len(manifest.Relocated) != 1 {
		t.Fatalf("expected 1 relocated image, got %d", len(manifest.Relocated))
	}
	rel := manifest.Relocated[0]
	if rel.Kind != KindBase64 {
		t.Fatalf("Kind = %q", rel.Kind)
	}
	if rel.FileName != "inline-0-1700000000.png" {
		t.Fatalf("FileName = %q", rel.FileName)
	}
	if rel.SizeBytes == 0 {
		t.Fatal("decoded payload should not be empty")
	}
}

func TestRelocateBase64InvalidPayloadSkipped(t *testing.T) {
	r := newTestRelocator(t)
	manifest := r.Relocate(context.Background(), "user-1", Discovery{Base64Refs: []string{"data:image/png;base64,%%%not-base64%%%"}})
	if len(manifest.Skipped) != 1 {
		t.Fatalf("expected 1 skip, got %+v", manifest)
	}
}

func TestRelocateManifestCoversEveryReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/bad" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg"))
	}))
	t.Cleanup(srv.Close)

	d := Discovery{
		HTTPRefs:   []string{srv.URL + "/ok.jpg", srv.URL + "/bad"},
		Base64Refs: []string{"data:image/png;base64," + samplePNG, "data:image/png;base64,!!!"},
	}

	r := newTestRelocator(t)
	manifest := r.Relocate(context.Background(), "user-1", d)

	got := make(map[string]bool)
	for _, rel := range manifest.Relocated {
		got[rel.Original] = true
	}
	for _, sk := range manifest.Skipped {
		got[sk.Original] = true
	}
	for _, ref := range append(append([]string{}, d.HTTPRefs...), d.Base64Refs...) {
		if !got[ref] {
			t.Fatalf("reference %q missing from manifest", ref)
		}
	}
	if len(manifest.Relocated) != 2 || len(manifest.Skipped) != 2 {
		t.Fatalf("relocated=%d skipped=%d, want 2/2", len(manifest.Relocated), len(manifest.Skipped))
	}
}

func TestRelocateNoImagesSucceedsTrivially(t *testing.T) {
	r := newTestRelocator(t)
	manifest := r.Relocate(context.Background(), "user-1", Discovery{})
	if len(manifest.Relocated) != 0 || len(manifest.Skipped) != 0 {
		t.Fatalf("empty discovery should produce empty manifest: %+v", manifest)
	}
}
