package images

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"knowledge-backend/internal/shared/storage/object"
	"knowledge-backend/internal/shared/telemetry"
	"knowledge-backend/internal/shared/util"
)

const (
	// DefaultMaxImageBytes rejects any single image payload over 5 MB.
	DefaultMaxImageBytes = 5 << 20
	// DefaultPaceDelay spaces out fetches against third-party image hosts.
	DefaultPaceDelay = 100 * time.Millisecond

	defaultUserAgent = "knowledge-backend-image-relocator/1.0"
)

// Relocated correlates one discovered reference with its new storage location.
type Relocated struct {
	Original   string `json:"original"`
	Kind       string `json:"kind"`
	FileName   string `json:"fileName"`
	StorageKey string `json:"storageKey"`
	PublicURL  string `json:"publicUrl"`
	SizeBytes  int64  `json:"sizeBytes"`
}

// Skipped records a reference that could not be relocated and why.
type Skipped struct {
	Original string `json:"original"`
	Kind     string `json:"kind"`
	Reason   string `json:"reason"`
}

// Manifest is the full outcome of one relocation pass. Every discovered
// reference appears exactly once, either in Relocated or in Skipped.
type Manifest struct {
	Relocated []Relocated `json:"relocated"`
	Skipped   []Skipped   `json:"skipped"`
}

// Relocator moves external and inline-encoded images into the object store.
type Relocator struct {
	Store         object.ObjectStore
	HTTPClient    *http.Client
	MaxImageBytes int64
	PaceDelay     time.Duration
	UserAgent     string

	now func() time.Time
}

// NewRelocator constructs a Relocator with default limits.
func NewRelocator(store object.ObjectStore) *Relocator {
	return &Relocator{
		Store:         store,
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
		MaxImageBytes: DefaultMaxImageBytes,
		PaceDelay:     DefaultPaceDelay,
		UserAgent:     defaultUserAgent,
		now:           time.Now,
	}
}

// Relocate transfers every discovered image into the object store under the
// user's namespace. A single image failure never aborts the pass; failed
// references are recorded as skips and the caller continues with whatever
// succeeded.
func (r *Relocator) Relocate(ctx context.Context, userID string, d Discovery) Manifest {
	var manifest Manifest

	for i, ref := range d.HTTPRefs {
		if i > 0 {
			if err := r.pace(ctx); err != nil {
				manifest.Skipped = append(manifest.Skipped, Skipped{Original: ref, Kind: KindHTTP, Reason: err.Error()})
				continue
			}
		}
		rel, err := r.relocateHTTP(ctx, userID, ref, i)
		if err != nil {
			telemetry.Warn("images.relocate.skip", map[string]any{
				"kind":   KindHTTP,
				"index":  i,
				"reason": err.Error(),
			})
			manifest.Skipped = append(manifest.Skipped, Skipped{Original: ref, Kind: KindHTTP, Reason: err.Error()})
			continue
		}
		manifest.Relocated = append(manifest.Relocated, rel)
	}

	for i, ref := range d.Base64Refs {
		rel, err := r.relocateBase64(ctx, userID, ref, i)
		if err != nil {
			telemetry.Warn("images.relocate.skip", map[string]any{
				"kind":   KindBase64,
				"index":  i,
				"reason": err.Error(),
			})
			manifest.Skipped = append(manifest.Skipped, Skipped{Original: ref, Kind: KindBase64, Reason: err.Error()})
			continue
		}
		manifest.Relocated = append(manifest.Relocated, rel)
	}

	return manifest
}

func (r *Relocator) relocateHTTP(ctx context.Context, userID, srcURL string, index int) (Relocated, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return Relocated{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent())

	resp, err := r.httpClient().Do(req)
	if err != nil {
		return Relocated{}, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Relocated{}, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if mediaType, _, err := mime.ParseMediaType(contentType); err != nil || !strings.HasPrefix(mediaType, "image/") {
		return Relocated{}, fmt.Errorf("not an image content type: %q", contentType)
	}

	maxBytes := r.maxImageBytes()
	if resp.ContentLength > maxBytes {
		return Relocated{}, fmt.Errorf("image too large: %d bytes (max %d)", resp.ContentLength, maxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return Relocated{}, fmt.Errorf("read image body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return Relocated{}, fmt.Errorf("image too large: over %d bytes", maxBytes)
	}

	ext := extensionFor(contentType, srcURL)
	return r.upload(ctx, userID, "img", index, ext, contentType, data, srcURL, KindHTTP)
}

func (r *Relocator) relocateBase64(ctx context.Context, userID, dataURL string, index int) (Relocated, error) {
	contentType, payload, err := splitDataURL(dataURL)
	if err != nil {
		return Relocated{}, err
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return Relocated{}, fmt.Errorf("decode base64 payload: %w", err)
		}
	}
	if len(data) == 0 {
		return Relocated{}, fmt.Errorf("empty base64 payload")
	}

	ext := extensionFor(contentType, "")
	return r.upload(ctx, userID, "inline", index, ext, contentType, data, dataURL, KindBase64)
}

func (r *Relocator) upload(ctx context.Context, userID, role string, index int, ext, contentType string, data []byte, original, kind string) (Relocated, error) {
	fileName := fmt.Sprintf("%s-%d-%d.%s", role, index, r.clock()().Unix(), ext)
	storageKey := path.Join(util.HashUserKey(userID), "images", fileName)

	size, err := r.Store.SaveWithKey(ctx, storageKey, contentType, bytes.NewReader(data))
	if err != nil {
		return Relocated{}, fmt.Errorf("upload image: %w", err)
	}

	return Relocated{
		Original:   original,
		Kind:       kind,
		FileName:   fileName,
		StorageKey: storageKey,
		PublicURL:  r.Store.PublicURL(storageKey),
		SizeBytes:  size,
	}, nil
}

func (r *Relocator) pace(ctx context.Context) error {
	delay := r.PaceDelay
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Relocator) httpClient() *http.Client {
	if r.HTTPClient != nil {
		return r.HTTPClient
	}
	return http.DefaultClient
}

func (r *Relocator) maxImageBytes() int64 {
	if r.MaxImageBytes > 0 {
		return r.MaxImageBytes
	}
	return DefaultMaxImageBytes
}

func (r *Relocator) userAgent() string {
	if r.UserAgent != "" {
		return r.UserAgent
	}
	return defaultUserAgent
}

func (r *Relocator) clock() func() time.Time {
	if r.now != nil {
		return r.now
	}
	return time.Now
}

func splitDataURL(dataURL string) (contentType, payload string, err error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", "", fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", fmt.Errorf("malformed data URL")
	}
	contentType = strings.TrimSuffix(meta, ";base64")
	if contentType == meta {
		return "", "", fmt.Errorf("data URL is not base64 encoded")
	}
	return contentType, payload, nil
}

func extensionFor(contentType, srcURL string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil {
		if _, sub, ok := strings.Cut(mediaType, "/"); ok && sub != "" {
			switch sub {
			case "jpeg":
				return "jpg"
			case "svg+xml":
				return "svg"
			default:
				return sub
			}
		}
	}
	if srcURL != "" {
		if ext := strings.TrimPrefix(path.Ext(srcURL), "."); ext != "" && len(ext) <= 4 {
			return ext
		}
	}
	return "png"
}
