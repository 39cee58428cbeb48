package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"knowledge-backend/internal/convert"
	"knowledge-backend/internal/embedding"
	"knowledge-backend/internal/extract"
	"knowledge-backend/internal/images"
	"knowledge-backend/internal/jobs"
	"knowledge-backend/internal/knowledge"
	"knowledge-backend/internal/queue"
	"knowledge-backend/internal/shared/metrics"
	"knowledge-backend/internal/shared/storage/object"
	"knowledge-backend/internal/shared/telemetry"
	"knowledge-backend/internal/shared/util"
	"knowledge-backend/internal/usage"
	"knowledge-backend/internal/workflow"
)

// ContentType tag applied to every entry produced by this pipeline.
const ContentType = "pdf-document"

// Service runs the PDF-to-knowledge-base pipeline.
type Service struct {
	Jobs      jobs.Repo
	Entries   knowledge.Repo
	Store     object.ObjectStore
	Converter convert.Converter
	Embedder  embedding.Embedder
	Workflow  *workflow.Store
	Relocator *images.Relocator
	Usage     *usage.Service

	// Queue, when configured, carries retry requests to the background
	// worker instead of reprocessing inline.
	Queue queue.Client
}

// StartProcessing accepts a PDF, creates the job record and its workflow
// mirror, and kicks off asynchronous processing. The returned job carries
// the id callers poll or subscribe with.
func (s *Service) StartProcessing(ctx context.Context, userID, fileName string, file io.Reader) (jobs.Job, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return jobs.Job{}, &StorageError{Err: err}
	}
	job, err := s.prepare(ctx, userID, fileName, int64(len(data)))
	if err != nil {
		return jobs.Job{}, err
	}
	go s.processJob(backgroundWithRequestID(ctx), job, data)
	return job, nil
}

// GetJob returns the persisted job plus its in-memory workflow snapshot
// when one is still held.
func (s *Service) GetJob(ctx context.Context, userID, jobID string) (jobs.Job, *workflow.Job, error) {
	job, err := s.Jobs.GetByID(ctx, userID, jobID)
	if err != nil {
		return jobs.Job{}, nil, err
	}
	if snap, ok := s.Workflow.GetJob(jobID); ok {
		return job, &snap, nil
	}
	return job, nil, nil
}

// RetryJob re-runs a terminal job from scratch. With a queue configured
// the request is handed to the background worker; otherwise it runs
// in-process.
func (s *Service) RetryJob(ctx context.Context, userID, jobID string) error {
	job, err := s.Jobs.GetByID(ctx, userID, jobID)
	if err != nil {
		return err
	}
	if job.Status == jobs.StatusProcessing {
		return errors.New("job is still processing")
	}
	if s.Queue != nil {
		return s.Queue.Send(ctx, queue.Message{
			JobID:      job.ID,
			UserID:     job.UserID,
			RequestID:  requestIDFromContext(ctx),
			EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
			Version:    1,
		})
	}
	go func(ctx context.Context) {
		if err := s.Reprocess(ctx, userID, jobID); err != nil {
			telemetry.Error("job.retry_failed", map[string]any{"job_id": jobID, "error": err.Error()})
		}
	}(backgroundWithRequestID(ctx))
	return nil
}

// Reprocess reloads the stored PDF and runs the full stage sequence
// again. A retry is a complete reset, never a resume from the failed
// stage.
func (s *Service) Reprocess(ctx context.Context, userID, jobID string) error {
	job, err := s.Jobs.GetByID(ctx, userID, jobID)
	if err != nil {
		return err
	}
	body, err := s.Store.Open(ctx, pdfKey(job.UserID, job.ID))
	if err != nil {
		return &StorageError{Err: err}
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return &StorageError{Err: err}
	}

	if _, ok := s.Workflow.GetJob(job.ID); ok {
		s.Workflow.ResetJob(job.ID)
	} else {
		s.Workflow.CreateJob(job.ID, stepSpecs())
	}
	metrics.IncJobStarted()
	telemetry.Info("job.retry_started", map[string]any{"job_id": job.ID, "user_id": userID})
	s.processJob(ctx, job, data)
	return nil
}

func pdfKey(userID, jobID string) string {
	return path.Join(util.HashUserKey(userID), "pdf", jobID+".pdf")
}

func (s *Service) prepare(ctx context.Context, userID, fileName string, size int64) (jobs.Job, error) {
	if strings.TrimSpace(userID) == "" {
		return jobs.Job{}, &AuthError{Err: errors.New("no authenticated user")}
	}
	cleanName, err := util.SanitizeFileName(fileName)
	if err != nil {
		return jobs.Job{}, &ValidationError{Err: err}
	}
	if size == 0 {
		return jobs.Job{}, &ValidationError{Err: errors.New("uploaded file is empty")}
	}

	if s.Usage != nil {
		ok, _, err := s.Usage.CanConsume(ctx, userID, 1)
		if err != nil {
			return jobs.Job{}, err
		}
		if !ok {
			return jobs.Job{}, usage.ErrLimitReached
		}
	}

	now := time.Now().UTC()
	jobID := uuid.NewString()
	job := jobs.Job{
		ID:            jobID,
		UserID:        userID,
		FileName:      cleanName,
		FileSizeBytes: size,
		SourceURL:     s.Store.PublicURL(pdfKey(userID, jobID)),
		Status:        jobs.StatusProcessing,
		StartedAt:     now,
		CreatedAt:     now,
	}
	if err := s.Jobs.Create(ctx, job); err != nil {
		return jobs.Job{}, &StorageError{Err: err}
	}

	if s.Usage != nil {
		if _, err := s.Usage.Consume(ctx, userID, 1); err != nil {
			return jobs.Job{}, err
		}
	}

	s.Workflow.CreateJob(job.ID, stepSpecs())
	metrics.IncJobStarted()
	telemetry.Info("job.started", map[string]any{
		"job_id":    job.ID,
		"user_id":   userID,
		"file_name": cleanName,
		"size":      size,
	})
	return job, nil
}

// processJob executes the stage sequence. Stages run strictly in order;
// each consumes outputs of earlier ones.
func (s *Service) processJob(ctx context.Context, job jobs.Job, data []byte) {
	start := time.Now()
	wf := s.Workflow

	wf.StartStep(job.ID, StepAuthenticate)
	wf.CompleteStep(job.ID, StepAuthenticate, map[string]any{"userId": job.UserID})

	wf.StartStep(job.ID, StepUpload)
	storageKey := pdfKey(job.UserID, job.ID)
	if _, err := s.Store.SaveWithKey(ctx, storageKey, "application/pdf", bytes.NewReader(data)); err != nil {
		s.fail(ctx, job, StepUpload, &StorageError{Err: err}, start)
		return
	}
	pdfURL := s.Store.PublicURL(storageKey)
	wf.CompleteStep(job.ID, StepUpload, map[string]any{"storageKey": storageKey, "url": pdfURL})

	wf.StartStep(job.ID, StepValidate)
	pages, err := extract.ValidatePDF(data)
	if err != nil {
		s.fail(ctx, job, StepValidate, &ValidationError{Err: err}, start)
		return
	}
	wf.CompleteStep(job.ID, StepValidate, map[string]any{"pages": pages})

	wf.StartStep(job.ID, StepConvert)
	result, err := s.Converter.Convert(ctx, pdfURL)
	if err != nil {
		s.fail(ctx, job, StepConvert, &ConversionError{Err: err}, start)
		return
	}
	wf.CompleteStep(job.ID, StepConvert, map[string]any{"fileName": result.FileName, "stored": result.URL != ""})

	wf.StartStep(job.ID, StepExtractHTML)
	html, err := s.extractHTML(ctx, result)
	if err != nil {
		s.fail(ctx, job, StepExtractHTML, &ExtractionError{Err: err}, start)
		return
	}
	wf.CompleteStep(job.ID, StepExtractHTML, map[string]any{"bytes": len(html)})

	wf.StartStep(job.ID, StepDiscoverImages)
	discovery := images.Discover(html)
	wf.CompleteStep(job.ID, StepDiscoverImages, map[string]any{
		"images_found":        len(discovery.HTTPRefs),
		"base64_images_found": len(discovery.Base64Refs),
	})

	wf.StartStep(job.ID, StepRelocateImages)
	manifest := s.Relocator.Relocate(ctx, job.UserID, discovery)
	metrics.AddImagesRelocated(len(manifest.Relocated))
	metrics.AddImagesSkipped(len(manifest.Skipped))
	for _, skipped := range manifest.Skipped {
		wf.AppendDetail(job.ID, StepRelocateImages, "skipped "+skipped.Kind+" image: "+skipped.Reason)
	}
	wf.CompleteStep(job.ID, StepRelocateImages, map[string]any{
		"images_processed":        countKind(manifest, images.KindHTTP),
		"base64_images_processed": countKind(manifest, images.KindBase64),
	})

	wf.StartStep(job.ID, StepFinalizeHTML)
	finalHTML, replaced := images.Rewrite(html, manifest)
	if images.ContainsBase64(finalHTML) {
		telemetry.Warn("pipeline.base64_residual", map[string]any{"job_id": job.ID})
		wf.AppendDetail(job.ID, StepFinalizeHTML, "base64 image data still present after rewrite")
	}
	sourceURL := s.persistHTML(ctx, job, finalHTML)
	wf.CompleteStep(job.ID, StepFinalizeHTML, map[string]any{
		"replacements": replaced,
		"sourceUrl":    sourceURL,
	})

	wf.StartStep(job.ID, StepExtractText)
	text := extract.Text(finalHTML)
	wf.CompleteStep(job.ID, StepExtractText, map[string]any{"chars": len(text)})

	wf.StartStep(job.ID, StepGenerateEmbedding)
	vector := s.embed(ctx, job, text)
	wf.CompleteStep(job.ID, StepGenerateEmbedding, map[string]any{"dimensions": len(vector)})

	wf.StartStep(job.ID, StepStoreEntry)
	content, truncated := extract.CapContent(finalHTML)
	anyImageOK := discovery.Total() == 0 || len(manifest.Relocated) > 0
	entry := knowledge.Entry{
		ID:          uuid.NewString(),
		Title:       titleFromFileName(job.FileName),
		Content:     content,
		ContentType: ContentType,
		SourceURL:   sourceURL,
		Language:    "en",
		Embedding:   vector,
		Confidence:  knowledge.ComputeConfidence(anyImageOK),
		Keywords:    knowledge.ExtractKeywords(text),
		Metadata:    entryMetadata(job, pages, discovery, manifest, text, truncated),
		CreatedBy:   job.UserID,
		Status:      knowledge.StatusActive,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Entries.Create(ctx, entry); err != nil {
		s.fail(ctx, job, StepStoreEntry, &PersistenceError{Err: err}, start)
		return
	}
	wf.CompleteStep(job.ID, StepStoreEntry, map[string]any{"entryId": entry.ID})

	wf.StartStep(job.ID, StepFinalizeJob)
	elapsed := time.Since(start).Milliseconds()
	completedAt := time.Now().UTC()
	if err := s.Jobs.MarkCompleted(ctx, job.ID, entry.ID, elapsed, completedAt); err != nil {
		telemetry.Error("job.finalize_failed", map[string]any{"job_id": job.ID, "error": err.Error()})
	}
	wf.CompleteStep(job.ID, StepFinalizeJob, map[string]any{"processingTimeMs": elapsed})

	metrics.IncJobCompleted()
	metrics.ObserveJobDurationMs(float64(elapsed))
	telemetry.Info("job.completed", map[string]any{
		"job_id":   job.ID,
		"entry_id": entry.ID,
		"time_ms":  elapsed,
	})
}

// extractHTML obtains the converted HTML: download from the stored URL
// when available, otherwise take the inline payload, decoding base64
// heuristically before treating it as literal text.
func (s *Service) extractHTML(ctx context.Context, result convert.Result) (string, error) {
	var raw []byte
	if result.URL != "" {
		body, err := s.Converter.Fetch(ctx, result.URL)
		if err != nil {
			return "", err
		}
		raw = body
	} else {
		raw = decodeInlinePayload(result.Data)
	}
	html := strings.TrimSpace(string(raw))
	if html == "" {
		return "", errors.New("conversion produced no html content")
	}
	return html, nil
}

var base64PayloadRe = regexp.MustCompile(`^[A-Za-z0-9+/=\r\n]+$`)

// decodeInlinePayload decodes payloads that match the base64 alphabet,
// keeping the decode only when the result looks like markup (a '<'
// within the first 512 bytes). Anything else passes through literally.
func decodeInlinePayload(data []byte) []byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || !base64PayloadRe.Match(trimmed) {
		return trimmed
	}
	compact := strings.NewReplacer("\r", "", "\n", "").Replace(string(trimmed))
	decoded, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(compact)
	}
	if err != nil {
		return trimmed
	}
	probe := decoded
	if len(probe) > 512 {
		probe = probe[:512]
	}
	if !bytes.ContainsRune(probe, '<') {
		return trimmed
	}
	return decoded
}

// persistHTML stores the finalized HTML as its own object. Failure is
// non-fatal: the entry still carries the content in its database row.
func (s *Service) persistHTML(ctx context.Context, job jobs.Job, html string) string {
	key := path.Join(util.HashUserKey(job.UserID), "html", job.ID+".html")
	if _, err := s.Store.SaveWithKey(ctx, key, "text/html; charset=utf-8", strings.NewReader(html)); err != nil {
		telemetry.Warn("pipeline.html_persist_failed", map[string]any{
			"job_id": job.ID,
			"error":  err.Error(),
		})
		return ""
	}
	return s.Store.PublicURL(key)
}

// embed requests a vector for the capped text. Failure is non-fatal:
// the entry is stored without an embedding.
func (s *Service) embed(ctx context.Context, job jobs.Job, text string) []float32 {
	input := extract.EmbeddingInput(text)
	if strings.TrimSpace(input) == "" {
		return nil
	}
	vector, err := s.Embedder.Embed(ctx, input)
	if err != nil {
		metrics.IncEmbeddingFailed()
		telemetry.Warn("pipeline.embedding_failed", map[string]any{
			"job_id": job.ID,
			"error":  err.Error(),
		})
		return nil
	}
	return vector
}

func (s *Service) fail(ctx context.Context, job jobs.Job, stepID string, err error, start time.Time) {
	category := Categorize(err)
	message := failureMessage(category, err)
	s.Workflow.FailStep(job.ID, stepID, message)

	elapsed := time.Since(start).Milliseconds()
	if markErr := s.Jobs.MarkFailed(ctx, job.ID, message, elapsed, time.Now().UTC()); markErr != nil {
		telemetry.Error("job.mark_failed_error", map[string]any{"job_id": job.ID, "error": markErr.Error()})
	}

	metrics.IncJobFailed()
	metrics.ObserveJobDurationMs(float64(elapsed))
	telemetry.Error("job.failed", map[string]any{
		"job_id":          job.ID,
		"step":            stepID,
		"category":        category.Code,
		"error":           sanitizeError(err),
		"troubleshooting": category.Troubleshooting,
	})
}

func entryMetadata(job jobs.Job, pages int, discovery images.Discovery, manifest images.Manifest, text string, truncated bool) map[string]any {
	relocated := make([]map[string]any, 0, len(manifest.Relocated))
	for _, img := range manifest.Relocated {
		relocated = append(relocated, map[string]any{
			"original":   extract.CapChars(img.Original, 64),
			"kind":       img.Kind,
			"fileName":   img.FileName,
			"publicUrl":  img.PublicURL,
			"sizeBytes":  img.SizeBytes,
			"storageKey": img.StorageKey,
		})
	}
	return map[string]any{
		"file_name":               job.FileName,
		"file_size_bytes":         job.FileSizeBytes,
		"pages":                   pages,
		"images_found":            len(discovery.HTTPRefs),
		"images_processed":        countKind(manifest, images.KindHTTP),
		"base64_images_found":     len(discovery.Base64Refs),
		"base64_images_processed": countKind(manifest, images.KindBase64),
		"relocated_images":        relocated,
		"text_preview":            extract.Preview(text, 200),
		"content_truncated":       truncated,
	}
}

func countKind(manifest images.Manifest, kind string) int {
	n := 0
	for _, img := range manifest.Relocated {
		if img.Kind == kind {
			n++
		}
	}
	return n
}

func titleFromFileName(name string) string {
	base := strings.TrimSuffix(name, path.Ext(name))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return name
	}
	return base
}
