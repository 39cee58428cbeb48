package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	jobStartedTotal      atomic.Uint64
	jobCompletedTotal    atomic.Uint64
	jobFailedTotal       atomic.Uint64
	imagesRelocatedTotal atomic.Uint64
	imagesSkippedTotal   atomic.Uint64
	embeddingFailedTotal atomic.Uint64
	providerAttemptTotal atomic.Uint64

	queueJobsReceivedTotal      atomic.Uint64
	queueJobsCompletedTotal     atomic.Uint64
	queueJobsFailedTotal        atomic.Uint64
	queueJobsUnrecoverableTotal atomic.Uint64

	jobDuration = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
)

// IncJobStarted increments the started counter.
func IncJobStarted() {
	jobStartedTotal.Add(1)
}

// IncJobCompleted increments the completed counter.
func IncJobCompleted() {
	jobCompletedTotal.Add(1)
}

// IncJobFailed increments the failed counter.
func IncJobFailed() {
	jobFailedTotal.Add(1)
}

// AddImagesRelocated adds n to the relocated-image counter.
func AddImagesRelocated(n int) {
	if n > 0 {
		imagesRelocatedTotal.Add(uint64(n))
	}
}

// AddImagesSkipped adds n to the skipped-image counter.
func AddImagesSkipped(n int) {
	if n > 0 {
		imagesSkippedTotal.Add(uint64(n))
	}
}

// IncEmbeddingFailed increments the embedding failure counter.
func IncEmbeddingFailed() {
	embeddingFailedTotal.Add(1)
}

// IncProviderAttempt increments the dispatcher attempt counter.
func IncProviderAttempt() {
	providerAttemptTotal.Add(1)
}

// IncQueueJobsReceived increments the worker received counter.
func IncQueueJobsReceived() {
	queueJobsReceivedTotal.Add(1)
}

// IncQueueJobsCompleted increments the worker completed counter.
func IncQueueJobsCompleted() {
	queueJobsCompletedTotal.Add(1)
}

// IncQueueJobsFailed increments the worker failure counter.
func IncQueueJobsFailed() {
	queueJobsFailedTotal.Add(1)
}

// IncQueueJobsDeletedUnrecoverable counts messages dropped because they
// can never be processed (empty, undecodable, missing job id).
func IncQueueJobsDeletedUnrecoverable() {
	queueJobsUnrecoverableTotal.Add(1)
}

// ObserveJobDurationMs records a pipeline run duration in milliseconds.
func ObserveJobDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	jobDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "processing_job_started_total", "Total processing jobs started", jobStartedTotal.Load())
	writeCounter(&buf, "processing_job_completed_total", "Total processing jobs completed", jobCompletedTotal.Load())
	writeCounter(&buf, "processing_job_failed_total", "Total processing jobs failed", jobFailedTotal.Load())
	writeCounter(&buf, "images_relocated_total", "Total images relocated to object storage", imagesRelocatedTotal.Load())
	writeCounter(&buf, "images_skipped_total", "Total images skipped during relocation", imagesSkippedTotal.Load())
	writeCounter(&buf, "embedding_failed_total", "Total embedding calls that failed", embeddingFailedTotal.Load())
	writeCounter(&buf, "provider_attempt_total", "Total AI provider attempts made by the dispatcher", providerAttemptTotal.Load())
	writeCounter(&buf, "queue_jobs_received_total", "Total queue messages received by the worker", queueJobsReceivedTotal.Load())
	writeCounter(&buf, "queue_jobs_completed_total", "Total queue messages processed successfully", queueJobsCompletedTotal.Load())
	writeCounter(&buf, "queue_jobs_failed_total", "Total queue messages whose processing failed", queueJobsFailedTotal.Load())
	writeCounter(&buf, "queue_jobs_deleted_unrecoverable_total", "Total queue messages dropped as unrecoverable", queueJobsUnrecoverableTotal.Load())
	writeHistogram(&buf, "processing_job_duration_ms", "Processing job duration in milliseconds", jobDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// NowMillis returns current time in milliseconds, useful for callers without time utilities.
func NowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
