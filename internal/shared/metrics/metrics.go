package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	dictationStartedTotal   atomic.Uint64
	dictationCompletedTotal atomic.Uint64
	dictationFailedTotal    atomic.Uint64

	dictationJobsReceivedTotal  atomic.Uint64
	dictationJobsCompletedTotal atomic.Uint64
	dictationJobsFailedTotal    atomic.Uint64
	dictationJobsDroppedTotal   atomic.Uint64

	dictationDuration = newHistogram([]float64{500, 1000, 2000, 5000, 10000, 30000, 60000, 120000, 300000})
)

// IncDictationStarted increments the started counter.
func IncDictationStarted() {
	dictationStartedTotal.Add(1)
}

// IncDictationCompleted increments the completed counter.
func IncDictationCompleted() {
	dictationCompletedTotal.Add(1)
}

// IncDictationFailed increments the failed counter.
func IncDictationFailed() {
	dictationFailedTotal.Add(1)
}

// IncDictationJobsReceived increments the queue jobs received counter.
func IncDictationJobsReceived() {
	dictationJobsReceivedTotal.Add(1)
}

// IncDictationJobsCompleted increments the queue jobs completed counter.
func IncDictationJobsCompleted() {
	dictationJobsCompletedTotal.Add(1)
}

// IncDictationJobsFailed increments the queue jobs failed counter.
func IncDictationJobsFailed() {
	dictationJobsFailedTotal.Add(1)
}

// IncDictationJobsDropped counts unrecoverable payloads deleted without processing.
func IncDictationJobsDropped() {
	dictationJobsDroppedTotal.Add(1)
}

// ObserveDictationDurationMs records a processing duration in milliseconds.
func ObserveDictationDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	dictationDuration.Observe(value)
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
	writeCounter(&buf, "dictation_started_total", "Total dictations started", dictationStartedTotal.Load())
	writeCounter(&buf, "dictation_completed_total", "Total dictations completed", dictationCompletedTotal.Load())
	writeCounter(&buf, "dictation_failed_total", "Total dictations failed", dictationFailedTotal.Load())
	writeCounter(&buf, "dictation_jobs_received_total", "Total queue jobs received", dictationJobsReceivedTotal.Load())
	writeCounter(&buf, "dictation_jobs_completed_total", "Total queue jobs completed", dictationJobsCompletedTotal.Load())
	writeCounter(&buf, "dictation_jobs_failed_total", "Total queue jobs failed", dictationJobsFailedTotal.Load())
	writeCounter(&buf, "dictation_jobs_dropped_total", "Total unrecoverable queue jobs dropped", dictationJobsDroppedTotal.Load())
	writeHistogram(&buf, "dictation_duration_ms", "Dictation processing duration in milliseconds", dictationDuration.Snapshot())
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
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
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
