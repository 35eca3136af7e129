package runtime

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	errspkg "github.com/drblury/projectionflow/internal/runtime/errors"
	"github.com/drblury/projectionflow/internal/runtime/jsoncodec"
)

const latencySampleSize = 256

// UnprocessableMessageError marks a payload that can never be applied, such
// as one that does not decode into the route's message type.
type UnprocessableMessageError struct {
	MessageType string
	Payload     []byte
	Err         error
}

func (e *UnprocessableMessageError) Error() string {
	return fmt.Sprintf("unprocessable %s message: %q error: %v", e.MessageType, e.Payload, e.Err)
}

func (e *UnprocessableMessageError) Unwrap() error { return e.Err }

// IsPermanent reports whether retrying err cannot succeed. Permanent
// failures skip the retry middleware and go to the poison queue.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var unprocessable *UnprocessableMessageError
	if errors.As(err, &unprocessable) {
		return true
	}
	return errors.Is(err, errspkg.ErrMapping) ||
		errors.Is(err, errspkg.ErrAmbiguousMatch) ||
		errors.Is(err, errspkg.ErrTranslate) ||
		errors.Is(err, errspkg.ErrMessageTypeMismatch) ||
		errors.Is(err, errspkg.ErrMessageTypeMissing)
}

type ErrorCategory string

const (
	ErrorCategoryNone     ErrorCategory = "none"
	ErrorCategoryDecode   ErrorCategory = "decode"
	ErrorCategoryMapping  ErrorCategory = "mapping"
	ErrorCategoryConflict ErrorCategory = "conflict"
	ErrorCategoryStore    ErrorCategory = "store"
	ErrorCategoryOther    ErrorCategory = "other"
)

// ErrorClassifier buckets handler errors for HandlerStats.
type ErrorClassifier func(error) ErrorCategory

// DefaultErrorClassifier treats anything that is neither a decode, mapping
// nor conflict failure and that carries no cancellation as a store error.
func DefaultErrorClassifier(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryNone
	}
	var unprocessable *UnprocessableMessageError
	switch {
	case errors.As(err, &unprocessable), errors.Is(err, errspkg.ErrMessageTypeMissing), errors.Is(err, errspkg.ErrMessageTypeMismatch):
		return ErrorCategoryDecode
	case errors.Is(err, errspkg.ErrMapping), errors.Is(err, errspkg.ErrTranslate):
		return ErrorCategoryMapping
	case errors.Is(err, errspkg.ErrAmbiguousMatch):
		return ErrorCategoryConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorCategoryOther
	default:
		return ErrorCategoryStore
	}
}

type HandlerInfo struct {
	Name         string        `json:"name"`
	ConsumeQueue string        `json:"consume_queue"`
	Projection   string        `json:"projection"`
	Routes       []string      `json:"routes"`
	Stats        *HandlerStats `json:"stats"`
}

type HandlerStats struct {
	mu sync.Mutex

	MessagesProcessed   uint64    `json:"messages_processed"`
	MessagesFailed      uint64    `json:"messages_failed"`
	MessagesIgnored     uint64    `json:"messages_ignored"`
	TotalProcessingTime int64     `json:"total_processing_time_ns"`
	LastProcessedAt     time.Time `json:"last_processed_at"`

	Latency LatencyMetrics `json:"latency"`
	Errors  ErrorBreakdown `json:"errors"`

	latencyWindow *latencyWindow
}

type LatencyMetrics struct {
	AverageNs  int64 `json:"average_ns"`
	P50Ns      int64 `json:"p50_ns"`
	P95Ns      int64 `json:"p95_ns"`
	P99Ns      int64 `json:"p99_ns"`
	LastNs     int64 `json:"last_ns"`
	SampleSize int   `json:"sample_size"`
}

type ErrorBreakdown struct {
	Decode    uint64 `json:"decode"`
	Mapping   uint64 `json:"mapping"`
	Conflict  uint64 `json:"conflict"`
	Store     uint64 `json:"store"`
	Other     uint64 `json:"other"`
	LastError string `json:"last_error,omitempty"`
}

func newHandlerStats() *HandlerStats {
	return &HandlerStats{latencyWindow: newLatencyWindow(latencySampleSize)}
}

func (h *HandlerStats) onIgnored() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.MessagesIgnored++
}

func (h *HandlerStats) onFinish(duration time.Duration, err error, classifier ErrorClassifier) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.MessagesProcessed++
	if err != nil {
		h.MessagesFailed++
	}
	h.TotalProcessingTime += int64(duration)
	h.LastProcessedAt = time.Now().UTC()

	h.latencyWindow.Add(duration)
	snapshot := h.latencyWindow.Snapshot()
	snapshot.AverageNs = h.TotalProcessingTime / int64(h.MessagesProcessed)
	h.Latency = snapshot

	if classifier == nil {
		classifier = DefaultErrorClassifier
	}
	h.Errors.Record(classifier(err), err)
}

// Snapshot returns a copy safe to read while messages are being handled.
func (h *HandlerStats) Snapshot() HandlerStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HandlerStats{
		MessagesProcessed:   h.MessagesProcessed,
		MessagesFailed:      h.MessagesFailed,
		MessagesIgnored:     h.MessagesIgnored,
		TotalProcessingTime: h.TotalProcessingTime,
		LastProcessedAt:     h.LastProcessedAt,
		Latency:             h.Latency,
		Errors:              h.Errors,
	}
}

func (h *HandlerStats) MarshalJSON() ([]byte, error) {
	snapshot := h.Snapshot()
	type alias HandlerStats
	return jsoncodec.Marshal((*alias)(&snapshot))
}

func (e *ErrorBreakdown) Record(category ErrorCategory, err error) {
	switch category {
	case ErrorCategoryNone:
		if err == nil {
			return
		}
		e.Other++
	case ErrorCategoryDecode:
		e.Decode++
	case ErrorCategoryMapping:
		e.Mapping++
	case ErrorCategoryConflict:
		e.Conflict++
	case ErrorCategoryStore:
		e.Store++
	default:
		e.Other++
	}
	if err != nil {
		e.LastError = err.Error()
	}
}

type latencyWindow struct {
	samples []int64
	next    int
	filled  int
	last    int64
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = latencySampleSize
	}
	return &latencyWindow{samples: make([]int64, size)}
}

func (lw *latencyWindow) Add(d time.Duration) {
	lw.samples[lw.next] = int64(d)
	lw.last = int64(d)
	lw.next = (lw.next + 1) % len(lw.samples)
	if lw.filled < len(lw.samples) {
		lw.filled++
	}
}

func (lw *latencyWindow) Snapshot() LatencyMetrics {
	metrics := LatencyMetrics{LastNs: lw.last}
	if lw.filled == 0 {
		return metrics
	}
	samples := make([]int64, lw.filled)
	for i := range lw.filled {
		idx := lw.next - lw.filled + i
		if idx < 0 {
			idx += len(lw.samples)
		}
		samples[i] = lw.samples[idx]
	}
	slices.Sort(samples)
	metrics.SampleSize = lw.filled
	metrics.P50Ns = percentile(samples, 0.50)
	metrics.P95Ns = percentile(samples, 0.95)
	metrics.P99Ns = percentile(samples, 0.99)
	return metrics
}

func percentile(samples []int64, quantile float64) int64 {
	if len(samples) == 0 {
		return 0
	}
	if quantile <= 0 {
		return samples[0]
	}
	if quantile >= 1 {
		return samples[len(samples)-1]
	}
	pos := quantile * float64(len(samples)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return samples[lower]
	}
	frac := pos - float64(lower)
	return samples[lower] + int64(float64(samples[upper]-samples[lower])*frac)
}
