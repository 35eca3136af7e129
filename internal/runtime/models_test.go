package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	errspkg "github.com/drblury/projectionflow/internal/runtime/errors"
	"github.com/drblury/projectionflow/internal/runtime/jsoncodec"
)

func TestIsPermanent(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", errBoom, false},
		{"unprocessable", &UnprocessableMessageError{MessageType: "x", Err: errBoom}, true},
		{"mapping", fmt.Errorf("wrapped: %w", errspkg.ErrMapping), true},
		{"ambiguous", errspkg.ErrAmbiguousMatch, true},
		{"translate", errspkg.ErrTranslate, true},
		{"type mismatch", errspkg.ErrMessageTypeMismatch, true},
		{"type missing", errspkg.ErrMessageTypeMissing, true},
		{"cancelled", context.Canceled, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsPermanent(tc.err); got != tc.want {
				t.Fatalf("IsPermanent(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestDefaultErrorClassifier(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorCategory
	}{
		{nil, ErrorCategoryNone},
		{&UnprocessableMessageError{Err: errBoom}, ErrorCategoryDecode},
		{errspkg.ErrMessageTypeMissing, ErrorCategoryDecode},
		{errspkg.ErrMapping, ErrorCategoryMapping},
		{errspkg.ErrTranslate, ErrorCategoryMapping},
		{errspkg.ErrAmbiguousMatch, ErrorCategoryConflict},
		{context.DeadlineExceeded, ErrorCategoryOther},
		{errBoom, ErrorCategoryStore},
	}
	for _, tc := range cases {
		if got := DefaultErrorClassifier(tc.err); got != tc.want {
			t.Fatalf("DefaultErrorClassifier(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestUnprocessableMessageErrorUnwraps(t *testing.T) {
	err := &UnprocessableMessageError{MessageType: "orders", Payload: []byte("{"), Err: errBoom}
	if !errors.Is(err, errBoom) {
		t.Fatal("expected wrapped error to be reachable")
	}
	if !strings.Contains(err.Error(), "orders") || !strings.Contains(err.Error(), `"{"`) {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestHandlerStatsRecordsOutcomes(t *testing.T) {
	stats := newHandlerStats()
	stats.onFinish(10*time.Millisecond, nil, nil)
	stats.onFinish(30*time.Millisecond, errspkg.ErrAmbiguousMatch, nil)
	stats.onFinish(20*time.Millisecond, errBoom, func(error) ErrorCategory { return ErrorCategoryDecode })
	stats.onIgnored()

	snap := stats.Snapshot()
	if snap.MessagesProcessed != 3 || snap.MessagesFailed != 2 || snap.MessagesIgnored != 1 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
	if snap.Errors.Conflict != 1 || snap.Errors.Decode != 1 || snap.Errors.LastError != "boom" {
		t.Fatalf("unexpected error breakdown: %+v", snap.Errors)
	}
	if snap.Latency.AverageNs != int64(20*time.Millisecond) {
		t.Fatalf("expected 20ms average, got %d", snap.Latency.AverageNs)
	}
	if snap.Latency.P50Ns != int64(20*time.Millisecond) || snap.Latency.LastNs != int64(20*time.Millisecond) {
		t.Fatalf("unexpected latency: %+v", snap.Latency)
	}
	if snap.Latency.SampleSize != 3 || snap.LastProcessedAt.IsZero() {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestErrorBreakdownNoneWithErrorCountsAsOther(t *testing.T) {
	var b ErrorBreakdown
	b.Record(ErrorCategoryNone, nil)
	b.Record(ErrorCategoryNone, errBoom)
	b.Record(ErrorCategory("custom"), errBoom)
	if b.Other != 2 {
		t.Fatalf("expected two other errors, got %+v", b)
	}
}

func TestHandlerStatsMarshalJSON(t *testing.T) {
	stats := newHandlerStats()
	stats.onFinish(time.Millisecond, errBoom, nil)

	payload, err := jsoncodec.Marshal(&HandlerInfo{Name: "orders", Projection: "orderView", Stats: stats})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded struct {
		Name  string `json:"name"`
		Stats struct {
			MessagesProcessed uint64 `json:"messages_processed"`
			Errors            struct {
				Store     uint64 `json:"store"`
				LastError string `json:"last_error"`
			} `json:"errors"`
		} `json:"stats"`
	}
	if err := jsoncodec.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Name != "orders" || decoded.Stats.MessagesProcessed != 1 || decoded.Stats.Errors.Store != 1 {
		t.Fatalf("unexpected payload: %s", payload)
	}
	if decoded.Stats.Errors.LastError != "boom" {
		t.Fatalf("expected last error, got %q", decoded.Stats.Errors.LastError)
	}
}

func TestLatencyWindowKeepsNewestSamples(t *testing.T) {
	lw := newLatencyWindow(3)
	for _, d := range []time.Duration{100, 1, 2, 3} {
		lw.Add(d)
	}
	snap := lw.Snapshot()
	if snap.SampleSize != 3 || snap.LastNs != 3 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.P99Ns >= 100 {
		t.Fatalf("expected oldest sample to be evicted, got p99 %d", snap.P99Ns)
	}
	if snap.P50Ns != 2 {
		t.Fatalf("expected median 2, got %d", snap.P50Ns)
	}
}

func TestLatencyWindowEmpty(t *testing.T) {
	snap := newLatencyWindow(0).Snapshot()
	if snap.SampleSize != 0 || snap.P50Ns != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestPercentile(t *testing.T) {
	samples := []int64{10, 20, 30, 40}
	cases := []struct {
		q    float64
		want int64
	}{
		{0, 10},
		{1, 40},
		{0.5, 25},
		{0.75, 32},
	}
	for _, tc := range cases {
		if got := percentile(samples, tc.q); got != tc.want {
			t.Fatalf("percentile(%v) = %d, want %d", tc.q, got, tc.want)
		}
	}
	if percentile(nil, 0.5) != 0 {
		t.Fatal("expected zero for empty samples")
	}
}
