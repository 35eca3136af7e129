// Package metrics exposes the Prometheus collectors recorded around every
// projection dispatch.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "projectionflow"
	Subsystem = "denormalizer"

	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Recorder counts handled messages and observes dispatch latency per message
// type and strategy. A nil Recorder records nothing.
type Recorder struct {
	mu sync.Mutex

	handled  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec

	registerer prometheus.Registerer
	registered bool
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newHistogramVec(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

func newGaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewRecorder creates the collectors and registers them. A nil registerer
// falls back to prometheus.DefaultRegisterer.
func NewRecorder(registerer prometheus.Registerer) (*Recorder, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		registerer: registerer,
		handled:    newCounterVec("messages_handled_total", "Messages applied to projections, by outcome", []string{"message_type", "strategy", "outcome"}),
		duration:   newHistogramVec("handle_duration_seconds", "Time spent applying one message, store lifecycle included", prometheus.DefBuckets, []string{"message_type", "strategy"}),
		inFlight:   newGaugeVec("messages_in_flight", "Messages currently being applied", []string{"message_type"}),
	}
	if err := r.Register(); err != nil {
		return nil, err
	}
	return r, nil
}

// Register registers the collectors. Collectors already present in the
// registry are reused, so several Recorders can share one registry.
func (r *Recorder) Register() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.registered {
		return nil
	}

	handled, err := register(r.registerer, r.handled)
	if err != nil {
		return err
	}
	duration, err := register(r.registerer, r.duration)
	if err != nil {
		return err
	}
	inFlight, err := register(r.registerer, r.inFlight)
	if err != nil {
		return err
	}

	r.handled, r.duration, r.inFlight = handled, duration, inFlight
	r.registered = true
	return nil
}

func register[C prometheus.Collector](registerer prometheus.Registerer, c C) (C, error) {
	if err := registerer.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return c, err
		}
		existing, ok := already.ExistingCollector.(C)
		if !ok {
			return c, err
		}
		return existing, nil
	}
	return c, nil
}

// Start marks a message as in flight and returns the function that records
// its completion.
func (r *Recorder) Start(messageType, strategy string) func(err error) {
	if r == nil {
		return func(error) {}
	}
	started := time.Now()
	gauge := r.inFlight.WithLabelValues(messageType)
	gauge.Inc()
	return func(err error) {
		gauge.Dec()
		r.Observe(messageType, strategy, err, time.Since(started))
	}
}

// Observe records one finished dispatch.
func (r *Recorder) Observe(messageType, strategy string, err error, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.handled.WithLabelValues(messageType, strategy, Outcome(err)).Inc()
	r.duration.WithLabelValues(messageType, strategy).Observe(elapsed.Seconds())
}

// Outcome maps a dispatch result to its label value.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
