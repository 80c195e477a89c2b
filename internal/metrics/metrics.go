// Package metrics records evaluation and matching outcomes with Prometheus.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/spigell/idea-validator/internal/evaluator"
)

const namespace = "idea_validator"

const (
	outcomeSuccess = "success"
	statusCached   = "cached"
)

// Recorder implements evaluator.Observer. A nil *Recorder records nothing.
type Recorder struct {
	gatherer    prometheus.Gatherer
	attempts    *prometheus.CounterVec
	evaluations *prometheus.CounterVec
	duration    prometheus.Histogram
	retries     prometheus.Histogram
	matches     *prometheus.CounterVec
	matched     *prometheus.HistogramVec
}

var _ evaluator.Observer = (*Recorder)(nil)

// New registers the collectors on a fresh registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		gatherer: reg,
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generator_attempts_total",
			Help:      "Generator attempts by outcome.",
		}, []string{"outcome"}),
		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Completed evaluations by status.",
		}, []string{"status"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Wall time of the evaluation retry loop.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
		retries: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_attempts",
			Help:      "Attempts used per evaluation.",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		}),
		matches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Match requests by strategy.",
		}, []string{"strategy"}),
		matched: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "matched_candidates",
			Help:      "Candidates returned per match request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 25},
		}, []string{"strategy"}),
	}
}

// ObserveAttempt counts one generator attempt. An empty kind is a success.
func (r *Recorder) ObserveAttempt(kind evaluator.Kind) {
	if r == nil {
		return
	}
	r.attempts.WithLabelValues(label(kind)).Inc()
}

// ObserveEvaluation records a finished evaluation.
func (r *Recorder) ObserveEvaluation(kind evaluator.Kind, attempts int, d time.Duration) {
	if r == nil {
		return
	}
	r.evaluations.WithLabelValues(label(kind)).Inc()
	r.duration.Observe(d.Seconds())
	r.retries.Observe(float64(attempts))
}

// ObserveCacheHit counts an evaluation served from the result cache.
func (r *Recorder) ObserveCacheHit() {
	if r == nil {
		return
	}
	r.evaluations.WithLabelValues(statusCached).Inc()
}

// ObserveMatch records a match request and the number of candidates returned.
func (r *Recorder) ObserveMatch(strategy string, returned int) {
	if r == nil {
		return
	}
	r.matches.WithLabelValues(strategy).Inc()
	r.matched.WithLabelValues(strategy).Observe(float64(returned))
}

// WriteTextfile dumps all collectors in the node-exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func label(kind evaluator.Kind) string {
	if kind == "" {
		return outcomeSuccess
	}
	return string(kind)
}
