// Package metrics exposes scoring and collection counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/elonfeng/nbscore/pkg/nb"
)

// Metrics implements nb.Observer and the engine and collector hooks.
type Metrics struct {
	scores         *prometheus.CounterVec
	scoreLatency   *prometheus.HistogramVec
	sequenceLength prometheus.Histogram
	calculations   *prometheus.CounterVec
	spread         prometheus.Histogram
	collected      *prometheus.CounterVec
	collectErrors  *prometheus.CounterVec
}

var _ nb.Observer = (*Metrics)(nil)

// New registers all metrics with reg. Pass prometheus.DefaultRegisterer to
// expose them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		scores: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nbscore_scores_total",
				Help: "Scorer evaluations by direction and outcome.",
			},
			[]string{"direction", "outcome"},
		),
		scoreLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nbscore_score_duration_seconds",
				Help:    "Time spent in one scorer pass.",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"direction"},
		),
		sequenceLength: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "nbscore_sequence_length",
			Help:    "Length of scored sequences.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		calculations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nbscore_calculations_total",
				Help: "Stored calculations by input kind.",
			},
			[]string{"kind"},
		),
		spread: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "nbscore_difference_abs",
			Help:    "Absolute MAX/MIN difference of stored calculations.",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 750, 1000},
		}),
		collected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nbscore_headlines_collected_total",
				Help: "Headlines collected per source.",
			},
			[]string{"source"},
		),
		collectErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nbscore_collect_errors_total",
				Help: "Failed collections per source.",
			},
			[]string{"source"},
		),
	}
}

// ObserveScore records one scorer pass.
func (m *Metrics) ObserveScore(dir nb.Direction, n int, valid bool, elapsed time.Duration) {
	outcome := "valid"
	if !valid {
		outcome = "fallback"
	}
	m.scores.WithLabelValues(dir.String(), outcome).Inc()
	m.scoreLatency.WithLabelValues(dir.String()).Observe(elapsed.Seconds())
	m.sequenceLength.Observe(float64(n))
}

// ObserveCalculation records a stored calculation.
func (m *Metrics) ObserveCalculation(kind string, difference float64) {
	m.calculations.WithLabelValues(kind).Inc()
	if difference < 0 {
		difference = -difference
	}
	m.spread.Observe(difference)
}

// ObserveCollect records the outcome of one source collection.
func (m *Metrics) ObserveCollect(source string, items int, err error) {
	if err != nil {
		m.collectErrors.WithLabelValues(source).Inc()
		return
	}
	m.collected.WithLabelValues(source).Add(float64(items))
}
