package search

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus instruments of one engine. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// spectraTotal counts spectra by outcome.
	// Labels: outcome (scored, or the skip reason)
	spectraTotal *prometheus.CounterVec

	// candidatesScored counts candidate evaluations.
	// Labels: side (target, decoy)
	candidatesScored *prometheus.CounterVec

	// spectrumDuration measures the time to score one spectrum.
	spectrumDuration prometheus.Histogram

	// bestScore tracks the distribution of winning composite scores.
	// Labels: side (target, decoy)
	bestScore *prometheus.HistogramVec

	// accepted is the number of accepted identifications of the last run.
	accepted prometheus.Gauge

	// buildFailures counts candidates lost while preparing the engine.
	// Labels: reason
	buildFailures *prometheus.CounterVec
}

// NewMetrics registers the engine instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		spectraTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glycresoft",
			Subsystem: "search",
			Name:      "spectra_total",
			Help:      "Spectra processed by outcome",
		}, []string{"outcome"}),
		candidatesScored: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glycresoft",
			Subsystem: "search",
			Name:      "candidates_scored_total",
			Help:      "Candidate evaluations against spectra",
		}, []string{"side"}),
		spectrumDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "glycresoft",
			Subsystem: "search",
			Name:      "spectrum_duration_seconds",
			Help:      "Time to score one spectrum against all its candidates",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}),
		bestScore: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "glycresoft",
			Subsystem: "search",
			Name:      "best_score",
			Help:      "Composite score of the best candidate per spectrum",
			Buckets:   prometheus.LinearBuckets(0, 0.25, 10),
		}, []string{"side"}),
		accepted: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "glycresoft",
			Subsystem: "search",
			Name:      "accepted_identifications",
			Help:      "Identifications accepted at the q-value threshold in the last run",
		}),
		buildFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glycresoft",
			Subsystem: "search",
			Name:      "build_failures_total",
			Help:      "Candidates dropped while building decoys and fragment caches",
		}, []string{"reason"}),
	}
}

func (m *Metrics) observeSpectrum(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.spectraTotal.WithLabelValues(outcome).Inc()
	m.spectrumDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) observeCandidates(side string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.candidatesScored.WithLabelValues(side).Add(float64(n))
}

func (m *Metrics) observeBest(side string, composite float64) {
	if m == nil {
		return
	}
	m.bestScore.WithLabelValues(side).Observe(composite)
}

func (m *Metrics) setAccepted(n int) {
	if m == nil {
		return
	}
	m.accepted.Set(float64(n))
}

func (m *Metrics) observeBuildFailure(reason Reason, n int) {
	if m == nil || n == 0 {
		return
	}
	m.buildFailures.WithLabelValues(string(reason)).Add(float64(n))
}
