// Package metrics provides Prometheus metrics instrumentation for the
// forecaster.
//
// It exposes operational metrics about the pipeline: the duration of each
// stage (collect, search, evaluate), the outcome of the latest run, and
// error tracking. All metrics are exposed via the /metrics HTTP endpoint
// for Prometheus scraping.
//
// Metrics exposed:
//   - pricecast_adapter_collect_seconds: Histogram of price collection duration
//   - pricecast_search_seconds: Histogram of grid search duration
//   - pricecast_evaluate_seconds: Histogram of forecast evaluation duration
//   - pricecast_snapshot_age_seconds: Gauge of current snapshot age
//   - pricecast_best_aic: Gauge of the winning model's AIC
//   - pricecast_mape_percent: Gauge of the winning model's in-sample MAPE
//   - pricecast_candidates_failed: Gauge of failed candidates in the last search
//   - pricecast_errors_total: Counter of errors by component and reason
//
// All metrics carry the instrument as a constant label.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the forecaster.
type Metrics struct {
	AdapterCollectSeconds prometheus.Histogram
	SearchSeconds         prometheus.Histogram
	EvaluateSeconds       prometheus.Histogram
	SnapshotAgeSeconds    prometheus.Gauge
	BestAIC               prometheus.Gauge
	MAPEPercent           prometheus.Gauge
	CandidatesFailed      prometheus.Gauge
	ErrorsTotal           *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New(instrument, adapter string) *Metrics {
	return &Metrics{
		AdapterCollectSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "pricecast_adapter_collect_seconds",
			Help: "Time spent collecting the price history from the adapter",
			ConstLabels: prometheus.Labels{
				"adapter":    adapter,
				"instrument": instrument,
			},
			Buckets: prometheus.DefBuckets,
		}),

		SearchSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "pricecast_search_seconds",
			Help: "Time spent fitting the candidate grid",
			ConstLabels: prometheus.Labels{
				"instrument": instrument,
			},
			// Grid searches run far longer than request handlers.
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}),

		EvaluateSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "pricecast_evaluate_seconds",
			Help: "Time spent forecasting and scoring the winning model",
			ConstLabels: prometheus.Labels{
				"instrument": instrument,
			},
			Buckets: prometheus.DefBuckets,
		}),

		SnapshotAgeSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pricecast_snapshot_age_seconds",
			Help: "Age of the current snapshot in seconds",
			ConstLabels: prometheus.Labels{
				"instrument": instrument,
			},
		}),

		BestAIC: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pricecast_best_aic",
			Help: "AIC of the winning model from the last search",
			ConstLabels: prometheus.Labels{
				"instrument": instrument,
			},
		}),

		MAPEPercent: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pricecast_mape_percent",
			Help: "In-sample MAPE of the winning model, in percent",
			ConstLabels: prometheus.Labels{
				"instrument": instrument,
			},
		}),

		CandidatesFailed: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pricecast_candidates_failed",
			Help: "Candidates that failed to fit in the last search",
			ConstLabels: prometheus.Labels{
				"instrument": instrument,
			},
		}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricecast_errors_total",
			Help: "Total number of errors by component and reason",
			ConstLabels: prometheus.Labels{
				"instrument": instrument,
			},
		}, []string{"component", "reason"}),
	}
}

// RecordCollect records the time spent collecting the price history.
func (m *Metrics) RecordCollect(seconds float64) {
	m.AdapterCollectSeconds.Observe(seconds)
}

// RecordSearch records the time spent on the grid search.
func (m *Metrics) RecordSearch(seconds float64) {
	m.SearchSeconds.Observe(seconds)
}

// RecordEvaluate records the time spent evaluating the winning model.
func (m *Metrics) RecordEvaluate(seconds float64) {
	m.EvaluateSeconds.Observe(seconds)
}

// SetSnapshotAge sets the current snapshot age.
func (m *Metrics) SetSnapshotAge(seconds float64) {
	m.SnapshotAgeSeconds.Set(seconds)
}

// SetSearchOutcome publishes the headline numbers of the last search.
func (m *Metrics) SetSearchOutcome(bestAIC, mape float64, failed int) {
	m.BestAIC.Set(bestAIC)
	m.MAPEPercent.Set(mape)
	m.CandidatesFailed.Set(float64(failed))
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
