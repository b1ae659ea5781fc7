// Package obs holds the engine's observability surface: Prometheus metrics
// for the three public operations (train, add, search).
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters and histograms the engine records into. Each
// Metrics owns a private registry rather than registering into
// prometheus.DefaultRegisterer, so multiple indexes in one process (or
// repeated construction in tests) don't collide on metric names.
type Metrics struct {
	Registry *prometheus.Registry

	TrainingsTotal  prometheus.Counter
	TrainingSeconds prometheus.Histogram

	VectorsAdded  prometheus.Counter
	AddErrors     prometheus.Counter
	AddBatchBytes prometheus.Histogram

	SearchesTotal    prometheus.Counter
	SearchErrors     prometheus.Counter
	SearchLatency    prometheus.Histogram
	CellsProbed      prometheus.Histogram
	CandidatesScored prometheus.Histogram
}

// NewMetrics creates a fresh metrics instance with its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return &Metrics{
		Registry: reg,

		TrainingsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ivfadc_trainings_total",
			Help: "Total number of Train() calls that completed successfully.",
		}),
		TrainingSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name: "ivfadc_training_seconds",
			Help: "Wall-clock duration of Train() calls.",
		}),

		VectorsAdded: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ivfadc_vectors_added_total",
			Help: "Total number of base vectors appended to the inverted index.",
		}),
		AddErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ivfadc_add_errors_total",
			Help: "Total number of Add() calls that failed and were rolled back.",
		}),
		AddBatchBytes: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name: "ivfadc_add_batch_vectors",
			Help: "Number of vectors per Add() batch.",
		}),

		SearchesTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ivfadc_searches_total",
			Help: "Total number of Search() calls.",
		}),
		SearchErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ivfadc_search_errors_total",
			Help: "Total number of Search() calls that returned an error.",
		}),
		SearchLatency: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name: "ivfadc_search_latency_seconds",
			Help: "Search() wall-clock latency.",
		}),
		CellsProbed: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "ivfadc_search_cells_probed",
			Help:    "Number of coarse cells probed per search.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		CandidatesScored: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "ivfadc_search_candidates_scored",
			Help:    "Number of PQ codes scored per search.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 12),
		}),
	}
}
