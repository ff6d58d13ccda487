package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "trendmerge"

// Metrics holds the merge counters exposed at /metrics.
type Metrics struct {
	// MergesTotal counts /process requests by outcome
	// (ok, bad_request, input_error, error).
	MergesTotal *prometheus.CounterVec
	// MergeDuration measures ingest through render.
	MergeDuration prometheus.Histogram
	// MergedRows observes the reference clock length of successful merges.
	MergedRows prometheus.Histogram
	// InputWarnings counts skipped secondaries, skipped columns and publish failures.
	InputWarnings prometheus.Counter
	// PublishedLinks counts links returned by publishers.
	PublishedLinks *prometheus.CounterVec
}

// NewMetrics registers the metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MergesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "merges_total",
			Help:      "Merge requests by outcome.",
		}, []string{"status"}),
		MergeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "merge_duration_seconds",
			Help:      "Time spent merging and rendering one request.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		MergedRows: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "merged_rows",
			Help:      "Rows in the merged table.",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
		}),
		InputWarnings: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "warnings_total",
			Help:      "Non-fatal problems recorded during merges.",
		}),
		PublishedLinks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "published_links_total",
			Help:      "Artifacts published, by target.",
		}, []string{"target"}),
	}
}
