// Package metrics exposes Prometheus collectors for the harvest pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	harvestPagesTotal          *prometheus.CounterVec
	harvestFetchFailuresTotal  *prometheus.CounterVec
	harvestArticlesTotal       *prometheus.CounterVec
	harvestParseFailuresTotal  *prometheus.CounterVec
	harvestFetchDurationSecond *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		harvestPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_pages_fetched_total",
				Help: "Pages fetched successfully, labeled by source and page kind.",
			},
			[]string{"source", "kind"},
		)

		harvestFetchFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_fetch_failures_total",
				Help: "Fetch attempts that failed, labeled by source and page kind.",
			},
			[]string{"source", "kind"},
		)

		harvestArticlesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_articles_total",
				Help: "Article outcomes per run, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		harvestParseFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_parse_failures_total",
				Help: "Normalization values recovered as null, labeled by source and field.",
			},
			[]string{"source", "field"},
		)

		harvestFetchDurationSecond = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvest_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by source.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"source"},
		)
	})
}

// CountPageFetched records a successful page fetch.
func CountPageFetched(source, kind string) {
	if harvestPagesTotal != nil {
		harvestPagesTotal.WithLabelValues(source, kind).Inc()
	}
}

// CountFetchFailure records a failed fetch attempt.
func CountFetchFailure(source, kind string) {
	if harvestFetchFailuresTotal != nil {
		harvestFetchFailuresTotal.WithLabelValues(source, kind).Inc()
	}
}

// CountArticle records an article outcome: "new", "duplicate" or "failed".
func CountArticle(source, outcome string) {
	if harvestArticlesTotal != nil {
		harvestArticlesTotal.WithLabelValues(source, outcome).Inc()
	}
}

// CountParseFailure records a field that normalized to null.
func CountParseFailure(source, field string) {
	if harvestParseFailuresTotal != nil {
		harvestParseFailuresTotal.WithLabelValues(source, field).Inc()
	}
}

// ObserveFetchDuration records the latency of a page fetch.
func ObserveFetchDuration(source string, d time.Duration) {
	if harvestFetchDurationSecond != nil {
		harvestFetchDurationSecond.WithLabelValues(source).Observe(d.Seconds())
	}
}
