// Copyright 2025 James Ross
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ChecksPerformed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checks_performed_total",
		Help: "Total number of CHECK requests issued by the explorer",
	})
	QueriesEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "queries_enqueued_total",
		Help: "Total number of parameter sets enqueued for download",
	})
	QueriesCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "queries_completed_total",
		Help: "Total number of parameter sets whose download finished cleanly",
	})
	QueriesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "queries_failed_total",
		Help: "Total number of parameter sets marked FAILED",
	})
	QueriesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queries_skipped_total",
		Help: "Total number of parameter sets pruned without download",
	}, []string{"reason"})
	PagesDownloaded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pages_downloaded_total",
		Help: "Total number of result pages successfully fetched and written",
	})
	PageFetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "page_fetch_duration_seconds",
		Help:    "Histogram of single-page search request durations",
		Buckets: prometheus.DefBuckets,
	})
	LedgerEventsAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_events_appended_total",
		Help: "Total number of events appended to the ledger",
	})
	CircuitBreakerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "0 Closed, 1 HalfOpen, 2 Open",
	})
	CircuitBreakerTrips = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "circuit_breaker_trips_total",
		Help: "Count of times the breaker transitioned to Open",
	})
	QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "queue_depth",
		Help: "Current number of buffered items per pipeline queue",
	}, []string{"queue"})
)

func init() {
	prometheus.MustRegister(
		ChecksPerformed,
		QueriesEnqueued,
		QueriesCompleted,
		QueriesFailed,
		QueriesSkipped,
		PagesDownloaded,
		PageFetchDuration,
		LedgerEventsAppended,
		CircuitBreakerState,
		CircuitBreakerTrips,
		QueueDepth,
	)
}
