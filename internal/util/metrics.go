package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExceptionsInsertedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oos_exceptions_inserted_total",
		Help: "Total number of newly inserted exception records",
	}, []string{"source"})

	ExceptionsUpdatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oos_exceptions_updated_total",
		Help: "Total number of refreshed (still-active) exception records",
	}, []string{"source"})

	ExceptionsResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oos_exceptions_resolved_total",
		Help: "Total number of exception records transitioned to resolved",
	}, []string{"source"})

	ExceptionsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oos_exceptions_skipped_total",
		Help: "Total number of fetched orders skipped for missing identity",
	}, []string{"source"})

	RefreshFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oos_refresh_failures_total",
		Help: "Total number of failed source refresh cycles",
	}, []string{"source"})

	SourcePagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oos_source_pages_fetched_total",
		Help: "Total number of pages fetched from source platforms",
	}, []string{"source"})

	ReconcileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oos_reconcile_duration_seconds",
		Help:    "Latency of exception table reconciliation",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	AnalyticsDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "oos_analytics_duration_seconds",
		Help:    "Latency of analytics snapshot computation",
		Buckets: prometheus.DefBuckets,
	})

	InventoryLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oos_inventory_lookups_total",
		Help: "Total number of live inventory lookups",
	}, []string{"provider"})

	InventoryLookupFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oos_inventory_lookup_failures_total",
		Help: "Total number of degraded (zero-value) inventory lookups",
	}, []string{"provider"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
