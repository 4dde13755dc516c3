// Package metrics holds the Prometheus collectors for the routing pipeline.
// Collectors are registered once via promauto; services and workers increment
// them directly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ComplaintsIngested counts complaints accepted at the ingest boundary.
	ComplaintsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civicroute_complaints_ingested_total",
		Help: "Total number of complaints ingested.",
	})

	// ComplaintsEnriched counts enrichment passes over single complaints.
	ComplaintsEnriched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civicroute_complaints_enriched_total",
		Help: "Total number of complaint enrichments computed.",
	})

	// EnrichmentFallbacks counts enrichments that degraded to the minimal
	// fallback record after an internal failure.
	EnrichmentFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civicroute_enrichment_fallbacks_total",
		Help: "Total number of enrichments that fell back to the minimal record.",
	})

	// DefaultMappings counts resolutions that fell through to the default
	// department.
	DefaultMappings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civicroute_default_mappings_total",
		Help: "Total number of resolutions that used the default department.",
	})

	// BreachSignals counts first-breach notifications claimed by the SLA scan.
	BreachSignals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civicroute_sla_breach_signals_total",
		Help: "Total number of newly detected SLA breaches.",
	})

	// Notifications counts queue and delivery outcomes by status
	// (queued/sent/failed/retried).
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civicroute_notifications_total",
		Help: "Total notification queue and delivery outcomes.",
	}, []string{"status"})

	// MappingCache counts cache lookups by result (hit/miss/error).
	MappingCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civicroute_mapping_cache_lookups_total",
		Help: "Total mapping cache lookups by result.",
	}, []string{"result"})

	// PipelineTickDuration observes the wall time of one pipeline worker pass.
	PipelineTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "civicroute_pipeline_tick_duration_seconds",
		Help:    "Duration of one pipeline worker pass in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	// StreamSubscriptions gauges the number of live stream subscriptions.
	StreamSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "civicroute_stream_subscriptions",
		Help: "Current number of live stream subscriptions.",
	})
)
