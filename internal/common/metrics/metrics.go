package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DiscoveryRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_requests_total",
			Help: "Total number of discovery requests by outcome",
		},
		[]string{"outcome"},
	)

	DiscoveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "discovery_request_duration_seconds",
			Help: "Duration of discovery requests in seconds",
		},
	)

	HardFilterDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hard_filter_drops_total",
			Help: "Grants dropped by hard filters, per filter name",
		},
		[]string{"filter"},
	)

	GrantsScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grants_scored_total",
			Help: "Total number of grants scored",
		},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_cache_hits_total",
			Help: "Match cache hits",
		},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_cache_misses_total",
			Help: "Match cache misses by reason",
		},
		[]string{"reason"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_cache_errors_total",
			Help: "Match cache store errors by operation",
		},
		[]string{"operation"},
	)

	EnrichmentRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_enrichment_requests_total",
			Help: "AI enrichment calls by status",
		},
		[]string{"status"},
	)

	EnrichmentTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_enrichment_tokens_total",
			Help: "Tokens consumed by AI enrichment",
		},
		[]string{"kind"},
	)
)
