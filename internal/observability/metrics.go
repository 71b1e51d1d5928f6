package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_request_duration_seconds",
			Help:    "Search request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"path", "status"},
	)

	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Total number of search requests",
		},
		[]string{"path", "status"},
	)

	IntentCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intent_cache_hits_total",
			Help: "Parsed-intent cache hits",
		},
	)

	IntentCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intent_cache_misses_total",
			Help: "Parsed-intent cache misses",
		},
	)

	IntentParsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intent_parses_total",
			Help: "Fresh intent parses by source path",
		},
		[]string{"source"},
	)

	IntentParseDegradations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intent_parse_degradations_total",
			Help: "AI parses that fell back to the rule engine",
		},
	)

	CompletionRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "completion_request_duration_seconds",
			Help:    "Text completion call duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)

	CatalogQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_query_duration_seconds",
			Help:    "Product catalog query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"query_type", "status"},
	)

	BatchGroupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_groups_total",
			Help: "Batch optimizer group resolutions by outcome",
		},
		[]string{"outcome"}, // cache_hit, fetched, error
	)

	BatchScoringSkips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "batch_scoring_skips_total",
			Help: "Products dropped from a batch group after a scoring failure",
		},
	)

	ScoringQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scoring_queue_depth",
			Help: "Tasks waiting in the scoring worker pool",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	SlowSearchCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slow_search_total",
			Help: "Searches exceeding the slow thresholds",
		},
		[]string{"severity", "path"},
	)

	InvalidationEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidation_events_total",
			Help: "Catalog change events processed by the cache invalidator",
		},
		[]string{"status"},
	)
)
