package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	IntentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_intents_created_total",
		Help: "The total number of intents created by type",
	}, []string{"intent_type"})

	WatchingIntents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "engine_watching_intents",
		Help: "The number of intents currently watching a price condition",
	})

	ScheduledIntents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "engine_scheduled_intents",
		Help: "The number of DCA intents currently scheduled",
	})

	ConditionsTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_conditions_triggered_total",
		Help: "The total number of price conditions that transitioned an intent to ready",
	}, []string{"intent_type"})

	Executions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_executions_total",
		Help: "The total number of execution attempts by outcome",
	}, []string{"intent_type", "outcome"})

	ExecutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engine_execution_seconds",
		Help:    "Time taken to execute intents",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"intent_type"})

	DCAExecutions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_dca_executions_total",
		Help: "The total number of recorded DCA executions",
	})

	DCACompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_dca_completed_total",
		Help: "The total number of DCA strategies that ran to completion",
	})

	FeedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_feed_fetches_total",
		Help: "The total number of price feed fetches by result",
	}, []string{"result"})

	FeedCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_feed_cache_hits_total",
		Help: "The total number of price requests served from the snapshot cache",
	})

	FeedStaleServes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_feed_stale_serves_total",
		Help: "The total number of price requests served from an expired snapshot after an upstream failure",
	})

	OracleQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_oracle_queries_total",
		Help: "The total number of oracle dictionary queries by result",
	}, []string{"result"})

	StoreWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_store_writes_total",
		Help: "The total number of whole-collection store writes",
	})

	StoredIntents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "engine_stored_intents",
		Help: "The number of intent records in the store",
	})
)
