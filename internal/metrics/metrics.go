package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenesProcessed counts completed queries by outcome.
	GenesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genefetch_genes_processed_total",
			Help: "Total number of gene queries completed",
		},
		[]string{"status"},
	)

	// SelectionsByMethod counts selections per decision tier.
	SelectionsByMethod = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genefetch_selections_total",
			Help: "Total selections by method",
		},
		[]string{"method"},
	)

	// ServiceCalls counts collaborator calls per service.
	ServiceCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genefetch_service_calls_total",
			Help: "Total external service calls",
		},
		[]string{"service"},
	)

	// ServiceErrors counts classified collaborator failures.
	ServiceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genefetch_service_errors_total",
			Help: "Total external service errors by classified kind",
		},
		[]string{"service", "kind"},
	)

	// ServiceLatency tracks collaborator call latency.
	ServiceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genefetch_service_latency_seconds",
			Help:    "External service call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	// CacheOps counts cache hits and misses per namespace.
	CacheOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genefetch_cache_ops_total",
			Help: "Cache operations by namespace and result",
		},
		[]string{"namespace", "result"},
	)

	// BatchPending tracks queries not yet completed in the running
	// batch.
	BatchPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "genefetch_batch_pending",
			Help: "Queries remaining in the current batch",
		},
	)

	// ItemLatency tracks end-to-end per-gene pipeline latency.
	ItemLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "genefetch_item_latency_seconds",
			Help:    "Per-gene pipeline latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// CheckpointWrites counts durable checkpoint snapshots.
	CheckpointWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "genefetch_checkpoint_writes_total",
			Help: "Total checkpoint snapshots written",
		},
	)
)
