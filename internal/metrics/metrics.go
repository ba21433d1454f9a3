package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Handle pool metrics
var (
	PoolOpenHandles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arkview_pool_open_handles",
			Help: "Number of archive handles currently open",
		},
	)

	PoolAcquiresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arkview_pool_acquires_total",
			Help: "Total number of handle acquisitions",
		},
		[]string{"outcome"}, // "hit", "open", "exhausted", "error"
	)

	PoolEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arkview_pool_evictions_total",
			Help: "Total number of idle handles evicted to make room",
		},
	)

	PoolWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arkview_pool_wait_duration_seconds",
			Help:    "Time spent waiting for a handle to become available",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)
)

// Tiered cache metrics
var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arkview_cache_hits_total",
			Help: "Total number of cache hits per tier",
		},
		[]string{"tier"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arkview_cache_misses_total",
			Help: "Total number of cache misses per tier",
		},
		[]string{"tier"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arkview_cache_evictions_total",
			Help: "Total number of cache evictions per tier",
		},
		[]string{"tier"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arkview_cache_entries",
			Help: "Current number of cached entries per tier",
		},
		[]string{"tier"},
	)

	CacheWeightBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arkview_cache_weight_bytes",
			Help: "Estimated byte weight of cached entries per tier",
		},
		[]string{"tier"},
	)
)

// Analyzer metrics
var (
	AnalyzeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arkview_analyze_total",
			Help: "Total number of archive analyses by outcome",
		},
		[]string{"outcome"}, // "valid", error kind
	)

	AnalyzeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arkview_analyze_duration_seconds",
			Help:    "Archive analysis duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	AnalyzeEntries = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arkview_analyze_entries",
			Help:    "Number of entries seen per analyzed archive",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)
)

// Scan coordinator metrics
var (
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arkview_scans_total",
			Help: "Total number of scans by terminal state",
		},
		[]string{"state"}, // "completed", "canceled", "failed"
	)

	ScanIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arkview_scan_running",
			Help: "Whether a scan is currently running (1 = running, 0 = idle)",
		},
	)

	ScanArchivesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arkview_scan_archives_processed_total",
			Help: "Total number of archives processed across all scans",
		},
	)

	ScanBatchesFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arkview_scan_batches_flushed_total",
			Help: "Total number of result batches flushed to the consumer",
		},
	)

	ScanWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arkview_scan_workers",
			Help: "Number of workers used by the current scan",
		},
	)

	ScanLastDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arkview_scan_last_duration_seconds",
			Help: "Duration of the last completed scan in seconds",
		},
	)
)

// Retrieval service metrics
var (
	RetrievalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arkview_retrievals_total",
			Help: "Total number of image retrievals by outcome",
		},
		[]string{"outcome"}, // "hit", "decoded", error kind
	)

	RetrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arkview_retrieval_duration_seconds",
			Help:    "Image retrieval duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"variant"}, // "original", "thumbnail"
	)

	DecodeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arkview_decode_total",
			Help: "Total number of image decodes by backend and status",
		},
		[]string{"backend", "status"}, // backend: "vips", "imaging"
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arkview_memory_usage_ratio",
			Help: "Heap allocation as a ratio of the configured limit (0.0-1.0)",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arkview_memory_paused",
			Help: "Whether processing is paused due to memory pressure",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arkview_memory_gc_pauses_total",
			Help: "Total number of times processing was paused for memory",
		},
	)
)
