// Package metrics provides Prometheus instrumentation for the arkview
// engine.
//
// All metrics are registered with the default registry via promauto and are
// prefixed with "arkview_" to avoid naming collisions. The metrics are
// organized per subsystem: handle pool, tiered cache, analyzer, scan
// coordinator, retrieval service, and Go runtime memory.
//
// To record metrics from other packages, import this package and use the
// exported metric variables:
//
//	metrics.CacheHits.WithLabelValues("thumbnail").Inc()
//	metrics.PoolOpenHandles.Set(4)
//	metrics.AnalyzeDuration.Observe(0.031)
package metrics
