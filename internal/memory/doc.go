// Package memory provides memory management utilities for controlling Go's
// runtime memory usage in containerized environments.
//
// GOMEMLIMIT is not derived from cgroup limits automatically the way
// GOMAXPROCS is, so [ConfigureFromEnv] computes it from the MEMORY_LIMIT
// and MEMORY_RATIO environment variables (typically populated via the
// Kubernetes Downward API). Call it early in main, before significant
// allocations.
//
// The [Monitor] type tracks heap usage against the configured limit and
// provides backpressure to analysis workers: when usage crosses the
// critical water mark, processing pauses until the collector brings usage
// back under the high water mark.
package memory
