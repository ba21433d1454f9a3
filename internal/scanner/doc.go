// Package scanner coordinates directory scans over many archives.
//
// A scan enumerates archive files under a root, dispatches each to a
// bounded worker pool for analysis, and delivers results to the consumer as
// batched, immutable messages on a channel. Batches flush when they reach a
// size threshold or when a flush interval elapses, whichever comes first;
// progress notifications are rate-limited rather than per-item. The
// consumer is never called into directly and is never blocked by workers.
//
// Cancellation is cooperative: in-flight analyses observe the flag at their
// next iteration boundary, no new archives are dispatched, and the scan
// terminates with a Canceled state instead of raising. One bad archive
// never aborts a scan; only an unreadable root is fatal.
package scanner
