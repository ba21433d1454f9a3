// Package pool provides a bounded pool of open archive readers.
//
// Opening a ZIP reader costs a file handle and a central-directory parse,
// so readers are kept open and reused across requests. The pool holds at
// most N handles; when full, the least-recently-used idle handle is closed
// to make room. If every handle is in active use, acquisition retries with
// bounded exponential backoff before failing with PoolExhausted.
//
// All pool mutations (open, evict, recency tracking) happen under a single
// mutex. Reads through an acquired handle do not hold the pool lock, and a
// handle is never closed while a caller still holds it.
package pool
