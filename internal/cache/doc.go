// Package cache provides the bounded, tiered in-memory cache used by the
// retrieval pipeline.
//
// One generic LRU type backs three independently sized tiers: full-size
// images (small capacity, large entries), thumbnails (larger capacity,
// small entries) and archive metadata (large capacity, tiny entries).
// Capacity is measured in entry count. Each tier owns its values
// exclusively: when an entry is evicted, replaced or cleared, its release
// hook runs synchronously, exactly once, before the slot is reused.
//
// Tiers are constructed once at startup and injected into the components
// that need them; there is no package-level instance.
package cache
