package cache

import (
	"fmt"
	"sync"

	"arkview/internal/logging"
	"arkview/internal/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Key identifies one cached value: an archive path, an entry inside it, and
// a size-variant tag. Two requests for different target sizes of the same
// entry never collide because the variant differs.
type Key struct {
	Archive string
	Entry   string
	Variant string
}

// OriginalKey returns the cache key for a full-size decode of an entry.
func OriginalKey(archive, entry string) Key {
	return Key{Archive: archive, Entry: entry, Variant: "original"}
}

// SizedKey returns the cache key for a decode resized to fit width x height.
func SizedKey(archive, entry string, width, height int) Key {
	return Key{Archive: archive, Entry: entry, Variant: fmt.Sprintf("%dx%d", width, height)}
}

// MetaKey returns the cache key for an archive's metadata record.
func MetaKey(archive string) Key {
	return Key{Archive: archive, Variant: "meta"}
}

// Stats is a point-in-time snapshot of one tier's counters.
type Stats struct {
	Tier        string `json:"tier"`
	Hits        int64  `json:"hits"`
	Misses      int64  `json:"misses"`
	Evictions   int64  `json:"evictions"`
	CurrentSize int    `json:"currentSize"`
	Capacity    int    `json:"capacity"`
	WeightBytes int64  `json:"weightBytes"`
}

// Cache is a bounded least-recently-used cache for one tier. All operations
// are synchronized by a single per-tier mutex; the release hook for an
// evicted value runs under that lock, before the slot is reused, so no two
// live values ever share a slot.
type Cache[V any] struct {
	mu       sync.Mutex
	tier     string
	capacity int
	lru      *lru.Cache[Key, V]

	release func(Key, V)
	weigher func(V) int64

	hits      int64
	misses    int64
	evictions int64
	weight    int64
}

// Option configures a Cache at construction time.
type Option[V any] func(*Cache[V])

// WithRelease sets the hook invoked exactly once when a value leaves the
// cache (eviction, replacement or clear). The hook runs synchronously under
// the tier lock and must not call back into the cache.
func WithRelease[V any](release func(Key, V)) Option[V] {
	return func(c *Cache[V]) { c.release = release }
}

// WithWeigher sets the byte-estimate function used for weight accounting.
// Weight is reported in stats and metrics; capacity remains entry-count.
func WithWeigher[V any](weigher func(V) int64) Option[V] {
	return func(c *Cache[V]) { c.weigher = weigher }
}

// New creates a tier with the given name and entry-count capacity.
func New[V any](tier string, capacity int, opts ...Option[V]) (*Cache[V], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("cache tier %q: capacity must be at least 1, got %d", tier, capacity)
	}

	c := &Cache[V]{tier: tier, capacity: capacity}
	for _, opt := range opts {
		opt(c)
	}

	// The inner LRU fires this for every removal path: capacity eviction,
	// explicit Remove, Purge and Resize shrinkage. Release therefore runs
	// exactly once per stored value.
	inner, err := lru.NewWithEvict(capacity, func(key Key, value V) {
		c.onEvict(key, value)
	})
	if err != nil {
		return nil, fmt.Errorf("cache tier %q: %w", tier, err)
	}
	c.lru = inner

	return c, nil
}

// onEvict is called by the inner LRU with c.mu already held by the
// operation that triggered the removal.
func (c *Cache[V]) onEvict(key Key, value V) {
	if c.weigher != nil {
		c.weight -= c.weigher(value)
		metrics.CacheWeightBytes.WithLabelValues(c.tier).Set(float64(c.weight))
	}
	if c.release != nil {
		c.release(key, value)
	}
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[V]) Get(key Key) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, ok := c.lru.Get(key)
	if ok {
		c.hits++
		metrics.CacheHits.WithLabelValues(c.tier).Inc()
	} else {
		c.misses++
		metrics.CacheMisses.WithLabelValues(c.tier).Inc()
	}
	return value, ok
}

// Contains reports whether key is cached without updating recency.
func (c *Cache[V]) Contains(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(key)
}

// Put inserts a value, evicting least-recently-used entries as needed to
// stay under capacity. Replacing an existing key releases the old value
// first.
func (c *Cache[V]) Put(key Key, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// An in-place update would strand the old value without its release
	// hook, so replacement goes through the eviction path.
	if c.lru.Contains(key) {
		c.lru.Remove(key)
		c.evictions++
		metrics.CacheEvictions.WithLabelValues(c.tier).Inc()
	}

	if evicted := c.lru.Add(key, value); evicted {
		c.evictions++
		metrics.CacheEvictions.WithLabelValues(c.tier).Inc()
	}

	if c.weigher != nil {
		c.weight += c.weigher(value)
		metrics.CacheWeightBytes.WithLabelValues(c.tier).Set(float64(c.weight))
	}
	metrics.CacheEntries.WithLabelValues(c.tier).Set(float64(c.lru.Len()))
}

// Remove drops a single key, releasing its value if present.
func (c *Cache[V]) Remove(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	present := c.lru.Remove(key)
	if present {
		metrics.CacheEntries.WithLabelValues(c.tier).Set(float64(c.lru.Len()))
	}
	return present
}

// RemoveArchive drops every key belonging to the given archive path,
// releasing each value. Used to supersede cached results when an archive
// changes on disk.
func (c *Cache[V]) RemoveArchive(archive string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range c.lru.Keys() {
		if key.Archive == archive && c.lru.Remove(key) {
			removed++
		}
	}
	if removed > 0 {
		metrics.CacheEntries.WithLabelValues(c.tier).Set(float64(c.lru.Len()))
		logging.Debug("Cache tier %s dropped %d entries for %s", c.tier, removed, archive)
	}
	return removed
}

// Clear releases every cached value and empties the tier.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.lru.Len()
	c.lru.Purge()
	if n > 0 {
		logging.Debug("Cache tier %s cleared (%d entries released)", c.tier, n)
	}
	metrics.CacheEntries.WithLabelValues(c.tier).Set(0)
}

// Resize changes the tier capacity, releasing least-recently-used entries
// if the new capacity is smaller than the current size.
func (c *Cache[V]) Resize(capacity int) error {
	if capacity < 1 {
		return fmt.Errorf("cache tier %q: capacity must be at least 1, got %d", c.tier, capacity)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := c.lru.Resize(capacity)
	c.capacity = capacity
	c.evictions += int64(evicted)
	if evicted > 0 {
		metrics.CacheEvictions.WithLabelValues(c.tier).Add(float64(evicted))
	}
	metrics.CacheEntries.WithLabelValues(c.tier).Set(float64(c.lru.Len()))

	logging.Info("Cache tier %s resized to %d entries (%d evicted)", c.tier, capacity, evicted)
	return nil
}

// Len returns the current number of cached entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns a snapshot of the tier's counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Tier:        c.tier,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		CurrentSize: c.lru.Len(),
		Capacity:    c.capacity,
		WeightBytes: c.weight,
	}
}
