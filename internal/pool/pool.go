package pool

import (
	"archive/zip"
	"container/list"
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"arkview/internal/errkind"
	"arkview/internal/logging"
	"arkview/internal/metrics"
)

const (
	// DefaultCapacity bounds open handles when no capacity is configured.
	DefaultCapacity = 12

	initialBackoff = 10 * time.Millisecond
	maxBackoff     = 250 * time.Millisecond
)

var errExhausted = errors.New("all handles in active use")

// Handle is an open archive reader bound to one path. It stays usable until
// Release is called; the pool never closes a handle with active holders.
type Handle struct {
	path    string
	reader  *zip.ReadCloser
	modTime time.Time

	// guarded by the owning pool's mutex
	refs     int
	lastUsed time.Time
	elem     *list.Element
}

// Path returns the archive path this handle reads from.
func (h *Handle) Path() string { return h.path }

// Reader returns the underlying ZIP reader. Valid until Release.
func (h *Handle) Reader() *zip.Reader { return &h.reader.Reader }

// ModTime returns the archive's modification time at open.
func (h *Handle) ModTime() time.Time { return h.modTime }

// Pool is a bounded LRU pool of open archive readers.
type Pool struct {
	mu             sync.Mutex
	capacity       int
	acquireTimeout time.Duration
	handles        map[string]*Handle
	order          *list.List // *Handle, front = most recently used
	closed         bool
}

// New creates a pool holding at most capacity open handles. Acquire waits
// up to acquireTimeout for a handle when the pool is saturated.
func New(capacity int, acquireTimeout time.Duration) *Pool {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if acquireTimeout <= 0 {
		acquireTimeout = 5 * time.Second
	}
	return &Pool{
		capacity:       capacity,
		acquireTimeout: acquireTimeout,
		handles:        make(map[string]*Handle),
		order:          list.New(),
	}
}

// Acquire opens or reuses a reader for path. When the pool is saturated
// with active handles it retries with exponential backoff until the
// acquire timeout elapses, then fails with PoolExhausted.
func (p *Pool) Acquire(ctx context.Context, path string) (*Handle, error) {
	start := time.Now()
	deadline := start.Add(p.acquireTimeout)
	backoff := initialBackoff

	for attempt := 0; ; attempt++ {
		h, err := p.tryAcquire(path)
		if err == nil {
			if attempt > 0 {
				logging.Debug("Handle for %s acquired on retry %d", path, attempt)
			}
			metrics.PoolWaitDuration.Observe(time.Since(start).Seconds())
			return h, nil
		}
		if !errors.Is(err, errExhausted) {
			metrics.PoolAcquiresTotal.WithLabelValues("error").Inc()
			return nil, err
		}

		if time.Now().Add(backoff).After(deadline) {
			metrics.PoolAcquiresTotal.WithLabelValues("exhausted").Inc()
			return nil, errkind.New(errkind.PoolExhausted, path,
				"no archive handle available after %v", p.acquireTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, errkind.Wrap(errkind.Canceled, path, ctx.Err())
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// tryAcquire performs one acquisition attempt under the pool lock.
func (p *Pool) tryAcquire(path string) (*Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errkind.New(errkind.IOFailure, path, "handle pool is closed")
	}

	if h, ok := p.handles[path]; ok {
		// An idle handle for a file that changed on disk is stale;
		// reopen so callers see the superseding archive.
		if h.refs == 0 && p.isStale(h) {
			p.remove(h)
		} else {
			h.refs++
			h.lastUsed = time.Now()
			p.order.MoveToFront(h.elem)
			metrics.PoolAcquiresTotal.WithLabelValues("hit").Inc()
			return h, nil
		}
	}

	if len(p.handles) >= p.capacity {
		if !p.evictIdle() {
			return nil, errExhausted
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errkind.Wrap(errkind.IOFailure, path, err)
	}

	reader, err := zip.OpenReader(path)
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return nil, errkind.Wrap(errkind.IOFailure, path, err)
		}
		return nil, errkind.Wrap(errkind.InvalidArchive, path, err)
	}

	h := &Handle{
		path:     path,
		reader:   reader,
		modTime:  info.ModTime(),
		refs:     1,
		lastUsed: time.Now(),
	}
	h.elem = p.order.PushFront(h)
	p.handles[path] = h

	metrics.PoolAcquiresTotal.WithLabelValues("open").Inc()
	metrics.PoolOpenHandles.Set(float64(len(p.handles)))
	return h, nil
}

func (p *Pool) isStale(h *Handle) bool {
	info, err := os.Stat(h.path)
	if err != nil {
		return true
	}
	return !info.ModTime().Equal(h.modTime)
}

// evictIdle closes the least-recently-used idle handle. Returns false when
// every handle has active holders.
func (p *Pool) evictIdle() bool {
	for elem := p.order.Back(); elem != nil; elem = elem.Prev() {
		h := elem.Value.(*Handle)
		if h.refs == 0 {
			p.remove(h)
			metrics.PoolEvictionsTotal.Inc()
			return true
		}
	}
	return false
}

// remove closes a handle and drops it from the pool. Caller holds p.mu and
// has verified refs == 0.
func (p *Pool) remove(h *Handle) {
	if err := h.reader.Close(); err != nil {
		logging.Warn("Failed to close archive handle %s: %v", h.path, err)
	}
	p.order.Remove(h.elem)
	delete(p.handles, h.path)
	metrics.PoolOpenHandles.Set(float64(len(p.handles)))
}

// Release returns a handle to the pool for reuse. It does not close the
// reader; idle handles are closed only by LRU eviction or pool shutdown.
func (p *Pool) Release(h *Handle) {
	if h == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if h.refs > 0 {
		h.refs--
	}
	h.lastUsed = time.Now()

	// Shutdown may have raced with in-flight work; finish the close now
	// that the last holder is gone.
	if p.closed && h.refs == 0 {
		if _, ok := p.handles[h.path]; ok {
			p.remove(h)
		}
	}
}

// Invalidate closes the idle handle for path, if any, forcing the next
// Acquire to reopen. Handles with active holders are left alone.
func (p *Pool) Invalidate(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h, ok := p.handles[path]; ok && h.refs == 0 {
		p.remove(h)
	}
}

// Len returns the number of currently open handles.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

// Close shuts the pool down: idle handles are closed immediately, active
// handles are closed as their holders release them, and further Acquire
// calls fail.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	for _, h := range p.handles {
		if h.refs == 0 {
			p.remove(h)
		}
	}
	logging.Debug("Handle pool closed (%d handles still held)", len(p.handles))
}
