package retrieval

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"arkview/internal/analyzer"
	"arkview/internal/cache"
	"arkview/internal/codec"
	"arkview/internal/errkind"
	"arkview/internal/logging"
	"arkview/internal/memory"
	"arkview/internal/metrics"
	"arkview/internal/pool"
	"arkview/internal/workers"
)

var errNoSuchEntry = errors.New("no such entry in archive")

// ErrClosed is returned by Submit once Close has been called.
var ErrClosed = errors.New("retrieval service is closed")

// Limits bounds a single retrieval. A zero value disables the corresponding
// ceiling.
type Limits struct {
	// MaxThumbnailBytes caps the uncompressed entry size loaded for a
	// sized request.
	MaxThumbnailBytes int64
	// MaxOriginalBytes caps the uncompressed entry size loaded for a
	// full-size request.
	MaxOriginalBytes int64
	// Analyze applies when a miss forces a fresh archive analysis.
	Analyze analyzer.Limits
}

// Config controls the retrieval worker pool and decode targets.
type Config struct {
	// Workers is the async worker count (0 = derive from GOMAXPROCS).
	Workers int
	// QueueDepth bounds pending async submissions.
	QueueDepth int
	// Limits bounds entry loads and re-analysis.
	Limits Limits
}

// Request names one image to retrieve. Width and Height of zero request the
// full-size decode; any positive pair requests a decode fitted within that
// box.
type Request struct {
	Archive string
	Entry   string
	Width   int
	Height  int
}

// Sized reports whether the request targets a bounded thumbnail rather than
// the full-size decode.
func (r Request) Sized() bool {
	return r.Width > 0 && r.Height > 0
}

func (r Request) key() cache.Key {
	if r.Sized() {
		return cache.SizedKey(r.Archive, r.Entry, r.Width, r.Height)
	}
	return cache.OriginalKey(r.Archive, r.Entry)
}

func (r Request) variant() string {
	if r.Sized() {
		return "thumbnail"
	}
	return "original"
}

// Response resolves one submitted request. Exactly one Response is delivered
// per Submit; Raster is nil when Err is set.
type Response struct {
	ID        uint64
	Request   Request
	Raster    *codec.Raster
	FromCache bool
	Err       error
	Elapsed   time.Duration
}

type submission struct {
	id  uint64
	ctx context.Context
	req Request
}

// Service retrieves decoded images through the handle pool and tiered
// cache.
type Service struct {
	pool     *pool.Pool
	analyzer *analyzer.Analyzer
	codec    *codec.Codec
	monitor  *memory.Monitor

	full  *cache.Cache[*codec.Raster]
	thumb *cache.Cache[*codec.Raster]
	meta  *cache.Cache[*analyzer.ArchiveInfo]

	limits Limits

	nextID   atomic.Uint64
	requests chan submission
	results  chan Response

	// mu orders Submit against Close so no submission is ever sent on a
	// closed channel.
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a retrieval Service and starts its worker pool. monitor may be
// nil to disable memory backpressure.
func New(p *pool.Pool, an *analyzer.Analyzer, cd *codec.Codec,
	full, thumb *cache.Cache[*codec.Raster], meta *cache.Cache[*analyzer.ArchiveInfo],
	monitor *memory.Monitor, config Config) *Service {

	numWorkers := config.Workers
	if numWorkers <= 0 {
		numWorkers = workers.ForIO(16)
	}
	queueDepth := config.QueueDepth
	if queueDepth < 1 {
		queueDepth = 64
	}

	s := &Service{
		pool:     p,
		analyzer: an,
		codec:    cd,
		monitor:  monitor,
		full:     full,
		thumb:    thumb,
		meta:     meta,
		limits:   config.Limits,
		requests: make(chan submission, queueDepth),
		results:  make(chan Response, queueDepth),
	}

	for i := 0; i < numWorkers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	logging.Debug("Retrieval service started with %d workers", numWorkers)

	return s
}

// Results returns the channel on which async responses are delivered.
func (s *Service) Results() <-chan Response {
	return s.results
}

// Submit enqueues a request for asynchronous retrieval and returns its id.
// The matching Response arrives on Results exactly once. Submit blocks only
// when the queue is full; a canceled context resolves the request with a
// Canceled error instead of dropping it. After Close, Submit returns
// ErrClosed and delivers nothing.
func (s *Service) Submit(ctx context.Context, req Request) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}

	id := s.nextID.Add(1)
	select {
	case s.requests <- submission{id: id, ctx: ctx, req: req}:
	case <-ctx.Done():
		s.results <- Response{
			ID:      id,
			Request: req,
			Err:     errkind.Wrap(errkind.Canceled, req.Archive, ctx.Err()),
		}
	}
	return id, nil
}

// Get retrieves synchronously, bypassing the async queue.
func (s *Service) Get(ctx context.Context, req Request) (*codec.Raster, error) {
	raster, _, err := s.retrieve(ctx, req)
	return raster, err
}

// Close stops the worker pool. Pending submissions are resolved before the
// results channel closes; later Submit calls fail with ErrClosed.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.requests)
		s.mu.Unlock()

		s.wg.Wait()
		close(s.results)
	})
}

func (s *Service) worker() {
	defer s.wg.Done()

	for sub := range s.requests {
		if s.monitor != nil {
			s.monitor.WaitIfPaused()
		}

		start := time.Now()
		raster, fromCache, err := s.retrieve(sub.ctx, sub.req)

		s.results <- Response{
			ID:        sub.id,
			Request:   sub.req,
			Raster:    raster,
			FromCache: fromCache,
			Err:       err,
			Elapsed:   time.Since(start),
		}
	}
}

// retrieve serves one request: cache first, then metadata, entry read and
// decode. Nothing is cached on failure.
func (s *Service) retrieve(ctx context.Context, req Request) (*codec.Raster, bool, error) {
	start := time.Now()
	tier := s.tierFor(req)
	key := req.key()

	if raster, ok := tier.Get(key); ok {
		metrics.RetrievalsTotal.WithLabelValues("hit").Inc()
		metrics.RetrievalDuration.WithLabelValues(req.variant()).Observe(time.Since(start).Seconds())
		return raster, true, nil
	}

	info, err := s.metadata(ctx, req.Archive)
	if err != nil {
		metrics.RetrievalsTotal.WithLabelValues("error").Inc()
		return nil, false, err
	}

	if !info.HasEntry(req.Entry) {
		metrics.RetrievalsTotal.WithLabelValues("error").Inc()
		return nil, false, errkind.WrapEntry(errkind.IOFailure, req.Archive, req.Entry,
			errNoSuchEntry)
	}

	data, err := s.readEntry(ctx, req)
	if err != nil {
		metrics.RetrievalsTotal.WithLabelValues("error").Inc()
		return nil, false, err
	}

	raster, err := s.decode(req, data)
	if err != nil {
		metrics.RetrievalsTotal.WithLabelValues("error").Inc()
		return nil, false, errkind.WrapEntry(errkind.CorruptEntry, req.Archive, req.Entry, err)
	}

	tier.Put(key, raster)

	metrics.RetrievalsTotal.WithLabelValues("miss").Inc()
	metrics.RetrievalDuration.WithLabelValues(req.variant()).Observe(time.Since(start).Seconds())
	logging.Debug("Retrieved %s!%s (%s) in %v", req.Archive, req.Entry, req.variant(), time.Since(start))
	return raster, false, nil
}

// metadata returns the archive's analysis record, re-analyzing when the
// record is missing or the archive changed on disk. A superseding analysis
// drops every cached raster for the old version.
func (s *Service) metadata(ctx context.Context, archive string) (*analyzer.ArchiveInfo, error) {
	metaKey := cache.MetaKey(archive)

	if info, ok := s.meta.Get(metaKey); ok {
		stat, err := os.Stat(archive)
		if err != nil {
			return nil, errkind.Wrap(errkind.IOFailure, archive, err)
		}
		if stat.ModTime().Equal(info.ModTime) {
			return info, nil
		}
		logging.Info("Archive %s changed on disk, superseding cached results", archive)
		s.supersede(archive)
	}

	info, err := s.analyzer.Analyze(ctx, archive, s.limits.Analyze)
	if err != nil {
		return nil, err
	}
	s.meta.Put(metaKey, info)
	return info, nil
}

// supersede drops all cached state for an archive whose content changed.
func (s *Service) supersede(archive string) {
	s.meta.Remove(cache.MetaKey(archive))
	s.full.RemoveArchive(archive)
	s.thumb.RemoveArchive(archive)
	s.pool.Invalidate(archive)
}

// readEntry loads one entry's uncompressed bytes through the handle pool,
// enforcing the per-variant load ceiling before decompressing.
func (s *Service) readEntry(ctx context.Context, req Request) ([]byte, error) {
	handle, err := s.pool.Acquire(ctx, req.Archive)
	if err != nil {
		return nil, err
	}
	defer s.pool.Release(handle)

	for _, f := range handle.Reader().File {
		if f.Name != req.Entry {
			continue
		}

		ceiling := s.limits.MaxOriginalBytes
		if req.Sized() {
			ceiling = s.limits.MaxThumbnailBytes
		}
		if ceiling > 0 && int64(f.UncompressedSize64) > ceiling {
			return nil, errkind.New(errkind.SizeLimitExceeded, req.Archive,
				"entry %q is %d bytes, limit %d", req.Entry, f.UncompressedSize64, ceiling)
		}

		rc, err := f.Open()
		if err != nil {
			return nil, errkind.WrapEntry(errkind.CorruptEntry, req.Archive, req.Entry, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, errkind.WrapEntry(errkind.CorruptEntry, req.Archive, req.Entry, err)
		}
		return data, nil
	}

	return nil, errkind.WrapEntry(errkind.IOFailure, req.Archive, req.Entry, errNoSuchEntry)
}

func (s *Service) decode(req Request, data []byte) (*codec.Raster, error) {
	if req.Sized() {
		return s.codec.Thumbnail(data, req.Width, req.Height)
	}
	return s.codec.Decode(data)
}

func (s *Service) tierFor(req Request) *cache.Cache[*codec.Raster] {
	if req.Sized() {
		return s.thumb
	}
	return s.full
}
