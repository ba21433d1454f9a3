package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"arkview/internal/analyzer"
	"arkview/internal/cache"
	"arkview/internal/errkind"
	"arkview/internal/imagetypes"
	"arkview/internal/logging"
	"arkview/internal/memory"
	"arkview/internal/metrics"
	"arkview/internal/workers"
)

// State is the scan lifecycle state.
type State string

const (
	// StateIdle means no scan has been started.
	StateIdle State = "idle"
	// StateScanning means a scan is in progress.
	StateScanning State = "scanning"
	// StateCompleted means the last scan finished normally.
	StateCompleted State = "completed"
	// StateCanceled means the last scan was canceled cooperatively.
	StateCanceled State = "canceled"
	// StateFailed means the last scan aborted on a root-level failure.
	StateFailed State = "failed"
)

// Config controls scan batching, progress cadence and worker count.
type Config struct {
	// Workers is the analysis worker count (0 = derive from GOMAXPROCS).
	Workers int
	// BatchSize flushes a result batch once it holds this many results.
	BatchSize int
	// FlushInterval flushes a non-empty batch after this long regardless
	// of size.
	FlushInterval time.Duration
	// ProgressEvery emits a progress event every N processed archives.
	ProgressEvery int
	// Limits applies to each per-archive analysis independently.
	Limits analyzer.Limits
}

// DefaultConfig returns scan defaults sized for large collections.
func DefaultConfig() Config {
	return Config{
		Workers:       0,
		BatchSize:     32,
		FlushInterval: 250 * time.Millisecond,
		ProgressEvery: 5,
		Limits: analyzer.Limits{
			MaxTotalBytes: 2 << 30,
			MaxEntryCount: 10000,
			Timeout:       30 * time.Second,
		},
	}
}

// Failure records one archive that did not validate. Failures ride in
// batches next to successful ArchiveInfo records.
type Failure struct {
	Path    string       `json:"path"`
	Kind    errkind.Kind `json:"kind"`
	Message string       `json:"message"`
}

// Event is a message delivered to the consumer. All event payloads are
// copies; no mutable state is shared across the worker/consumer boundary.
type Event interface {
	event()
}

// BatchEvent carries newly validated archives and recorded failures.
type BatchEvent struct {
	Archives []*analyzer.ArchiveInfo
	Failures []Failure
}

// ProgressEvent is a rate-limited progress notification.
type ProgressEvent struct {
	Processed int
	Total     int
	Valid     int
}

// DoneEvent is the terminal scan outcome.
type DoneEvent struct {
	State   State
	Summary Summary
}

// Summary describes a finished scan.
type Summary struct {
	Processed int           `json:"processed"`
	Total     int           `json:"total"`
	Valid     int           `json:"valid"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed"`
	Err       string        `json:"error,omitempty"`
}

func (BatchEvent) event()    {}
func (ProgressEvent) event() {}
func (DoneEvent) event()     {}

// Coordinator runs scans. One scan at a time; events from successive scans
// are delivered on the same channel.
type Coordinator struct {
	analyzer *analyzer.Analyzer
	meta     *cache.Cache[*analyzer.ArchiveInfo]
	monitor  *memory.Monitor
	config   Config

	events chan Event

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	running bool

	processed atomic.Int64
	valid     atomic.Int64
	failed    atomic.Int64
	total     atomic.Int64
}

// New creates a Coordinator. meta may be nil to skip metadata pre-warming;
// monitor may be nil to disable memory backpressure.
func New(an *analyzer.Analyzer, meta *cache.Cache[*analyzer.ArchiveInfo], monitor *memory.Monitor, config Config) *Coordinator {
	if config.BatchSize < 1 {
		config.BatchSize = 32
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 250 * time.Millisecond
	}
	if config.ProgressEvery < 1 {
		config.ProgressEvery = 5
	}
	return &Coordinator{
		analyzer: an,
		meta:     meta,
		monitor:  monitor,
		config:   config,
		events:   make(chan Event, 128),
		state:    StateIdle,
	}
}

// Events returns the channel on which batches, progress and the terminal
// outcome are delivered.
func (c *Coordinator) Events() <-chan Event {
	return c.events
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Progress returns a snapshot of the running (or last) scan's counters.
func (c *Coordinator) Progress() ProgressEvent {
	return ProgressEvent{
		Processed: int(c.processed.Load()),
		Total:     int(c.total.Load()),
		Valid:     int(c.valid.Load()),
	}
}

// Start begins scanning root in the background. It returns an error if a
// scan is already in progress or the root is not a readable directory.
func (c *Coordinator) Start(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return errkind.Wrap(errkind.IOFailure, root, err)
	}
	if !info.IsDir() {
		return errkind.New(errkind.IOFailure, root, "not a directory")
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("scan already in progress")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.running = true
	c.state = StateScanning
	c.cancel = cancel
	c.mu.Unlock()

	c.processed.Store(0)
	c.valid.Store(0)
	c.failed.Store(0)
	c.total.Store(0)

	go c.run(ctx, root)
	return nil
}

// Cancel requests cooperative cancellation of the running scan. In-flight
// analyses finish their current iteration; no new archives are dispatched.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running && c.cancel != nil {
		logging.Info("Scan cancellation requested")
		c.cancel()
	}
}

type result struct {
	info    *analyzer.ArchiveInfo
	failure *Failure
}

func (c *Coordinator) run(ctx context.Context, root string) {
	start := time.Now()

	metrics.ScanIsRunning.Set(1)
	defer metrics.ScanIsRunning.Set(0)

	paths, err := c.enumerate(ctx, root)
	if err != nil {
		c.finish(StateFailed, start, err)
		return
	}

	c.total.Store(int64(len(paths)))
	logging.Info("Scan starting: %d archives under %s", len(paths), root)
	c.events <- ProgressEvent{Processed: 0, Total: len(paths), Valid: 0}

	numWorkers := c.config.Workers
	if numWorkers <= 0 {
		numWorkers = workers.ForMixed(8)
	}
	metrics.ScanWorkers.Set(float64(numWorkers))

	jobs := make(chan string)
	results := make(chan result, numWorkers)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(ctx, jobs, results)
		}()
	}

	// Dispatcher. Cancellation is observed here between archives: once
	// the context is done, nothing further is dispatched.
	go func() {
		defer close(jobs)
		for _, path := range paths {
			select {
			case jobs <- path:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	canceled := c.collect(ctx, results)

	state := StateCompleted
	if canceled {
		state = StateCanceled
	}
	c.finish(state, start, nil)
}

// enumerate walks root collecting archive files. Errors on subpaths are
// logged and skipped; only a top-level enumeration failure is returned.
func (c *Coordinator) enumerate(ctx context.Context, root string) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return fs.SkipAll
		default:
		}

		if err != nil {
			if path == root {
				return err
			}
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		if imagetypes.ArchiveExtensions[ext] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errkind.Wrap(errkind.IOFailure, root, err)
	}

	return paths, nil
}

func (c *Coordinator) worker(ctx context.Context, jobs <-chan string, results chan<- result) {
	for path := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if c.monitor != nil && !c.monitor.WaitIfPaused() {
			return
		}

		info, err := c.analyzer.Analyze(ctx, path, c.config.Limits)

		var r result
		if err != nil {
			if errkind.Is(err, errkind.Canceled) {
				return
			}
			r.failure = &Failure{
				Path:    path,
				Kind:    errkind.KindOf(err),
				Message: err.Error(),
			}
		} else {
			r.info = info
		}

		select {
		case results <- r:
		case <-ctx.Done():
			return
		}
	}
}

// collect accumulates worker results into batches and flushes them on size
// or interval. Returns true if the scan was canceled before draining.
func (c *Coordinator) collect(ctx context.Context, results <-chan result) bool {
	batch := BatchEvent{}
	ticker := time.NewTicker(c.config.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch.Archives) == 0 && len(batch.Failures) == 0 {
			return
		}
		c.events <- batch
		metrics.ScanBatchesFlushed.Inc()
		batch = BatchEvent{}
	}

	for {
		select {
		case r, ok := <-results:
			if !ok {
				if ctx.Err() != nil {
					return true
				}
				flush()
				return false
			}
			c.record(r, &batch)
			if len(batch.Archives)+len(batch.Failures) >= c.config.BatchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-ctx.Done():
			// Drain without delivering: no batches are emitted after
			// cancellation is observed.
			for range results {
			}
			return true
		}
	}
}

func (c *Coordinator) record(r result, batch *BatchEvent) {
	processed := c.processed.Add(1)
	metrics.ScanArchivesProcessed.Inc()

	if r.info != nil {
		c.valid.Add(1)
		batch.Archives = append(batch.Archives, r.info)
		if c.meta != nil {
			c.meta.Put(cache.MetaKey(r.info.Path), r.info)
		}
	} else if r.failure != nil {
		c.failed.Add(1)
		batch.Failures = append(batch.Failures, *r.failure)
	}

	if int(processed)%c.config.ProgressEvery == 0 {
		c.events <- ProgressEvent{
			Processed: int(processed),
			Total:     int(c.total.Load()),
			Valid:     int(c.valid.Load()),
		}
	}
}

func (c *Coordinator) finish(state State, start time.Time, err error) {
	elapsed := time.Since(start)

	summary := Summary{
		Processed: int(c.processed.Load()),
		Total:     int(c.total.Load()),
		Valid:     int(c.valid.Load()),
		Failed:    int(c.failed.Load()),
		Elapsed:   elapsed,
	}
	if err != nil {
		summary.Err = err.Error()
	}

	c.mu.Lock()
	c.state = state
	c.running = false
	c.cancel = nil
	c.mu.Unlock()

	metrics.ScansTotal.WithLabelValues(string(state)).Inc()
	metrics.ScanLastDuration.Set(elapsed.Seconds())

	logging.Info("Scan %s: %d/%d archives processed, %d valid, %d failed in %v",
		state, summary.Processed, summary.Total, summary.Valid, summary.Failed, elapsed)

	c.events <- DoneEvent{State: state, Summary: summary}
}
