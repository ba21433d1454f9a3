package analyzer

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"arkview/internal/errkind"
	"arkview/internal/imagetypes"
	"arkview/internal/logging"
	"arkview/internal/metrics"
	"arkview/internal/pool"

	"github.com/maruel/natural"
)

// Limits bounds a single archive analysis. Zero values disable the
// corresponding limit.
type Limits struct {
	// MaxTotalBytes caps the sum of uncompressed entry sizes.
	MaxTotalBytes int64
	// MaxEntryCount caps the number of entries.
	MaxEntryCount int
	// Timeout abandons the analysis once elapsed; partial results are
	// discarded.
	Timeout time.Duration
}

// ArchiveInfo describes one validated archive. Immutable once produced; a
// changed archive is re-analyzed and the old record superseded.
type ArchiveInfo struct {
	Path       string    `json:"path"`
	Entries    []string  `json:"entries"` // image entry names in natural order
	TotalBytes int64     `json:"totalBytes"`
	EntryCount int       `json:"entryCount"`
	Valid      bool      `json:"valid"`
	AnalyzedAt time.Time `json:"analyzedAt"`
	ModTime    time.Time `json:"modTime"` // archive mtime at analysis
}

// HasEntry reports whether name is one of the archive's image entries.
func (info *ArchiveInfo) HasEntry(name string) bool {
	for _, e := range info.Entries {
		if e == name {
			return true
		}
	}
	return false
}

// Analyzer validates archives through a shared handle pool.
type Analyzer struct {
	pool *pool.Pool
}

// New creates an Analyzer reading through the given handle pool.
func New(p *pool.Pool) *Analyzer {
	return &Analyzer{pool: p}
}

// Analyze opens path through the handle pool and validates that every entry
// is a supported image. The returned error always carries an errkind.Kind.
func (a *Analyzer) Analyze(ctx context.Context, path string, limits Limits) (*ArchiveInfo, error) {
	start := time.Now()

	if limits.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limits.Timeout)
		defer cancel()
	}

	info, err := a.analyze(ctx, path, limits)

	metrics.AnalyzeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AnalyzeTotal.WithLabelValues(string(errkind.KindOf(err))).Inc()
		logging.Debug("Analysis of %s failed: %v", path, err)
		return nil, err
	}

	metrics.AnalyzeTotal.WithLabelValues("valid").Inc()
	metrics.AnalyzeEntries.Observe(float64(info.EntryCount))
	logging.Debug("Analyzed %s: %d entries, %d bytes in %v",
		path, info.EntryCount, info.TotalBytes, time.Since(start))
	return info, nil
}

func (a *Analyzer) analyze(ctx context.Context, path string, limits Limits) (*ArchiveInfo, error) {
	handle, err := a.pool.Acquire(ctx, path)
	if err != nil {
		return nil, err
	}
	defer a.pool.Release(handle)

	var (
		entries    []string
		totalBytes int64
	)

	for _, f := range handle.Reader().File {
		// Iteration boundary: honor the deadline and cooperative
		// cancellation between entries, never mid-entry.
		if err := ctx.Err(); err != nil {
			return nil, wrapCtxErr(path, err)
		}

		name := f.Name
		if f.FileInfo().IsDir() || strings.HasSuffix(name, "/") {
			return nil, errkind.New(errkind.InvalidArchive, path,
				"archive contains directory entry %q", name)
		}

		switch imagetypes.ClassifyName(name) {
		case imagetypes.EntryTypeImage:
			// fall through to limit checks
		case imagetypes.EntryTypeArchive:
			return nil, errkind.New(errkind.InvalidArchive, path,
				"archive contains nested archive %q", name)
		default:
			return nil, errkind.New(errkind.InvalidArchive, path,
				"archive contains non-image entry %q", name)
		}

		entries = append(entries, name)
		if limits.MaxEntryCount > 0 && len(entries) > limits.MaxEntryCount {
			return nil, errkind.New(errkind.EntryCountExceeded, path,
				"archive exceeds %d entries", limits.MaxEntryCount)
		}

		totalBytes += int64(f.UncompressedSize64)
		if limits.MaxTotalBytes > 0 && totalBytes > limits.MaxTotalBytes {
			return nil, errkind.New(errkind.SizeLimitExceeded, path,
				"uncompressed size exceeds %d bytes", limits.MaxTotalBytes)
		}
	}

	if len(entries) == 0 {
		return nil, errkind.New(errkind.InvalidArchive, path, "archive contains no entries")
	}

	sortNatural(entries)

	return &ArchiveInfo{
		Path:       path,
		Entries:    entries,
		TotalBytes: totalBytes,
		EntryCount: len(entries),
		Valid:      true,
		AnalyzedAt: time.Now(),
		ModTime:    handle.ModTime(),
	}, nil
}

// sortNatural orders entry names case-insensitively with numeric runs
// compared by value, so "img2.png" sorts before "img10.png".
func sortNatural(entries []string) {
	sort.SliceStable(entries, func(i, j int) bool {
		return natural.Less(strings.ToLower(entries[i]), strings.ToLower(entries[j]))
	})
}

func wrapCtxErr(path string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errkind.Wrap(errkind.Timeout, path, err)
	}
	return errkind.Wrap(errkind.Canceled, path, err)
}
