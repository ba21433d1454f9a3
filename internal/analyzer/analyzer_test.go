package analyzer

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"arkview/internal/errkind"
	"arkview/internal/pool"

	"github.com/google/go-cmp/cmp"
)

type entry struct {
	name string
	size int
}

func writeArchive(t *testing.T, dir, name string, entries ...entry) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("failed to add entry %s: %v", e.name, err)
		}
		size := e.size
		if size == 0 {
			size = 4
		}
		if _, err := w.Write(make([]byte, size)); err != nil {
			t.Fatalf("failed to write entry %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finalize %s: %v", path, err)
	}
	return path
}

func newAnalyzer(t *testing.T) (*Analyzer, *pool.Pool) {
	t.Helper()
	p := pool.New(4, time.Second)
	t.Cleanup(p.Close)
	return New(p), p
}

func TestAnalyzeValid(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "a.cbz",
		entry{name: "p10.png"},
		entry{name: "p2.png"},
		entry{name: "P1.jpg"},
	)

	a, _ := newAnalyzer(t)

	info, err := a.Analyze(context.Background(), path, Limits{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if !info.Valid {
		t.Error("archive should be valid")
	}
	if info.EntryCount != 3 {
		t.Errorf("EntryCount = %d, want 3", info.EntryCount)
	}
	if info.TotalBytes != 12 {
		t.Errorf("TotalBytes = %d, want 12", info.TotalBytes)
	}

	// Natural order: case-insensitive, numeric runs by value.
	want := []string{"P1.jpg", "p2.png", "p10.png"}
	if diff := cmp.Diff(want, info.Entries); diff != "" {
		t.Errorf("entry order mismatch (-want +got):\n%s", diff)
	}

	if !info.HasEntry("p2.png") {
		t.Error("HasEntry should find a listed entry")
	}
	if info.HasEntry("p3.png") {
		t.Error("HasEntry should not find an absent entry")
	}
}

func TestAnalyzeInvalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		entries []entry
		want    errkind.Kind
	}{
		{
			name:    "non-image entry",
			entries: []entry{{name: "p1.png"}, {name: "readme.txt"}},
			want:    errkind.InvalidArchive,
		},
		{
			name:    "nested archive",
			entries: []entry{{name: "p1.png"}, {name: "inner.zip"}},
			want:    errkind.InvalidArchive,
		},
		{
			name:    "empty archive",
			entries: nil,
			want:    errkind.InvalidArchive,
		},
		{
			name:    "video entry",
			entries: []entry{{name: "clip.mp4"}},
			want:    errkind.InvalidArchive,
		},
	}

	a, _ := newAnalyzer(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeArchive(t, dir, filepath.Base(t.Name())+".cbz", tt.entries...)

			_, err := a.Analyze(context.Background(), path, Limits{})
			if err == nil {
				t.Fatal("Analyze should fail")
			}
			if !errkind.Is(err, tt.want) {
				t.Errorf("error kind = %v, want %v (err: %v)", errkind.KindOf(err), tt.want, err)
			}
		})
	}
}

func TestAnalyzeDirectoryEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.cbz")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	if _, err := zw.Create("subdir/"); err != nil {
		t.Fatal(err)
	}
	w, err := zw.Create("p1.png")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("data"))
	zw.Close()
	f.Close()

	a, _ := newAnalyzer(t)

	_, err = a.Analyze(context.Background(), path, Limits{})
	if !errkind.Is(err, errkind.InvalidArchive) {
		t.Errorf("directory entry should be invalid_archive, got %v", err)
	}
}

func TestAnalyzeLimits(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		entries []entry
		limits  Limits
		want    errkind.Kind
	}{
		{
			name:    "entry count exceeded",
			entries: []entry{{name: "p1.png"}, {name: "p2.png"}, {name: "p3.png"}},
			limits:  Limits{MaxEntryCount: 2},
			want:    errkind.EntryCountExceeded,
		},
		{
			name:    "size limit exceeded",
			entries: []entry{{name: "p1.png", size: 600}, {name: "p2.png", size: 600}},
			limits:  Limits{MaxTotalBytes: 1000},
			want:    errkind.SizeLimitExceeded,
		},
	}

	a, _ := newAnalyzer(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeArchive(t, dir, filepath.Base(t.Name())+".cbz", tt.entries...)

			_, err := a.Analyze(context.Background(), path, tt.limits)
			if !errkind.Is(err, tt.want) {
				t.Errorf("error kind = %v, want %v (err: %v)", errkind.KindOf(err), tt.want, err)
			}
		})
	}
}

func TestAnalyzeWithinLimits(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "a.cbz", entry{name: "p1.png"}, entry{name: "p2.png"})

	a, _ := newAnalyzer(t)

	limits := Limits{MaxTotalBytes: 1 << 20, MaxEntryCount: 100, Timeout: 5 * time.Second}
	info, err := a.Analyze(context.Background(), path, limits)
	if err != nil {
		t.Fatalf("Analyze within limits failed: %v", err)
	}
	if info.EntryCount != 2 {
		t.Errorf("EntryCount = %d, want 2", info.EntryCount)
	}
}

func TestAnalyzeCanceled(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "a.cbz", entry{name: "p1.png"})

	a, _ := newAnalyzer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Analyze(ctx, path, Limits{})
	if !errkind.Is(err, errkind.Canceled) {
		t.Errorf("canceled analysis should report canceled, got %v", err)
	}
}

func TestAnalyzeMissingFile(t *testing.T) {
	a, _ := newAnalyzer(t)

	_, err := a.Analyze(context.Background(), filepath.Join(t.TempDir(), "nope.cbz"), Limits{})
	if !errkind.Is(err, errkind.IOFailure) {
		t.Errorf("missing archive should be io_failure, got %v", err)
	}
}
