package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arkview/internal/analyzer"
	"arkview/internal/cache"
	"arkview/internal/codec"
	"arkview/internal/config"
	"arkview/internal/errkind"
	"arkview/internal/logging"
	"arkview/internal/memory"
	"arkview/internal/pool"
	"arkview/internal/retrieval"
	"arkview/internal/scanner"

	"github.com/alecthomas/kong"
	"github.com/disintegration/imaging"
)

var version = "dev"

var cli struct {
	Scan    scanCmd    `cmd:"" help:"Scan a directory tree for image archives and validate them."`
	Extract extractCmd `cmd:"" help:"Extract one image entry from an archive to a file."`
	Info    infoCmd    `cmd:"" help:"Analyze a single archive and print its metadata as JSON."`
	Version versionCmd `cmd:"" help:"Print the version and exit."`
}

type scanCmd struct {
	Root string `arg:"" type:"existingdir" help:"Directory to scan for archives."`
}

type extractCmd struct {
	Archive string `arg:"" type:"existingfile" help:"Archive to read from."`
	Entry   string `arg:"" help:"Entry name inside the archive."`
	Out     string `arg:"" help:"Output image path (format from extension)."`
	Width   int    `default:"0" help:"Fit within this width (0 = original size)."`
	Height  int    `default:"0" help:"Fit within this height (0 = original size)."`
}

// targetSize squares up a half-specified fit box so --width alone (or
// --height alone) still requests a bounded thumbnail instead of silently
// extracting at full size.
func (c *extractCmd) targetSize() (int, int) {
	width, height := c.Width, c.Height
	if width > 0 && height == 0 {
		height = width
	}
	if height > 0 && width == 0 {
		width = height
	}
	return width, height
}

type infoCmd struct {
	Archive string `arg:"" type:"existingfile" help:"Archive to analyze."`
}

type versionCmd struct{}

// app holds the wired engine shared by all commands.
type app struct {
	cfg       *config.Config
	pool      *pool.Pool
	analyzer  *analyzer.Analyzer
	codec     *codec.Codec
	monitor   *memory.Monitor
	fullTier  *cache.Cache[*codec.Raster]
	thumbTier *cache.Cache[*codec.Raster]
	metaTier  *cache.Cache[*analyzer.ArchiveInfo]
	retrieval *retrieval.Service
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	memory.ConfigureFromEnv()

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	if cfg.VipsEnabled {
		if err := codec.InitVips(); err != nil {
			logging.Warn("libvips unavailable, using pure-Go decoding: %v", err)
		}
	}

	p := pool.New(cfg.PoolSize, cfg.PoolAcquireTimeout)
	an := analyzer.New(p)
	cd := codec.New(cfg.VipsEnabled)

	rasterWeight := func(r *codec.Raster) int64 { return r.Weight() }

	fullTier, err := cache.New("full", cfg.FullCacheCapacity, cache.WithWeigher(rasterWeight))
	if err != nil {
		return nil, err
	}
	thumbTier, err := cache.New("thumbnail", cfg.ThumbCacheCapacity, cache.WithWeigher(rasterWeight))
	if err != nil {
		return nil, err
	}
	metaTier, err := cache.New[*analyzer.ArchiveInfo]("metadata", cfg.MetaCacheCapacity)
	if err != nil {
		return nil, err
	}

	svc := retrieval.New(p, an, cd, fullTier, thumbTier, metaTier, monitor, retrieval.Config{
		Workers: cfg.RetrievalWorkers,
		Limits: retrieval.Limits{
			MaxThumbnailBytes: cfg.MaxThumbnailLoadBytes,
			MaxOriginalBytes:  cfg.MaxViewerLoadBytes,
			Analyze:           analyzeLimits(cfg),
		},
	})

	return &app{
		cfg:       cfg,
		pool:      p,
		analyzer:  an,
		codec:     cd,
		monitor:   monitor,
		fullTier:  fullTier,
		thumbTier: thumbTier,
		metaTier:  metaTier,
		retrieval: svc,
	}, nil
}

func (a *app) close() {
	a.retrieval.Close()
	a.fullTier.Clear()
	a.thumbTier.Clear()
	a.metaTier.Clear()
	a.pool.Close()
	a.monitor.Stop()
	codec.ShutdownVips()
}

func analyzeLimits(cfg *config.Config) analyzer.Limits {
	return analyzer.Limits{
		MaxTotalBytes: cfg.MaxArchiveBytes,
		MaxEntryCount: cfg.MaxEntryCount,
		Timeout:       cfg.AnalyzeTimeout,
	}
}

func (c *scanCmd) Run(a *app) error {
	coord := scanner.New(a.analyzer, a.metaTier, a.monitor, scanner.Config{
		Workers:       a.cfg.ScanWorkers,
		BatchSize:     a.cfg.BatchSize,
		FlushInterval: a.cfg.BatchFlushInterval,
		ProgressEvery: a.cfg.ProgressEvery,
		Limits:        analyzeLimits(a.cfg),
	})

	if err := coord.Start(c.Root); err != nil {
		return err
	}

	// First interrupt cancels the scan cooperatively; the scan still ends
	// with a terminal event and a summary.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		<-sig
		coord.Cancel()
	}()

	for ev := range coord.Events() {
		switch e := ev.(type) {
		case scanner.BatchEvent:
			for _, info := range e.Archives {
				fmt.Printf("ok    %s  (%d entries, %s)\n",
					info.Path, info.EntryCount, memory.FormatBytes(info.TotalBytes))
			}
			for _, f := range e.Failures {
				fmt.Printf("fail  %s  [%s] %s\n", f.Path, f.Kind, f.Message)
			}

		case scanner.ProgressEvent:
			logging.Info("Progress: %d/%d processed, %d valid", e.Processed, e.Total, e.Valid)

		case scanner.DoneEvent:
			fmt.Printf("\n%s: %d archives, %d valid, %d failed in %v\n",
				e.State, e.Summary.Processed, e.Summary.Valid, e.Summary.Failed,
				e.Summary.Elapsed.Round(time.Millisecond))
			if e.State == scanner.StateFailed {
				return fmt.Errorf("scan failed: %s", e.Summary.Err)
			}
			return nil
		}
	}
	return nil
}

func (c *extractCmd) Run(a *app) error {
	width, height := c.targetSize()
	raster, err := a.retrieval.Get(context.Background(), retrieval.Request{
		Archive: c.Archive,
		Entry:   c.Entry,
		Width:   width,
		Height:  height,
	})
	if err != nil {
		return fmt.Errorf("retrieval failed [%s]: %w", errkind.KindOf(err), err)
	}

	if err := imaging.Save(raster.Image, c.Out); err != nil {
		return fmt.Errorf("failed to save %s: %w", c.Out, err)
	}

	b := raster.Image.Bounds()
	fmt.Printf("wrote %s (%dx%d, source %dx%d %s)\n",
		c.Out, b.Dx(), b.Dy(), raster.Width, raster.Height, raster.Format)
	return nil
}

func (c *infoCmd) Run(a *app) error {
	info, err := a.analyzer.Analyze(context.Background(), c.Archive, analyzeLimits(a.cfg))
	if err != nil {
		return fmt.Errorf("analysis failed [%s]: %w", errkind.KindOf(err), err)
	}

	out, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func (versionCmd) Run(*app) error {
	fmt.Printf("arkview %s\n", version)
	return nil
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("arkview"),
		kong.Description("Archive image analysis and retrieval engine."),
		kong.UsageOnError(),
	)

	a, err := newApp()
	if err != nil {
		logging.Fatal("Startup failed: %v", err)
	}
	defer a.close()

	if err := ctx.Run(a); err != nil {
		logging.Error("%v", err)
		os.Exit(1)
	}
}
