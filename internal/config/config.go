package config

import (
	"fmt"
	"time"

	"arkview/internal/logging"

	"github.com/caarlos0/env/v11"
)

// Config holds all engine configuration. Values come from environment
// variables; PerformanceMode rewrites the capacity and size defaults for
// constrained machines.
type Config struct {
	// PerformanceMode trades preview quality and cache depth for memory.
	PerformanceMode bool `env:"PERFORMANCE_MODE" envDefault:"false"`

	// Handle pool
	PoolSize           int           `env:"HANDLE_POOL_SIZE" envDefault:"12"`
	PoolAcquireTimeout time.Duration `env:"POOL_ACQUIRE_TIMEOUT" envDefault:"5s"`

	// Analysis limits
	MaxArchiveBytes int64         `env:"MAX_ARCHIVE_BYTES" envDefault:"2147483648"`
	MaxEntryCount   int           `env:"MAX_ENTRY_COUNT" envDefault:"10000"`
	AnalyzeTimeout  time.Duration `env:"ANALYZE_TIMEOUT" envDefault:"30s"`

	// Cache tier capacities (entry counts)
	FullCacheCapacity  int `env:"FULL_CACHE_CAPACITY" envDefault:"50"`
	ThumbCacheCapacity int `env:"THUMB_CACHE_CAPACITY" envDefault:"200"`
	MetaCacheCapacity  int `env:"META_CACHE_CAPACITY" envDefault:"1024"`

	// Decoding
	ThumbnailSize         int   `env:"THUMBNAIL_SIZE" envDefault:"280"`
	MaxThumbnailLoadBytes int64 `env:"MAX_THUMBNAIL_LOAD_BYTES" envDefault:"10485760"`
	MaxViewerLoadBytes    int64 `env:"MAX_VIEWER_LOAD_BYTES" envDefault:"104857600"`
	VipsEnabled           bool  `env:"VIPS_ENABLED" envDefault:"true"`

	// Scan batching and progress
	BatchSize          int           `env:"SCAN_BATCH_SIZE" envDefault:"32"`
	BatchFlushInterval time.Duration `env:"SCAN_BATCH_FLUSH_INTERVAL" envDefault:"250ms"`
	ProgressEvery      int           `env:"SCAN_PROGRESS_EVERY" envDefault:"5"`

	// Worker caps (0 = derive from GOMAXPROCS)
	ScanWorkers      int `env:"SCAN_WORKERS" envDefault:"0"`
	RetrievalWorkers int `env:"RETRIEVAL_WORKERS" envDefault:"0"`
}

// Load parses configuration from the environment and applies
// performance-mode overrides.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.PerformanceMode {
		cfg.applyPerformanceMode()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  PERFORMANCE_MODE:     %v", cfg.PerformanceMode)
	logging.Info("  HANDLE_POOL_SIZE:     %d", cfg.PoolSize)
	logging.Info("  MAX_ARCHIVE_BYTES:    %d", cfg.MaxArchiveBytes)
	logging.Info("  MAX_ENTRY_COUNT:      %d", cfg.MaxEntryCount)
	logging.Info("  ANALYZE_TIMEOUT:      %s", cfg.AnalyzeTimeout)
	logging.Info("  CACHE (full/thumb/meta): %d/%d/%d", cfg.FullCacheCapacity, cfg.ThumbCacheCapacity, cfg.MetaCacheCapacity)
	logging.Info("  THUMBNAIL_SIZE:       %d", cfg.ThumbnailSize)
	logging.Info("  VIPS_ENABLED:         %v", cfg.VipsEnabled)
	logging.Info("  LOG_LEVEL:            %s", logging.GetLevel())

	return cfg, nil
}

// applyPerformanceMode rewrites defaults for constrained machines: smaller
// caches, smaller thumbnails, lower per-entry load ceilings.
func (c *Config) applyPerformanceMode() {
	c.FullCacheCapacity = c.FullCacheCapacity / 2
	if c.FullCacheCapacity < 1 {
		c.FullCacheCapacity = 1
	}
	c.ThumbCacheCapacity = c.ThumbCacheCapacity / 2
	if c.ThumbCacheCapacity < 1 {
		c.ThumbCacheCapacity = 1
	}
	c.ThumbnailSize = 180
	c.MaxThumbnailLoadBytes = 3 * 1024 * 1024
	c.MaxViewerLoadBytes = 30 * 1024 * 1024
}

func (c *Config) validate() error {
	if c.PoolSize < 1 {
		return fmt.Errorf("HANDLE_POOL_SIZE must be at least 1, got %d", c.PoolSize)
	}
	if c.MaxEntryCount < 1 {
		return fmt.Errorf("MAX_ENTRY_COUNT must be at least 1, got %d", c.MaxEntryCount)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("SCAN_BATCH_SIZE must be at least 1, got %d", c.BatchSize)
	}
	if c.ThumbnailSize < 16 {
		return fmt.Errorf("THUMBNAIL_SIZE must be at least 16, got %d", c.ThumbnailSize)
	}
	return nil
}
