package codec

import (
	"bytes"
	"fmt"
	"sync"

	"arkview/internal/imagetypes"
	"arkview/internal/logging"
	"arkview/internal/metrics"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// InitVips initializes the libvips library. Call once at startup, before
// constructing a Codec.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Configure vips logging BEFORE Startup() so it respects LOG_LEVEL.
	var vipsLogLevel vips.LogLevel
	var logHandler func(string, vips.LogLevel, string)

	switch logging.GetLevel() {
	case logging.LevelDebug:
		vipsLogLevel = vips.LogLevelInfo
		logHandler = func(domain string, level vips.LogLevel, msg string) {
			switch level {
			case vips.LogLevelError, vips.LogLevelCritical:
				logging.Error("[%s] %s", domain, msg)
			case vips.LogLevelWarning:
				logging.Warn("[%s] %s", domain, msg)
			case vips.LogLevelMessage, vips.LogLevelInfo, vips.LogLevelDebug:
				logging.Debug("[%s] %s", domain, msg)
			}
		}
	case logging.LevelWarn, logging.LevelError:
		vipsLogLevel = vips.LogLevelError
		logHandler = func(domain string, level vips.LogLevel, msg string) {
			if level >= vips.LogLevelError {
				logging.Error("[%s] %s", domain, msg)
			}
		}
	default:
		vipsLogLevel = vips.LogLevelWarning
		logHandler = func(domain string, level vips.LogLevel, msg string) {
			switch level {
			case vips.LogLevelError, vips.LogLevelCritical:
				logging.Error("[%s] %s", domain, msg)
			case vips.LogLevelWarning:
				logging.Warn("[%s] %s", domain, msg)
			case vips.LogLevelMessage, vips.LogLevelInfo, vips.LogLevelDebug:
			}
		}
	}

	vips.LoggingSettings(logHandler, vipsLogLevel)

	// Conservative memory settings: one image at a time, small operation
	// cache. Decoded results live in the tiered cache, not in vips.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// VipsAvailable returns whether libvips is initialized and usable.
func VipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// vipsResizer shrinks during decode via libvips, which keeps peak memory
// far below a full decode followed by a resize.
type vipsResizer struct{}

func (vipsResizer) name() string { return "vips" }

func (vipsResizer) thumbnail(data []byte, width, height int) (*Raster, error) {
	importParams := vips.NewImportParams()
	importParams.AutoRotate.Set(true)

	ref, err := vips.LoadImageFromBuffer(data, importParams)
	if err != nil {
		metrics.DecodeTotal.WithLabelValues("vips", "error").Inc()
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	origWidth := ref.Width()
	origHeight := ref.Height()

	// SizeDown keeps small sources at their native size instead of
	// upscaling to the target box.
	if err := ref.ThumbnailWithSize(width, height, vips.InterestingNone, vips.SizeDown); err != nil {
		metrics.DecodeTotal.WithLabelValues("vips", "error").Inc()
		return nil, fmt.Errorf("vips resize failed: %w", err)
	}

	// Export and re-decode so callers get a plain image.Image. Small
	// overhead, keeps the Raster API backend-independent.
	imgBytes, _, err := ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		metrics.DecodeTotal.WithLabelValues("vips", "error").Inc()
		return nil, fmt.Errorf("vips export failed: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		metrics.DecodeTotal.WithLabelValues("vips", "error").Inc()
		return nil, fmt.Errorf("failed to decode vips output: %w", err)
	}
	metrics.DecodeTotal.WithLabelValues("vips", "success").Inc()

	return &Raster{
		Image:  img,
		Width:  origWidth,
		Height: origHeight,
		Format: imagetypes.DetectFormat(data),
	}, nil
}
