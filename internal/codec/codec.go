package codec

import (
	"bytes"
	"fmt"
	"image"

	"arkview/internal/imagetypes"
	"arkview/internal/logging"
	"arkview/internal/metrics"

	// Entry format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/biessek/golang-ico" // ICO format support
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // BMP format support
	_ "golang.org/x/image/tiff" // TIFF format support
	_ "golang.org/x/image/webp" // WebP format support
)

// Raster is a decoded, orientation-corrected image plus its original pixel
// dimensions as stored in the archive entry.
type Raster struct {
	Image  image.Image
	Width  int // original width before any resizing
	Height int // original height before any resizing
	Format string
}

// Weight estimates the in-memory byte cost of the decoded pixels.
func (r *Raster) Weight() int64 {
	if r == nil || r.Image == nil {
		return 0
	}
	b := r.Image.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}

// resizer produces a bounded thumbnail from raw entry bytes. Implemented by
// the libvips fast path and the pure-Go fallback.
type resizer interface {
	thumbnail(data []byte, width, height int) (*Raster, error)
	name() string
}

// Codec decodes entry bytes and produces thumbnails. Construct once and
// share; the thumbnail backend is fixed at construction.
type Codec struct {
	backend resizer
}

// New selects the thumbnail backend and returns a ready Codec. The libvips
// path is used when it was initialized successfully and not disabled;
// otherwise the pure-Go imaging path serves all requests.
func New(vipsEnabled bool) *Codec {
	c := &Codec{backend: imagingResizer{}}
	if vipsEnabled && VipsAvailable() {
		c.backend = vipsResizer{}
	}
	logging.Info("Image codec using %s thumbnail backend", c.backend.name())
	return c
}

// Backend returns the name of the active thumbnail backend.
func (c *Codec) Backend() string {
	return c.backend.name()
}

// Validate reports whether data carries a supported image signature. It is
// a cheap pre-check; Decode remains the authority on whether the stream is
// actually intact.
func (c *Codec) Validate(data []byte) bool {
	return imagetypes.IsImageData(data)
}

// Decode decodes entry bytes into an orientation-corrected raster. Corrupt
// or truncated streams return an error.
func (c *Codec) Decode(data []byte) (*Raster, error) {
	format := imagetypes.DetectFormat(data)
	if format == "unknown" {
		metrics.DecodeTotal.WithLabelValues("imaging", "error").Inc()
		return nil, fmt.Errorf("unrecognized image signature (%d bytes)", len(data))
	}

	// Dimensions from the header first: the full decode below applies
	// orientation, which can swap width and height.
	cfg, _, cfgErr := image.DecodeConfig(bytes.NewReader(data))

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		metrics.DecodeTotal.WithLabelValues("imaging", "error").Inc()
		return nil, fmt.Errorf("failed to decode %s data: %w", format, err)
	}
	metrics.DecodeTotal.WithLabelValues("imaging", "success").Inc()

	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	if cfgErr == nil {
		width, height = cfg.Width, cfg.Height
	}

	return &Raster{
		Image:  img,
		Width:  width,
		Height: height,
		Format: format,
	}, nil
}

// Thumbnail decodes entry bytes and resizes the result to fit within
// width x height, preserving aspect ratio. The active backend may shrink
// during decode; the fallback decodes fully and resizes after. A backend
// failure on one image retries through the pure-Go path, since some
// formats (ICO, and BMP on libvips builds without the magick loader) have
// no fast-path loader but still decode in Go.
func (c *Codec) Thumbnail(data []byte, width, height int) (*Raster, error) {
	raster, err := c.backend.thumbnail(data, width, height)
	if err == nil {
		return raster, nil
	}
	if _, pure := c.backend.(imagingResizer); pure {
		return nil, err
	}
	logging.Debug("%s thumbnail failed (%v), retrying with imaging backend", c.backend.name(), err)
	return imagingResizer{}.thumbnail(data, width, height)
}

// Fit resizes an already-decoded raster to fit within width x height,
// preserving aspect ratio and never upscaling.
func (c *Codec) Fit(r *Raster, width, height int) *Raster {
	fitted := imaging.Fit(r.Image, width, height, imaging.Lanczos)
	return &Raster{
		Image:  fitted,
		Width:  r.Width,
		Height: r.Height,
		Format: r.Format,
	}
}

// imagingResizer is the pure-Go fallback: full decode, then Lanczos fit.
type imagingResizer struct{}

func (imagingResizer) name() string { return "imaging" }

func (imagingResizer) thumbnail(data []byte, width, height int) (*Raster, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		metrics.DecodeTotal.WithLabelValues("imaging", "error").Inc()
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	metrics.DecodeTotal.WithLabelValues("imaging", "success").Inc()

	origWidth, origHeight := img.Bounds().Dx(), img.Bounds().Dy()
	thumb := imaging.Fit(img, width, height, imaging.Lanczos)

	return &Raster{
		Image:  thumb,
		Width:  origWidth,
		Height: origHeight,
		Format: imagetypes.DetectFormat(data),
	}, nil
}
