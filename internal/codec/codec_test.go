package codec

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

// encodeTestImage renders a width x height gradient in the given format.
func encodeTestImage(t *testing.T, format string, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, nil)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		t.Fatalf("unsupported test format %q", format)
	}
	if err != nil {
		t.Fatalf("failed to encode %s: %v", format, err)
	}
	return buf.Bytes()
}

// newTestCodec forces the pure-Go backend; libvips is not initialized in
// tests.
func newTestCodec() *Codec {
	return New(false)
}

func TestDecode(t *testing.T) {
	c := newTestCodec()

	tests := []struct {
		format string
		width  int
		height int
	}{
		{format: "png", width: 64, height: 48},
		{format: "jpeg", width: 100, height: 50},
		{format: "gif", width: 32, height: 32},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			data := encodeTestImage(t, tt.format, tt.width, tt.height)

			raster, err := c.Decode(data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if raster.Format != tt.format {
				t.Errorf("Format = %q, want %q", raster.Format, tt.format)
			}
			if raster.Width != tt.width || raster.Height != tt.height {
				t.Errorf("dimensions = %dx%d, want %dx%d",
					raster.Width, raster.Height, tt.width, tt.height)
			}
			b := raster.Image.Bounds()
			if b.Dx() != tt.width || b.Dy() != tt.height {
				t.Errorf("pixel bounds = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.width, tt.height)
			}
		})
	}
}

func TestDecodeCorrupt(t *testing.T) {
	c := newTestCodec()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "no signature", data: []byte("definitely not an image")},
		{name: "empty", data: nil},
		{name: "truncated png", data: encodeTestImage(t, "png", 64, 64)[:20]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Decode(tt.data); err == nil {
				t.Error("Decode should fail on corrupt data")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	c := newTestCodec()

	if !c.Validate(encodeTestImage(t, "png", 8, 8)) {
		t.Error("Validate should accept PNG data")
	}
	if c.Validate([]byte("PK\x03\x04 zip header")) {
		t.Error("Validate should reject non-image data")
	}
}

func TestThumbnailFitsWithinBounds(t *testing.T) {
	c := newTestCodec()

	tests := []struct {
		name       string
		srcW, srcH int
		maxW, maxH int
		wantW      int
		wantH      int
	}{
		{name: "wide landscape", srcW: 400, srcH: 200, maxW: 100, maxH: 100, wantW: 100, wantH: 50},
		{name: "tall portrait", srcW: 200, srcH: 400, maxW: 100, maxH: 100, wantW: 50, wantH: 100},
		{name: "square", srcW: 300, srcH: 300, maxW: 100, maxH: 100, wantW: 100, wantH: 100},
		{name: "already smaller is not upscaled", srcW: 50, srcH: 40, maxW: 100, maxH: 100, wantW: 50, wantH: 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := encodeTestImage(t, "png", tt.srcW, tt.srcH)

			raster, err := c.Thumbnail(data, tt.maxW, tt.maxH)
			if err != nil {
				t.Fatalf("Thumbnail failed: %v", err)
			}

			b := raster.Image.Bounds()
			if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("thumbnail = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
			// Original dimensions survive alongside the resized pixels.
			if raster.Width != tt.srcW || raster.Height != tt.srcH {
				t.Errorf("source dimensions = %dx%d, want %dx%d",
					raster.Width, raster.Height, tt.srcW, tt.srcH)
			}
		})
	}
}

// loaderlessResizer fails every load, standing in for a fast-path backend
// built without a loader for the requested format.
type loaderlessResizer struct{}

func (loaderlessResizer) name() string { return "loaderless" }

func (loaderlessResizer) thumbnail([]byte, int, int) (*Raster, error) {
	return nil, errors.New("no loader for this format")
}

func TestThumbnailFallsBackToImaging(t *testing.T) {
	c := &Codec{backend: loaderlessResizer{}}

	// A format the backend cannot load must still thumbnail via the
	// pure-Go decoders.
	data := encodeTestImage(t, "png", 200, 100)
	raster, err := c.Thumbnail(data, 50, 50)
	if err != nil {
		t.Fatalf("Thumbnail should fall back to imaging, got error: %v", err)
	}
	b := raster.Image.Bounds()
	if b.Dx() != 50 || b.Dy() != 25 {
		t.Errorf("fallback thumbnail = %dx%d, want 50x25", b.Dx(), b.Dy())
	}
	if raster.Width != 200 || raster.Height != 100 {
		t.Errorf("source dimensions = %dx%d, want 200x100", raster.Width, raster.Height)
	}

	// Genuinely corrupt data still fails after the fallback runs.
	if _, err := c.Thumbnail([]byte("not an image"), 50, 50); err == nil {
		t.Error("corrupt data should fail even with the fallback")
	}
}

func TestThumbnailCorrupt(t *testing.T) {
	c := newTestCodec()

	if _, err := c.Thumbnail([]byte("garbage"), 100, 100); err == nil {
		t.Error("Thumbnail should fail on corrupt data")
	}
}

func TestFit(t *testing.T) {
	c := newTestCodec()

	raster, err := c.Decode(encodeTestImage(t, "png", 400, 200))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	fitted := c.Fit(raster, 100, 100)
	b := fitted.Image.Bounds()
	if b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("Fit = %dx%d, want 100x50", b.Dx(), b.Dy())
	}
	if fitted.Width != 400 || fitted.Height != 200 {
		t.Errorf("Fit should preserve source dimensions, got %dx%d", fitted.Width, fitted.Height)
	}
}

func TestRasterWeight(t *testing.T) {
	var nilRaster *Raster
	if got := nilRaster.Weight(); got != 0 {
		t.Errorf("nil raster weight = %d, want 0", got)
	}

	r := &Raster{Image: image.NewRGBA(image.Rect(0, 0, 10, 20))}
	if got := r.Weight(); got != 800 {
		t.Errorf("Weight = %d, want 800", got)
	}
}

func TestBackendSelection(t *testing.T) {
	if got := New(false).Backend(); got != "imaging" {
		t.Errorf("disabled vips should use imaging backend, got %q", got)
	}
	// Even when requested, the vips backend needs a successful InitVips.
	if got := New(true).Backend(); got != "imaging" {
		t.Errorf("uninitialized vips should fall back to imaging, got %q", got)
	}
}
