// Package codec decodes archive entry bytes into raster images and produces
// aspect-preserving thumbnails.
//
// Decoding is corrupt-safe: truncated or malformed streams come back as
// errors, never panics. EXIF orientation is applied at decode time, before
// any resizing. Thumbnails fit within the requested bounds and are never
// upscaled past the source dimensions.
//
// Two thumbnail backends exist behind one interface: a libvips fast path
// (decode-time shrinking, much lower peak memory) and a pure-Go fallback
// using the imaging library. The backend is selected once when the Codec is
// constructed and is transparent to callers.
package codec
