package imagetypes

import (
	"path/filepath"
	"strings"
)

// EntryType represents the classification of a single archive entry.
type EntryType string

const (
	// EntryTypeImage represents a supported raster image entry.
	EntryTypeImage EntryType = "image"
	// EntryTypeArchive represents a nested archive entry.
	EntryTypeArchive EntryType = "archive"
	// EntryTypeDirectory represents a directory entry.
	EntryTypeDirectory EntryType = "directory"
	// EntryTypeOther represents an unknown or unsupported entry.
	EntryTypeOther EntryType = "other"
)

// ImageExtensions maps file extensions to whether they are supported image
// formats. This is the format set the analyzer accepts; anything else makes
// the containing archive invalid.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
	".webp": true,
	".ico":  true,
}

// ArchiveExtensions maps file extensions to whether they denote a nested
// archive. Nested archives are never descended into.
var ArchiveExtensions = map[string]bool{
	".zip": true,
	".cbz": true,
	".rar": true,
	".cbr": true,
	".7z":  true,
	".tar": true,
	".gz":  true,
}

// MimeTypes maps image file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".webp": "image/webp",
	".ico":  "image/x-icon",
}

// ClassifyName returns the EntryType for an entry name inside an archive.
// Directory entries must be detected by the caller (archive metadata carries
// that); this classifies by extension only.
func ClassifyName(name string) EntryType {
	ext := strings.ToLower(filepath.Ext(name))
	if ImageExtensions[ext] {
		return EntryTypeImage
	}
	if ArchiveExtensions[ext] {
		return EntryTypeArchive
	}
	return EntryTypeOther
}

// GetMimeType returns the MIME type for a given file extension. The
// extension should be lowercase and include the leading dot (e.g. ".jpg").
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// DetectFormat sniffs the format of image data from its leading bytes.
// Returns "unknown" when no supported signature matches.
func DetectFormat(header []byte) string {
	switch {
	case len(header) >= 3 && header[0] == 0xFF && header[1] == 0xD8 && header[2] == 0xFF:
		return "jpeg"

	case len(header) >= 8 && header[0] == 0x89 && header[1] == 0x50 && header[2] == 0x4E && header[3] == 0x47:
		return "png"

	case len(header) >= 4 && header[0] == 0x47 && header[1] == 0x49 && header[2] == 0x46 && header[3] == 0x38:
		return "gif"

	case len(header) >= 12 && header[0] == 0x52 && header[1] == 0x49 && header[2] == 0x46 && header[3] == 0x46 &&
		header[8] == 0x57 && header[9] == 0x45 && header[10] == 0x42 && header[11] == 0x50:
		return "webp"

	case len(header) >= 2 && header[0] == 0x42 && header[1] == 0x4D:
		return "bmp"

	case len(header) >= 4 && ((header[0] == 0x49 && header[1] == 0x49 && header[2] == 0x2A && header[3] == 0x00) ||
		(header[0] == 0x4D && header[1] == 0x4D && header[2] == 0x00 && header[3] == 0x2A)):
		return "tiff"

	case len(header) >= 4 && header[0] == 0x00 && header[1] == 0x00 && header[2] == 0x01 && header[3] == 0x00:
		return "ico"
	}

	return "unknown"
}

// IsImageData reports whether the leading bytes match a supported image
// signature.
func IsImageData(header []byte) bool {
	return DetectFormat(header) != "unknown"
}
