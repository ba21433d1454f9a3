package imagetypes

import "testing"

func TestClassifyName(t *testing.T) {
	tests := []struct {
		name  string
		entry string
		want  EntryType
	}{
		{name: "jpeg", entry: "page001.jpg", want: EntryTypeImage},
		{name: "uppercase extension", entry: "COVER.PNG", want: EntryTypeImage},
		{name: "nested path", entry: "vol1/ch2/page3.webp", want: EntryTypeImage},
		{name: "ico", entry: "favicon.ico", want: EntryTypeImage},
		{name: "nested zip", entry: "extras/bonus.zip", want: EntryTypeArchive},
		{name: "nested cbz", entry: "inner.cbz", want: EntryTypeArchive},
		{name: "text file", entry: "readme.txt", want: EntryTypeOther},
		{name: "no extension", entry: "Thumbs", want: EntryTypeOther},
		{name: "video", entry: "clip.mp4", want: EntryTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyName(tt.entry); got != tt.want {
				t.Errorf("ClassifyName(%q) = %q, want %q", tt.entry, got, tt.want)
			}
		})
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
		want   string
	}{
		{name: "jpeg", header: []byte{0xFF, 0xD8, 0xFF, 0xE0}, want: "jpeg"},
		{name: "png", header: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, want: "png"},
		{name: "gif", header: []byte("GIF89a"), want: "gif"},
		{name: "webp", header: []byte{'R', 'I', 'F', 'F', 0, 0, 0, 0, 'W', 'E', 'B', 'P'}, want: "webp"},
		{name: "bmp", header: []byte{0x42, 0x4D, 0x00, 0x00}, want: "bmp"},
		{name: "tiff little endian", header: []byte{0x49, 0x49, 0x2A, 0x00}, want: "tiff"},
		{name: "tiff big endian", header: []byte{0x4D, 0x4D, 0x00, 0x2A}, want: "tiff"},
		{name: "ico", header: []byte{0x00, 0x00, 0x01, 0x00}, want: "ico"},
		{name: "zip is not an image", header: []byte{'P', 'K', 0x03, 0x04}, want: "unknown"},
		{name: "truncated", header: []byte{0xFF}, want: "unknown"},
		{name: "empty", header: nil, want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.header); got != tt.want {
				t.Errorf("DetectFormat() = %q, want %q", got, tt.want)
			}
			if want := tt.want != "unknown"; IsImageData(tt.header) != want {
				t.Errorf("IsImageData() = %v, want %v", !want, want)
			}
		})
	}
}

func TestGetMimeType(t *testing.T) {
	if got := GetMimeType(".jpg"); got != "image/jpeg" {
		t.Errorf("GetMimeType(.jpg) = %q", got)
	}
	if got := GetMimeType(".xyz"); got != "application/octet-stream" {
		t.Errorf("GetMimeType(.xyz) = %q", got)
	}
}
