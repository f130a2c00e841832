package extractor

import (
	"time"
)

// Inspector is the interface for reading image metadata.
type Inspector interface {
	Inspect(data []byte) (*ImageInfo, error)
	InspectFile(filePath string) (*ImageInfo, error)
}

// CachedInspector extends Inspector with caching capabilities.
type CachedInspector interface {
	Inspector
	ClearCache()
	GetCacheStats() CacheStats
}

// ImageInfo describes an encoded image without fully decoding it.
type ImageInfo struct {
	Mime        string
	Extension   string
	Size        int
	Width       int
	Height      int
	HasEXIF     bool
	Orientation int
	Date        *ExtractedDate
}

// CacheStats contains statistics about cache performance.
type CacheStats struct {
	Hits         int64
	Misses       int64
	Size         int
	HitRate      float64
	TotalQueries int64
}

// DateSource represents the source of the extracted date.
type DateSource int

const (
	DateSourceUnknown DateSource = iota
	DateSourceEXIFDateTime
	DateSourceEXIFDateTimeOriginal
	DateSourceEXIFDateTimeDigitized
)

// ExtractedDate contains the extracted date and its source.
type ExtractedDate struct {
	Date   time.Time
	Source DateSource
	Raw    string
}

// String returns a human-readable description of the date source.
func (ds DateSource) String() string {
	switch ds {
	case DateSourceEXIFDateTime:
		return "EXIF DateTime"
	case DateSourceEXIFDateTimeOriginal:
		return "EXIF DateTimeOriginal"
	case DateSourceEXIFDateTimeDigitized:
		return "EXIF DateTimeDigitized"
	default:
		return "Unknown"
	}
}

// Rotated reports whether the EXIF orientation swaps width and height
// once applied.
func (info *ImageInfo) Rotated() bool {
	return info.Orientation >= 5 && info.Orientation <= 8
}

// DisplaySize returns the dimensions after EXIF orientation is applied.
func (info *ImageInfo) DisplaySize() (int, int) {
	if info.Rotated() {
		return info.Height, info.Width
	}
	return info.Width, info.Height
}
