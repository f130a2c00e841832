package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	_ "github.com/gen2brain/avif"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
)

// ErrNotImage is returned when the sniffed content type is not an image.
var ErrNotImage = errors.New("content is not an image")

// EXIFInspector reads sniffed mime, dimensions and EXIF metadata.
type EXIFInspector struct {
	logger *logrus.Logger
	cache  sync.Map
	stats  CacheStats
	mutex  sync.RWMutex
}

// NewEXIFInspector returns a new EXIFInspector.
func NewEXIFInspector(logger *logrus.Logger) *EXIFInspector {
	if logger == nil {
		logger = logrus.New()
	}
	return &EXIFInspector{
		logger: logger,
		stats:  CacheStats{},
	}
}

// Inspect returns metadata for an encoded image held in memory.
func (e *EXIFInspector) Inspect(data []byte) (*ImageInfo, error) {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, mt.String())
	}

	info := &ImageInfo{
		Mime:        mt.String(),
		Extension:   mt.Extension(),
		Size:        len(data),
		Orientation: 1,
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}
	info.Width = cfg.Width
	info.Height = cfg.Height

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		e.logger.Debugf("No EXIF metadata in %s image: %v", info.Mime, err)
		return info, nil
	}
	info.HasEXIF = true

	if field, err := x.Get(exif.Orientation); err == nil {
		if o, err := field.Int(0); err == nil && o >= 1 && o <= 8 {
			info.Orientation = o
		}
	}
	info.Date = e.extractDate(x)

	return info, nil
}

// InspectFile returns metadata for the image at filePath. Results are cached
// by path, size and modification time.
func (e *EXIFInspector) InspectFile(filePath string) (*ImageInfo, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	key := e.getCacheKey(filePath, fileInfo)
	if value, ok := e.cache.Load(key); ok {
		if info, ok := value.(*ImageInfo); ok {
			e.incrementCacheHits()
			cp := *info
			return &cp, nil
		}
	}
	e.incrementCacheMisses()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	info, err := e.Inspect(data)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s: %w", filePath, err)
	}

	e.cache.Store(key, info)
	e.mutex.Lock()
	e.stats.Size++
	e.mutex.Unlock()

	cp := *info
	return &cp, nil
}

// ClearCache removes all entries from the internal cache and resets statistics.
func (e *EXIFInspector) ClearCache() {
	e.mutex.Lock()
	e.cache.Clear()
	e.stats = CacheStats{}
	e.mutex.Unlock()
}

// GetCacheStats returns cache statistics for this inspector.
func (e *EXIFInspector) GetCacheStats() CacheStats {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	stats := e.stats
	if stats.TotalQueries > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.TotalQueries)
	}
	return stats
}

// extractDate returns the first usable EXIF date, or nil.
func (e *EXIFInspector) extractDate(x *exif.Exif) *ExtractedDate {
	sources := []struct {
		name   exif.FieldName
		source DateSource
	}{
		{exif.DateTimeOriginal, DateSourceEXIFDateTimeOriginal},
		{exif.DateTime, DateSourceEXIFDateTime},
		{exif.DateTimeDigitized, DateSourceEXIFDateTimeDigitized},
	}

	for _, s := range sources {
		field, err := x.Get(s.name)
		if err != nil {
			continue
		}
		raw, err := field.StringVal()
		if err != nil {
			continue
		}
		raw = strings.TrimRight(raw, "\x00 ")
		if date := e.parseEXIFDateTime(raw); date != nil {
			return &ExtractedDate{Date: *date, Source: s.source, Raw: raw}
		}
	}
	return nil
}

// parseEXIFDateTime parses an EXIF date time string and returns a time.Time pointer.
// Returns nil if parsing fails.
func (e *EXIFInspector) parseEXIFDateTime(dateStr string) *time.Time {
	if dateStr == "" {
		return nil
	}

	formats := []string{
		"2006:01:02 15:04:05",
		"2006-01-02 15:04:05",
		"2006:01:02",
		"2006-01-02",
		time.RFC3339,
	}

	for _, format := range formats {
		if date, err := time.Parse(format, dateStr); err == nil {
			return &date
		}
	}

	e.logger.Debugf("Failed to parse date string: %s", dateStr)
	return nil
}

// getCacheKey returns a cache key for the given file path and file info.
func (e *EXIFInspector) getCacheKey(filePath string, fileInfo os.FileInfo) string {
	return fmt.Sprintf("%s:%d:%d", filePath, fileInfo.Size(), fileInfo.ModTime().UnixNano())
}

func (e *EXIFInspector) incrementCacheHits() {
	e.mutex.Lock()
	e.stats.Hits++
	e.stats.TotalQueries++
	e.mutex.Unlock()
}

func (e *EXIFInspector) incrementCacheMisses() {
	e.mutex.Lock()
	e.stats.Misses++
	e.stats.TotalQueries++
	e.mutex.Unlock()
}
