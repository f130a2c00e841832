package statistics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"image-fit-go/internal/processor"
	"image-fit-go/internal/providers"

	"github.com/dustin/go-humanize"
)

// Statistics contains all statistics for an image fitting run.
type Statistics struct {
	TotalParts      int64
	ImageParts      int64
	PartsCompressed int64
	PartsUnchanged  int64
	PartsFailed     int64
	CacheHits       int64

	BytesBefore int64
	BytesAfter  int64

	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
	CompressionRatio float64

	Errors []StatError

	DestinationStats map[string]*DestinationStats
	MimeStats        map[string]int64

	mutex sync.RWMutex
}

// DestinationStats contains per-destination counters.
type DestinationStats struct {
	Parts       int64
	Compressed  int64
	Failed      int64
	BytesBefore int64
	BytesAfter  int64
}

// StatError represents a part that could not be fitted.
type StatError struct {
	Destination string
	Filename    string
	Error       string
	Timestamp   time.Time
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime:        time.Now(),
		Errors:           make([]StatError, 0),
		DestinationStats: make(map[string]*DestinationStats),
		MimeStats:        make(map[string]int64),
	}
}

// IncrementTotalParts increases the count of inspected parts by 1.
func (s *Statistics) IncrementTotalParts() {
	atomic.AddInt64(&s.TotalParts, 1)
}

// RecordResult folds a processor result into the statistics.
func (s *Statistics) RecordResult(destinationID string, res processor.Result) {
	if !res.WasCompressed && !res.Failed && res.OriginalSize == 0 {
		// Not an image part.
		return
	}

	atomic.AddInt64(&s.ImageParts, 1)
	atomic.AddInt64(&s.BytesBefore, int64(res.OriginalSize))
	after := res.CompressedSize
	if res.Failed && after == 0 {
		after = res.OriginalSize
	}
	atomic.AddInt64(&s.BytesAfter, int64(after))

	switch {
	case res.Failed:
		atomic.AddInt64(&s.PartsFailed, 1)
	case res.WasCompressed:
		atomic.AddInt64(&s.PartsCompressed, 1)
	default:
		atomic.AddInt64(&s.PartsUnchanged, 1)
	}
	if res.CacheHit {
		atomic.AddInt64(&s.CacheHits, 1)
	}

	destinationID = providers.NormalizeID(destinationID)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	ds, ok := s.DestinationStats[destinationID]
	if !ok {
		ds = &DestinationStats{}
		s.DestinationStats[destinationID] = ds
	}
	ds.Parts++
	ds.BytesBefore += int64(res.OriginalSize)
	ds.BytesAfter += int64(after)
	if res.WasCompressed {
		ds.Compressed++
	}
	if res.Failed {
		ds.Failed++
	}

	if res.Attachment != nil && res.Attachment.Mime != "" {
		s.MimeStats[strings.ToLower(res.Attachment.Mime)]++
	}

	if res.Failed {
		msg := "unknown error"
		if res.Err != nil {
			msg = res.Err.Error()
		}
		filename := ""
		if res.Attachment != nil {
			filename = res.Attachment.Filename
		}
		s.Errors = append(s.Errors, StatError{
			Destination: destinationID,
			Filename:    filename,
			Error:       msg,
			Timestamp:   time.Now(),
		})
	}
}

// RecordResults folds a batch of results into the statistics.
func (s *Statistics) RecordResults(destinationID string, results []processor.Result) {
	for _, res := range results {
		s.RecordResult(destinationID, res)
	}
}

// Finalize calculates the duration and the overall compression ratio.
func (s *Statistics) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)

	before := atomic.LoadInt64(&s.BytesBefore)
	after := atomic.LoadInt64(&s.BytesAfter)
	if before > 0 {
		s.CompressionRatio = float64(after) / float64(before)
	}
}

// BytesSaved returns how many bytes were removed across all parts.
func (s *Statistics) BytesSaved() int64 {
	saved := atomic.LoadInt64(&s.BytesBefore) - atomic.LoadInt64(&s.BytesAfter)
	if saved < 0 {
		return 0
	}
	return saved
}

// GetSummary returns a formatted summary of all statistics.
func (s *Statistics) GetSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return fmt.Sprintf(`Image Fit Statistics Summary:

Parts:
		Total Inspected: %d
		Images: %d
		Compressed: %d
		Unchanged: %d
		Failed: %d
		Cache Hits: %d

Bytes:
		Before: %s
		After: %s
		Saved: %s
		Ratio: %.2f%%

Performance:
		Duration: %v`,
		atomic.LoadInt64(&s.TotalParts),
		atomic.LoadInt64(&s.ImageParts),
		atomic.LoadInt64(&s.PartsCompressed),
		atomic.LoadInt64(&s.PartsUnchanged),
		atomic.LoadInt64(&s.PartsFailed),
		atomic.LoadInt64(&s.CacheHits),
		humanize.IBytes(uint64(atomic.LoadInt64(&s.BytesBefore))),
		humanize.IBytes(uint64(atomic.LoadInt64(&s.BytesAfter))),
		humanize.IBytes(uint64(s.BytesSaved())),
		s.CompressionRatio*100,
		s.Duration)
}

// GetDestinationBreakdown returns a formatted breakdown per destination.
func (s *Statistics) GetDestinationBreakdown() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.DestinationStats) == 0 {
		return "No destination statistics available"
	}

	ids := make([]string, 0, len(s.DestinationStats))
	for id := range s.DestinationStats {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("Destination Breakdown:\n")
	for _, id := range ids {
		ds := s.DestinationStats[id]
		fmt.Fprintf(&b, "  %s: %d parts, %d compressed, %d failed, %s -> %s\n",
			id, ds.Parts, ds.Compressed, ds.Failed,
			humanize.IBytes(uint64(ds.BytesBefore)),
			humanize.IBytes(uint64(ds.BytesAfter)))
	}
	return b.String()
}

// GetErrorSummary returns a summary of parts that could not be fitted.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= 10 {
			fmt.Fprintf(&b, "  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		name := err.Filename
		if name == "" {
			name = "<inline>"
		}
		fmt.Fprintf(&b, "  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Destination,
			name,
			err.Error)
	}
	return b.String()
}

// GetPartsFailed returns the number of parts that could not be fitted.
func (s *Statistics) GetPartsFailed() int64 {
	return atomic.LoadInt64(&s.PartsFailed)
}

// GetPartsCompressed returns the number of parts that were rewritten.
func (s *Statistics) GetPartsCompressed() int64 {
	return atomic.LoadInt64(&s.PartsCompressed)
}
