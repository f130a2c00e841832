package statistics

import (
	"errors"
	"testing"

	"image-fit-go/internal/processor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordResult(t *testing.T) {
	s := NewStatistics()

	s.RecordResult("anthropic", processor.Result{
		Attachment:     &processor.Attachment{Mime: "image/jpeg"},
		WasCompressed:  true,
		OriginalSize:   4000,
		CompressedSize: 1000,
	})
	s.RecordResult("anthropic", processor.Result{
		Attachment:     &processor.Attachment{Mime: "image/png"},
		OriginalSize:   500,
		CompressedSize: 500,
	})
	s.RecordResult("openai", processor.Result{
		Attachment:     &processor.Attachment{Mime: "image/png", Filename: "a.png"},
		Failed:         true,
		OriginalSize:   800,
		CompressedSize: 800,
		Err:            errors.New("decode failed"),
	})
	// Not an image part.
	s.RecordResult("openai", processor.Result{Attachment: &processor.Attachment{Type: "text"}})

	assert.Equal(t, int64(3), s.ImageParts)
	assert.Equal(t, int64(1), s.PartsCompressed)
	assert.Equal(t, int64(1), s.PartsUnchanged)
	assert.Equal(t, int64(1), s.PartsFailed)
	assert.Equal(t, int64(5300), s.BytesBefore)
	assert.Equal(t, int64(2300), s.BytesAfter)
	assert.Equal(t, int64(3000), s.BytesSaved())

	require.Contains(t, s.DestinationStats, "anthropic")
	assert.Equal(t, int64(2), s.DestinationStats["anthropic"].Parts)
	assert.Equal(t, int64(1), s.DestinationStats["openai"].Failed)
	assert.Equal(t, int64(2), s.MimeStats["image/png"])

	require.Len(t, s.Errors, 1)
	assert.Equal(t, "a.png", s.Errors[0].Filename)
	assert.Equal(t, "decode failed", s.Errors[0].Error)
}

func TestRecordResult_MalformedCountsAsFailed(t *testing.T) {
	s := NewStatistics()
	s.RecordResult("default", processor.Result{Failed: true})

	assert.Equal(t, int64(1), s.PartsFailed)
	assert.Equal(t, int64(0), s.BytesBefore)
	require.Len(t, s.Errors, 1)
	assert.Equal(t, "unknown error", s.Errors[0].Error)
}

func TestRecordResult_CacheHit(t *testing.T) {
	s := NewStatistics()
	s.RecordResults("default", []processor.Result{
		{WasCompressed: true, CacheHit: true, OriginalSize: 10, CompressedSize: 5},
		{WasCompressed: true, OriginalSize: 10, CompressedSize: 5},
	})

	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(2), s.GetPartsCompressed())
}

func TestRecordResult_NormalizesDestination(t *testing.T) {
	s := NewStatistics()
	res := processor.Result{WasCompressed: true, OriginalSize: 10, CompressedSize: 5}
	s.RecordResult("Anthropic", res)
	s.RecordResult(" anthropic ", res)

	require.Len(t, s.DestinationStats, 1)
	assert.Equal(t, int64(2), s.DestinationStats["anthropic"].Parts)
}

func TestFinalizeAndSummary(t *testing.T) {
	s := NewStatistics()
	s.IncrementTotalParts()
	s.IncrementTotalParts()
	s.RecordResult("anthropic", processor.Result{WasCompressed: true, OriginalSize: 2048, CompressedSize: 1024})
	s.Finalize()

	assert.InDelta(t, 0.5, s.CompressionRatio, 1e-9)

	summary := s.GetSummary()
	assert.Contains(t, summary, "Total Inspected: 2")
	assert.Contains(t, summary, "Compressed: 1")
	assert.Contains(t, summary, "Before: 2.0 KiB")
	assert.Contains(t, summary, "Saved: 1.0 KiB")
	assert.Contains(t, summary, "Ratio: 50.00%")

	assert.Contains(t, s.GetDestinationBreakdown(), "anthropic: 1 parts, 1 compressed, 0 failed")
	assert.Equal(t, "No errors occurred during processing", s.GetErrorSummary())
}

func TestGetErrorSummary_Truncates(t *testing.T) {
	s := NewStatistics()
	for i := 0; i < 12; i++ {
		s.RecordResult("default", processor.Result{Failed: true, OriginalSize: 1, Err: errors.New("bad")})
	}

	summary := s.GetErrorSummary()
	assert.Contains(t, summary, "Errors (12 total)")
	assert.Contains(t, summary, "... and 2 more errors")
	assert.Contains(t, summary, "<inline>")
}

func TestEmptyBreakdown(t *testing.T) {
	s := NewStatistics()
	assert.Equal(t, "No destination statistics available", s.GetDestinationBreakdown())
	assert.Equal(t, int64(0), s.BytesSaved())
}
