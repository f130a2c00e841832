package compressor

import (
	"errors"

	"image-fit-go/internal/datauri"
)

// ErrEmptyImage is returned when the decoded image has no pixels.
var ErrEmptyImage = errors.New("image has zero width or height")

// Options defines the tunables of the compression search.
type Options struct {
	// TargetMultiplier reserves headroom for base64 expansion: the search
	// aims for maxSize * TargetMultiplier decoded bytes.
	TargetMultiplier float64
	// MaxDimension caps the longest side before the first attempt.
	MaxDimension int
	// FallbackDimension bounds both sides of the last-resort encode.
	FallbackDimension int
	// MaxAttempts bounds the number of encode attempts before falling back.
	MaxAttempts int
}

// DefaultOptions returns the standard compression tunables.
func DefaultOptions() Options {
	return Options{
		TargetMultiplier:  0.7,
		MaxDimension:      2048,
		FallbackDimension: 1024,
		MaxAttempts:       10,
	}
}

// TargetSize returns the decoded byte budget for a destination ceiling.
func (o Options) TargetSize(maxSize int) int {
	return int(float64(maxSize) * o.TargetMultiplier)
}

// State is the mutable search position between attempts.
type State struct {
	Quality int
	Scale   float64
}

// AttemptStats describes a single encode attempt.
type AttemptStats struct {
	Attempt    int
	Format     Format
	Quality    int
	Scale      float64
	Width      int
	Height     int
	Size       int
	TargetSize int
}

// Observer receives progress notifications from the compression search.
type Observer interface {
	OnAttempt(stats AttemptStats)
	OnFallback(reason string)
}

// NopObserver discards all notifications.
type NopObserver struct{}

// OnAttempt implements Observer.
func (NopObserver) OnAttempt(AttemptStats) {}

// OnFallback implements Observer.
func (NopObserver) OnFallback(string) {}

// Compressor defines the interface for progressive image compression.
type Compressor interface {
	// Compress re-encodes data so that it fits the headroom-adjusted budget of
	// maxSize. Input already within budget is returned unchanged.
	Compress(data []byte, mime string, maxSize int) (*datauri.EncodedImage, error)
	// Options returns the effective tunables. Callers size their own
	// no-compress check with Options().TargetSize.
	Options() Options
}
