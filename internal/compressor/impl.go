package compressor

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"image-fit-go/internal/datauri"
)

// DefaultCompressor is the default implementation of the Compressor interface.
type DefaultCompressor struct {
	codec    Codec
	observer Observer
	opts     Options
}

// NewDefaultCompressor creates a new DefaultCompressor. A nil codec selects
// ImagingCodec, a nil observer selects NopObserver.
func NewDefaultCompressor(codec Codec, observer Observer, opts Options) *DefaultCompressor {
	if codec == nil {
		codec = NewImagingCodec()
	}
	if observer == nil {
		observer = NopObserver{}
	}
	defaults := DefaultOptions()
	if opts.TargetMultiplier <= 0 || opts.TargetMultiplier > 1 {
		opts.TargetMultiplier = defaults.TargetMultiplier
	}
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = defaults.MaxDimension
	}
	if opts.FallbackDimension <= 0 {
		opts.FallbackDimension = defaults.FallbackDimension
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaults.MaxAttempts
	}
	return &DefaultCompressor{codec: codec, observer: observer, opts: opts}
}

// Options returns the effective options.
func (c *DefaultCompressor) Options() Options {
	return c.opts
}

// Compress performs the progressive quality/scale search. It always returns
// an image unless decoding fails or the fallback encode itself fails.
func (c *DefaultCompressor) Compress(data []byte, mime string, maxSize int) (*datauri.EncodedImage, error) {
	targetSize := c.opts.TargetSize(maxSize)
	if len(data) <= targetSize {
		return &datauri.EncodedImage{Data: data, Mime: mime}, nil
	}

	format := FormatFromMime(mime)

	img, err := c.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, ErrEmptyImage
	}

	state := State{
		Quality: format.InitialQuality(),
		Scale:   math.Min(1, float64(c.opts.MaxDimension)/float64(max(width, height))),
	}

	// frame is only resampled when the scale moves.
	frame, frameScale := img, 1.0
	reason := fmt.Sprintf("no attempt reached %d bytes within %d attempts", targetSize, c.opts.MaxAttempts)
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if state.Scale < 1 && state.Scale != frameScale {
			w, h := scaledSize(width, height, state.Scale)
			frame, frameScale = c.codec.Fit(img, w, h), state.Scale
		}

		var buf bytes.Buffer
		if err := c.codec.Encode(&buf, frame, format.Encoding(), state.Quality); err != nil {
			reason = fmt.Sprintf("attempt %d: encode %s: %v", attempt, format.Encoding(), err)
			break
		}

		fb := frame.Bounds()
		c.observer.OnAttempt(AttemptStats{
			Attempt:    attempt,
			Format:     format,
			Quality:    state.Quality,
			Scale:      state.Scale,
			Width:      fb.Dx(),
			Height:     fb.Dy(),
			Size:       buf.Len(),
			TargetSize: targetSize,
		})

		if buf.Len() <= targetSize {
			return &datauri.EncodedImage{Data: buf.Bytes(), Mime: format.OutputMime(mime)}, nil
		}

		state = CalculateAdjustment(format, state)
	}

	c.observer.OnFallback(reason)
	return c.fallback(img, format)
}

// fallback encodes at a fixed conservative setting inside the fallback box.
// The result is returned whether or not it meets the target.
func (c *DefaultCompressor) fallback(img image.Image, format Format) (*datauri.EncodedImage, error) {
	frame := c.codec.Fit(img, c.opts.FallbackDimension, c.opts.FallbackDimension)

	enc, quality, mime := EncodingJPEG, 70, "image/jpeg"
	if format == FormatPNG {
		enc, quality, mime = EncodingPNG, maxCompressionLevel, "image/png"
	}

	var buf bytes.Buffer
	if err := c.codec.Encode(&buf, frame, enc, quality); err != nil {
		return nil, fmt.Errorf("fallback encode %s: %w", enc, err)
	}
	return &datauri.EncodedImage{Data: buf.Bytes(), Mime: mime}, nil
}

// scaledSize returns the rounded dimensions for scale, never below 1x1.
func scaledSize(width, height int, scale float64) (int, int) {
	w := int(math.Round(float64(width) * scale))
	h := int(math.Round(float64(height) * scale))
	return max(w, 1), max(h, 1)
}
