package compressor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateAdjustment(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		in     State
		want   State
	}{
		{"png raises level", FormatPNG, State{Quality: 5, Scale: 1}, State{Quality: 7, Scale: 1}},
		{"png caps level", FormatPNG, State{Quality: 8, Scale: 1}, State{Quality: 9, Scale: 1}},
		{"png at max shrinks", FormatPNG, State{Quality: 9, Scale: 1}, State{Quality: 9, Scale: 0.8}},
		{"gif follows png rule", FormatGIFAsPNG, State{Quality: 9, Scale: 0.5}, State{Quality: 9, Scale: 0.4}},
		{"jpeg lowers quality", FormatJPEG, State{Quality: 90, Scale: 1}, State{Quality: 75, Scale: 1}},
		{"jpeg keeps quality above floor", FormatJPEG, State{Quality: 46, Scale: 1}, State{Quality: 31, Scale: 1}},
		{"jpeg bottoms out at floor", FormatJPEG, State{Quality: 45, Scale: 1}, State{Quality: 85, Scale: 0.8}},
		{"webp bottoms out compounding", FormatWebP, State{Quality: 40, Scale: 0.8}, State{Quality: 85, Scale: 0.64}},
		{"avif lowers quality", FormatAVIF, State{Quality: 85, Scale: 0.5}, State{Quality: 70, Scale: 0.5}},
		{"other follows lossy rule", FormatOtherAsJPEG, State{Quality: 30, Scale: 1}, State{Quality: 85, Scale: 0.8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateAdjustment(tt.format, tt.in)
			assert.Equal(t, tt.want.Quality, got.Quality)
			assert.InDelta(t, tt.want.Scale, got.Scale, 1e-9)
		})
	}
}

func TestCalculateAdjustment_ScaleNeverIncreases(t *testing.T) {
	for _, f := range []Format{FormatJPEG, FormatPNG, FormatWebP, FormatAVIF, FormatGIFAsPNG, FormatOtherAsJPEG} {
		s := State{Quality: f.InitialQuality(), Scale: 1}
		for i := 0; i < 50; i++ {
			next := CalculateAdjustment(f, s)
			assert.LessOrEqual(t, next.Scale, s.Scale, "format %s step %d", f, i)
			s = next
		}
		assert.Less(t, s.Scale, 1.0, "format %s never shrank", f)
	}
}
