package compressor

import "strings"

// Format is the encode variant chosen once from the input MIME type.
type Format int

const (
	FormatJPEG Format = iota
	FormatPNG
	FormatWebP
	FormatAVIF
	FormatGIFAsPNG
	FormatOtherAsJPEG
)

// Encoding is the concrete output codec.
type Encoding int

const (
	EncodingJPEG Encoding = iota
	EncodingPNG
	EncodingWebP
	EncodingAVIF
)

const (
	maxCompressionLevel = 9
	initialLossyQuality = 90
)

// FormatFromMime resolves the encode variant for a MIME type.
func FormatFromMime(mime string) Format {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/jpeg", "image/jpg":
		return FormatJPEG
	case "image/png":
		return FormatPNG
	case "image/webp":
		return FormatWebP
	case "image/avif":
		return FormatAVIF
	case "image/gif":
		return FormatGIFAsPNG
	default:
		return FormatOtherAsJPEG
	}
}

// Lossless reports whether quality is a compression level (1-9, higher is
// smaller) rather than a visual quality score.
func (f Format) Lossless() bool {
	return f == FormatPNG || f == FormatGIFAsPNG
}

// Encoding returns the codec used for the variant.
func (f Format) Encoding() Encoding {
	switch f {
	case FormatPNG, FormatGIFAsPNG:
		return EncodingPNG
	case FormatWebP:
		return EncodingWebP
	case FormatAVIF:
		return EncodingAVIF
	default:
		return EncodingJPEG
	}
}

// InitialQuality returns the quality of the first attempt.
func (f Format) InitialQuality() int {
	if f.Lossless() {
		return maxCompressionLevel
	}
	return initialLossyQuality
}

// OutputMime returns the MIME type reported for a successful attempt.
func (f Format) OutputMime(inputMime string) string {
	switch f {
	case FormatGIFAsPNG:
		return "image/png"
	case FormatOtherAsJPEG:
		return "image/jpeg"
	default:
		return inputMime
	}
}

// String returns the variant name.
func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	case FormatWebP:
		return "webp"
	case FormatAVIF:
		return "avif"
	case FormatGIFAsPNG:
		return "gif-as-png"
	case FormatOtherAsJPEG:
		return "other-as-jpeg"
	default:
		return "unknown"
	}
}

// String returns the codec name.
func (e Encoding) String() string {
	switch e {
	case EncodingJPEG:
		return "jpeg"
	case EncodingPNG:
		return "png"
	case EncodingWebP:
		return "webp"
	case EncodingAVIF:
		return "avif"
	default:
		return "unknown"
	}
}
