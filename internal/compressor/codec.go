package compressor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/avif"
	"github.com/gen2brain/webp"

	// Register the WebP decoder with image.Decode.
	_ "golang.org/x/image/webp"
)

// Codec is the raster capability the engine drives.
type Codec interface {
	// Decode returns the raster of an encoded image.
	Decode(data []byte) (image.Image, error)
	// Fit resizes img to fit inside width x height preserving aspect ratio.
	// Images already inside the box are returned unscaled.
	Fit(img image.Image, width, height int) image.Image
	// Encode writes img using enc. quality is a compression level (1-9) for
	// PNG and a visual quality (0-100) for the lossy codecs.
	Encode(w io.Writer, img image.Image, enc Encoding, quality int) error
}

// ImagingCodec implements Codec with disintegration/imaging for decode,
// resize, JPEG and PNG, and gen2brain encoders for WebP and AVIF.
type ImagingCodec struct {
	// Filter is the resampling filter used by Fit.
	Filter imaging.ResampleFilter
}

// NewImagingCodec returns an ImagingCodec using Lanczos resampling.
func NewImagingCodec() *ImagingCodec {
	return &ImagingCodec{Filter: imaging.Lanczos}
}

// Decode implements Codec. EXIF orientation is applied so re-encoded output,
// which carries no EXIF, keeps the visual orientation.
func (c *ImagingCodec) Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Fit implements Codec.
func (c *ImagingCodec) Fit(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() <= width && b.Dy() <= height {
		return img
	}
	return imaging.Fit(img, width, height, c.Filter)
}

// Encode implements Codec.
func (c *ImagingCodec) Encode(w io.Writer, img image.Image, enc Encoding, quality int) error {
	switch enc {
	case EncodingJPEG:
		return imaging.Encode(w, flatten(img), imaging.JPEG, imaging.JPEGQuality(quality))
	case EncodingPNG:
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(pngLevel(quality)))
	case EncodingWebP:
		return webp.Encode(w, img, webp.Options{Quality: quality, Method: 4})
	case EncodingAVIF:
		return avif.Encode(w, img, avif.Options{Quality: quality, QualityAlpha: quality, Speed: 8})
	default:
		return fmt.Errorf("unsupported encoding: %s", enc)
	}
}

// pngLevel maps a 1-9 compression level onto the levels the standard PNG
// encoder exposes. The encoder always picks row filters adaptively.
func pngLevel(level int) png.CompressionLevel {
	switch {
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

// flatten composites translucent images onto white, since JPEG has no alpha.
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
