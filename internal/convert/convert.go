// Package convert turns scraped source images into the normalized JPEG
// representation the pipeline publishes.
package convert

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ContentType is the media type of every converted image.
const ContentType = "image/jpeg"

// Options bound the output image. Zero values fall back to defaults.
type Options struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

const (
	defaultMaxWidth  = 1600
	defaultMaxHeight = 1600
	defaultQuality   = 85
)

// Result is a converted image ready for publishing.
type Result struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Image decodes src, downscales it to fit the configured bounding box while
// keeping the aspect ratio, and re-encodes it as JPEG. Conversion is a pure
// function of the input bytes and options, so retries produce identical
// output. Images already inside the box are re-encoded without resampling.
func Image(src []byte, opts Options) (*Result, error) {
	if len(src) == 0 {
		return nil, fmt.Errorf("decode image: empty input")
	}
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = defaultMaxWidth
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = defaultMaxHeight
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = defaultQuality
	}

	decoded, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := decoded.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("decode image: zero-sized image")
	}

	targetW, targetH := fitWithin(width, height, opts.MaxWidth, opts.MaxHeight)
	if targetW != width || targetH != height {
		scaled := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), decoded, bounds, draw.Over, nil)
		decoded = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, decoded, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return &Result{
		Data:        buf.Bytes(),
		ContentType: ContentType,
		Width:       targetW,
		Height:      targetH,
	}, nil
}

// fitWithin scales (width, height) down to fit (maxW, maxH), preserving the
// aspect ratio. Never upscales.
func fitWithin(width, height, maxW, maxH int) (int, int) {
	if width <= maxW && height <= maxH {
		return width, height
	}
	scaleW := float64(maxW) / float64(width)
	scaleH := float64(maxH) / float64(height)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	targetW := int(float64(width) * scale)
	targetH := int(float64(height) * scale)
	if targetW < 1 {
		targetW = 1
	}
	if targetH < 1 {
		targetH = 1
	}
	return targetW, targetH
}
