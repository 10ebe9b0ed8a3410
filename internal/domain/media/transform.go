package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	libjpeg "github.com/pixiv/go-libjpeg/jpeg"
	"golang.org/x/sync/semaphore"

	_ "golang.org/x/image/webp"
)

// Re-encoding policy. These are fixed and not exposed as configuration.
const (
	MaxDimension     = 2000
	DefaultMaxPixels = 50_000_000
	jpegQuality      = 85
	webpQuality      = 85
	pngCompression   = png.BestCompression
)

type rasterFormat int

const (
	formatJPEG rasterFormat = iota + 1
	formatPNG
	formatWebP
)

var rasterFormats = map[string]rasterFormat{
	"image/jpeg": formatJPEG,
	"image/png":  formatPNG,
	"image/webp": formatWebP,
}

// IsTransformable reports whether uploads of mimeType are decoded and
// re-encoded. GIF and SVG are stored as-is.
func IsTransformable(mimeType string) bool {
	_, ok := rasterFormats[normalizeMimeType(mimeType)]
	return ok
}

// Transformed is the re-encoded payload with dimensions read back from it.
type Transformed struct {
	Data    []byte
	Width   int
	Height  int
	Resized bool
}

// Transformer bounds images to MaxDimension on both axes and re-encodes them.
// Decoding is CPU and memory heavy, so concurrent transforms are capped.
type Transformer struct {
	sem          *semaphore.Weighted
	maxDimension int
	maxPixels    int
}

func NewTransformer(concurrency int) *Transformer {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Transformer{
		sem:          semaphore.NewWeighted(int64(concurrency)),
		maxDimension: MaxDimension,
		maxPixels:    DefaultMaxPixels,
	}
}

func (t *Transformer) Transform(ctx context.Context, data []byte, mimeType string) (*Transformed, error) {
	format, ok := rasterFormats[normalizeMimeType(mimeType)]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a raster format", ErrTransformFailed, mimeType)
	}

	if err := t.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer t.sem.Release(1)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrTransformFailed, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > t.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds pixel limit", ErrTransformFailed, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrTransformFailed, err)
	}

	resized := false
	// shrink-only, width first, then height against the current image
	if img.Bounds().Dx() > t.maxDimension {
		img = imaging.Resize(img, t.maxDimension, 0, imaging.Lanczos)
		resized = true
	}
	if img.Bounds().Dy() > t.maxDimension {
		img = imaging.Resize(img, 0, t.maxDimension, imaging.Lanczos)
		resized = true
	}

	var buf bytes.Buffer
	if err := encode(&buf, img, format); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrTransformFailed, err)
	}

	out, _, err := image.DecodeConfig(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("%w: re-read encoded image: %v", ErrTransformFailed, err)
	}

	return &Transformed{
		Data:    buf.Bytes(),
		Width:   out.Width,
		Height:  out.Height,
		Resized: resized,
	}, nil
}

func encode(w io.Writer, img image.Image, format rasterFormat) error {
	switch format {
	case formatJPEG:
		return libjpeg.Encode(w, toLibjpegImage(img), &libjpeg.EncoderOptions{
			Quality:         jpegQuality,
			OptimizeCoding:  true,
			ProgressiveMode: true,
		})
	case formatPNG:
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(pngCompression))
	case formatWebP:
		return webp.Encode(w, img, &webp.Options{Quality: webpQuality})
	}
	return fmt.Errorf("unknown raster format %d", format)
}

// toLibjpegImage hands libjpeg one of the layouts it encodes directly.
func toLibjpegImage(img image.Image) image.Image {
	switch img.(type) {
	case *image.YCbCr, *image.Gray, *image.RGBA:
		return img
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba
}
