package canonical

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"time"

	// Register the decoders accepted as input.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

const (
	// BoxSize is the edge length of the canonical square raster.
	BoxSize = 512
	// Quality is the JPEG quality used for the canonical round trip.
	Quality = 95
	// MaxInputPixels rejects inputs whose decoded raster would be unreasonably large.
	MaxInputPixels = 80_000_000
)

// Background fills the padding around the fitted picture.
var Background = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// Canonicalizer turns encoded images into canonical rasters. The zero value
// is usable and applies no timeout of its own.
type Canonicalizer struct {
	// Timeout bounds a single Canonicalize call. Zero means the caller's
	// context alone decides.
	Timeout time.Duration
}

// New returns a Canonicalizer with the given per-call timeout.
func New(timeout time.Duration) *Canonicalizer {
	return &Canonicalizer{Timeout: timeout}
}

type decodeResult struct {
	img *image.RGBA
	err error
}

// Canonicalize decodes data and returns its canonical raster. Any failure,
// including expiry of ctx, is reported as *UnsupportedImageError.
func (c *Canonicalizer) Canonicalize(ctx context.Context, data []byte) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, unsupported("empty input", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if c != nil && c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, unsupported("canceled before decode", err)
	}

	done := make(chan decodeResult, 1)
	go func() {
		img, err := canonicalizeBytes(data)
		done <- decodeResult{img: img, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, unsupported("decode did not finish in time", ctx.Err())
	case res := <-done:
		return res.img, res.err
	}
}

func canonicalizeBytes(data []byte) (img *image.RGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			img = nil
			err = unsupported("decoder panic", panicError{value: r})
		}
	}()

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, unsupported("unrecognized format", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, unsupported("empty raster", nil)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxInputPixels {
		return nil, unsupported("raster too large", nil)
	}

	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, unsupported("decode "+format, err)
	}

	oriented := ApplyOrientation(toRGBA(decoded), ReadOrientation(data))
	return CanonicalizeImage(oriented)
}

// CanonicalizeImage runs the fit, pad and JPEG round trip on an already
// decoded raster. Canonical rasters are fixed points up to JPEG noise.
func CanonicalizeImage(img image.Image) (*image.RGBA, error) {
	if img == nil {
		return nil, unsupported("nil raster", nil)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, unsupported("empty raster", nil)
	}

	boxed := fit(img, BoxSize)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, boxed, &jpeg.Options{Quality: Quality}); err != nil {
		return nil, unsupported("encode canonical jpeg", err)
	}
	roundTrip, err := jpeg.Decode(&buf)
	if err != nil {
		return nil, unsupported("decode canonical jpeg", err)
	}
	return toRGBA(roundTrip), nil
}

// fit scales img to fit inside a box x box square and centers it on a white
// canvas.
func fit(img image.Image, box int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	scale := math.Min(float64(box)/float64(w), float64(box)/float64(h))
	nw := clampDim(int(math.Round(float64(w)*scale)), box)
	nh := clampDim(int(math.Round(float64(h)*scale)), box)

	var scaled image.Image = img
	if nw != w || nh != h {
		scaled = resize.Resize(uint(nw), uint(nh), img, resize.Lanczos3)
	}

	canvas := blank(box, box)
	offset := image.Pt((box-nw)/2, (box-nh)/2)
	target := image.Rectangle{Min: offset, Max: offset.Add(image.Pt(nw, nh))}
	draw.Draw(canvas, target, scaled, scaled.Bounds().Min, draw.Over)
	return canvas
}

func clampDim(v, box int) int {
	if v < 1 {
		return 1
	}
	if v > box {
		return box
	}
	return v
}

func blank(w, h int) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)
	return canvas
}

// toRGBA returns img as a zero-origin *image.RGBA, composited over white.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) && opaque(rgba) {
		return rgba
	}
	b := img.Bounds()
	out := blank(b.Dx(), b.Dy())
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}

func opaque(img *image.RGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0xff {
			return false
		}
	}
	return true
}

type panicError struct {
	value any
}

func (p panicError) Error() string {
	if err, ok := p.value.(error); ok {
		return err.Error()
	}
	if s, ok := p.value.(string); ok {
		return s
	}
	return "panic"
}
