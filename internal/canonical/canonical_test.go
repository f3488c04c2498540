package canonical_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/Goosie/nostr-object-identity/internal/canonical"
	"github.com/Goosie/nostr-object-identity/internal/testsupport"
)

func meanAbsDiff(t *testing.T, a, b *image.RGBA) float64 {
	t.Helper()
	if a.Bounds() != b.Bounds() {
		t.Fatalf("bounds differ: %v vs %v", a.Bounds(), b.Bounds())
	}
	var total float64
	for i := range a.Pix {
		d := int(a.Pix[i]) - int(b.Pix[i])
		if d < 0 {
			d = -d
		}
		total += float64(d)
	}
	return total / float64(len(a.Pix))
}

func luma(c color.RGBA) int {
	return (299*int(c.R) + 587*int(c.G) + 114*int(c.B)) / 1000
}

func TestCanonicalizeProducesFixedBox(t *testing.T) {
	c := canonical.New(0)
	for _, size := range [][2]int{{640, 480}, {120, 300}, {512, 512}, {33, 17}} {
		data := testsupport.EncodePNG(t, testsupport.GradientImage(size[0], size[1]))
		img, err := c.Canonicalize(context.Background(), data)
		if err != nil {
			t.Fatalf("canonicalize %v: %v", size, err)
		}
		if got := img.Bounds(); got != image.Rect(0, 0, canonical.BoxSize, canonical.BoxSize) {
			t.Fatalf("size %v: bounds = %v", size, got)
		}
	}
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	c := canonical.New(time.Minute)
	first, err := c.Canonicalize(context.Background(), testsupport.EncodePNG(t, testsupport.GradientImage(300, 200)))
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := c.Canonicalize(context.Background(), testsupport.EncodePNG(t, first))
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if diff := meanAbsDiff(t, first, second); diff > 2 {
		t.Fatalf("canonical raster drifted: mean abs diff %.3f", diff)
	}
}

func TestCanonicalizePadsWithWhite(t *testing.T) {
	blue := testsupport.UniformImage(color.RGBA{B: 200, A: 255}, 64)
	wide := image.NewRGBA(image.Rect(0, 0, 400, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 400; x++ {
			wide.SetRGBA(x, y, blue.RGBAAt(0, 0))
		}
	}
	img, err := canonical.New(0).Canonicalize(context.Background(), testsupport.EncodePNG(t, wide))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	corner := img.RGBAAt(5, 5)
	if corner.R < 240 || corner.G < 240 || corner.B < 240 {
		t.Fatalf("expected white padding, got %+v", corner)
	}
	center := img.RGBAAt(256, 256)
	if center.B < 150 || center.R > 60 {
		t.Fatalf("expected blue content at center, got %+v", center)
	}
}

func TestCanonicalizeAppliesExifOrientation(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			c := color.RGBA{R: 255, G: 255, B: 255, A: 255}
			if x < 100 {
				c = color.RGBA{A: 255}
			}
			src.SetRGBA(x, y, c)
		}
	}
	data := testsupport.EncodeJPEGWithOrientation(t, src, 6)
	if got := canonical.ReadOrientation(data); got != 6 {
		t.Fatalf("ReadOrientation = %d, want 6", got)
	}

	img, err := canonical.New(0).Canonicalize(context.Background(), data)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	// Rotating clockwise moves the dark left half to the top.
	if top := luma(img.RGBAAt(256, 100)); top > 60 {
		t.Fatalf("expected dark top after orientation, luma %d", top)
	}
	if bottom := luma(img.RGBAAt(256, 400)); bottom < 200 {
		t.Fatalf("expected bright bottom after orientation, luma %d", bottom)
	}
	// Portrait content is pillarboxed.
	if side := luma(img.RGBAAt(20, 100)); side < 240 {
		t.Fatalf("expected white pillarbox, luma %d", side)
	}
}

func TestReadOrientationDefaultsToUpright(t *testing.T) {
	data := testsupport.EncodePNG(t, testsupport.GradientImage(10, 10))
	if got := canonical.ReadOrientation(data); got != 1 {
		t.Fatalf("ReadOrientation = %d, want 1", got)
	}
}

func TestCanonicalizeRejectsUndecodableInput(t *testing.T) {
	c := canonical.New(0)
	for name, data := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("definitely not an image"),
		"truncated": func() []byte {
			full := testsupport.EncodePNG(t, testsupport.GradientImage(64, 64))
			return full[:len(full)/3]
		}(),
	} {
		_, err := c.Canonicalize(context.Background(), data)
		var unsupported *canonical.UnsupportedImageError
		if !errors.As(err, &unsupported) {
			t.Fatalf("%s: expected UnsupportedImageError, got %v", name, err)
		}
		if unsupported.ErrorKind() != "validation" {
			t.Fatalf("%s: unexpected kind %q", name, unsupported.ErrorKind())
		}
	}
}

func TestCanonicalizeHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := canonical.New(0).Canonicalize(ctx, testsupport.EncodePNG(t, testsupport.GradientImage(64, 64)))
	var unsupported *canonical.UnsupportedImageError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedImageError, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected wrapped context.Canceled, got %v", err)
	}
}
