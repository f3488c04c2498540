package phash_test

import (
	"context"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/Goosie/nostr-object-identity/internal/canonical"
	"github.com/Goosie/nostr-object-identity/internal/logging"
	"github.com/Goosie/nostr-object-identity/internal/phash"
	"github.com/Goosie/nostr-object-identity/internal/testsupport"
)

func canonicalBlock(t *testing.T, seed uint64) *image.RGBA {
	t.Helper()
	img, err := canonical.New(0).Canonicalize(context.Background(), testsupport.EncodePNG(t, testsupport.BlockImage(seed, 512)))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	return img
}

func TestPrimaryBitLayout(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 512, 512))
	for y := 0; y < 512; y++ {
		for x := 0; x < 512; x++ {
			c := color.RGBA{A: 255}
			if x >= 256 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	fp := phash.NewGenerator(1, logging.NewNop()).Primary(img)
	want := strings.Repeat("00ff", phash.GridSize)
	if fp.Hex != want {
		t.Fatalf("fingerprint = %s, want %s", fp.Hex, want)
	}
	if fp.Kind != phash.KindPerceptual {
		t.Fatalf("kind = %s", fp.Kind)
	}
}

func TestPrimaryIsDeterministic(t *testing.T) {
	gen := phash.NewGenerator(2, logging.NewNop())
	first := gen.Primary(canonicalBlock(t, 42))
	second := gen.Primary(canonicalBlock(t, 42))
	if first != second {
		t.Fatalf("fingerprints differ: %s vs %s", first, second)
	}
	if len(first.Hex) != phash.HexLength {
		t.Fatalf("fingerprint length = %d", len(first.Hex))
	}
	other := gen.Primary(canonicalBlock(t, 43))
	if d, err := phash.Distance(first, other); err != nil || d == 0 {
		t.Fatalf("distinct pictures should differ: d=%d err=%v", d, err)
	}
}

func TestBlankImagesFallBackAndDiffer(t *testing.T) {
	gen := phash.NewGenerator(1, logging.NewNop())
	c := canonical.New(0)

	var prints []phash.Fingerprint
	for _, col := range []color.RGBA{{R: 220, A: 255}, {B: 220, A: 255}} {
		canon, err := c.Canonicalize(context.Background(), testsupport.EncodePNG(t, testsupport.UniformImage(col, 256)))
		if err != nil {
			t.Fatalf("canonicalize: %v", err)
		}
		fp := gen.Primary(canon)
		if fp.Kind != phash.KindFallback {
			t.Fatalf("expected fallback for uniform %+v, got %s", col, fp.Kind)
		}
		if len(fp.Hex) != phash.HexLength || !strings.HasPrefix(fp.String(), "fb:") {
			t.Fatalf("unexpected fallback text %q", fp.String())
		}
		prints = append(prints, fp)
	}
	if prints[0] == prints[1] {
		t.Fatal("red and blue blanks produced the same fingerprint")
	}
}

func TestBundleVariantsKeepOrder(t *testing.T) {
	gen := phash.NewGenerator(4, logging.NewNop())
	canon := canonicalBlock(t, 11)
	bundle := gen.Bundle(context.Background(), canon)

	transforms := gen.Params().VariantTransforms()
	if len(bundle.Variants) != len(transforms) {
		t.Fatalf("variants = %d, want %d", len(bundle.Variants), len(transforms))
	}
	for i, v := range bundle.Variants {
		if v.Transform != transforms[i] {
			t.Fatalf("variant %d = %s, want %s", i, v.Label(), transforms[i].Label())
		}
	}
	if bundle.Primary != gen.Primary(canon) {
		t.Fatal("bundle primary differs from Primary")
	}

	quarter, err := canonical.CanonicalizeImage(canonical.Rotate(canon, 90))
	if err != nil {
		t.Fatalf("canonicalize rotated: %v", err)
	}
	if got, want := bundle.Variants[3].Fingerprint, gen.Primary(quarter); got != want {
		t.Fatalf("rotate:90 variant = %s, want %s", got, want)
	}
}

func TestVariantsSkipWhenCanceled(t *testing.T) {
	gen := phash.NewGenerator(2, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := gen.Variants(ctx, canonicalBlock(t, 5), gen.Params().VariantTransforms()); len(got) != 0 {
		t.Fatalf("expected no variants under canceled context, got %d", len(got))
	}
}

func TestVariantsOmitFailures(t *testing.T) {
	gen := phash.NewGenerator(2, logging.NewNop())
	got := gen.Variants(context.Background(), canonicalBlock(t, 5), []canonical.Transform{
		canonical.Rotation(90),
		canonical.Scaling(-1),
		canonical.Scaling(1.1),
	})
	if len(got) != 2 {
		t.Fatalf("variants = %d, want 2", len(got))
	}
	if got[0].Label() != "rotate:90" || got[1].Label() != "scale:1.1" {
		t.Fatalf("unexpected variant order %s, %s", got[0].Label(), got[1].Label())
	}
}
