package phash

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"

	"github.com/nfnt/resize"

	"github.com/Goosie/nostr-object-identity/internal/canonical"
	"github.com/Goosie/nostr-object-identity/internal/logging"
)

// Generator computes primary fingerprints and variant bundles.
type Generator struct {
	params  Params
	workers int
	logger  *slog.Logger
}

// NewGenerator returns a generator for the current Version. workers limits
// parallel variant generation; values below 1 run variants sequentially.
func NewGenerator(workers int, logger *slog.Logger) *Generator {
	if workers < 1 {
		workers = 1
	}
	return &Generator{
		params:  DefaultParams(),
		workers: workers,
		logger:  logging.NewComponentLogger(logger, "phash"),
	}
}

// Params returns the generation parameters.
func (g *Generator) Params() Params { return g.params }

// Primary fingerprints a canonical raster. It never fails: rasters without
// luminance structure yield a fallback fingerprint.
func (g *Generator) Primary(img image.Image) Fingerprint {
	grid := luminanceGrid(img)
	var sum int
	for _, v := range grid {
		sum += v
	}
	n := len(grid)

	var b strings.Builder
	b.Grow(HexLength)
	nonZero := false
	for i := 0; i < n; i += 4 {
		var nib byte
		for j := 0; j < 4; j++ {
			nib <<= 1
			// Compare against the exact mean without integer division.
			if grid[i+j]*n > sum {
				nib |= 1
			}
		}
		if nib != 0 {
			nonZero = true
		}
		b.WriteByte("0123456789abcdef"[nib])
	}
	if !nonZero {
		return fallback(img)
	}
	return Fingerprint{Hex: b.String(), Kind: KindPerceptual}
}

// luminanceGrid downsamples img to GridSize x GridSize and returns the 8-bit
// luma of each cell in row-major order.
func luminanceGrid(img image.Image) []int {
	small := resize.Resize(GridSize, GridSize, img, resize.Bilinear)
	bounds := small.Bounds()
	grid := make([]int, 0, GridSize*GridSize)
	for y := 0; y < GridSize; y++ {
		for x := 0; x < GridSize; x++ {
			r, g, b, _ := small.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			grid = append(grid, int((19595*r+38470*g+7471*b+1<<15)>>24))
		}
	}
	return grid
}

type channelStats struct {
	mean, stddev float64
	min, max     uint32
}

// fallback digests raster dimensions, pixel format and per-channel
// statistics. Different uniform colors produce different fingerprints.
func fallback(img image.Image) Fingerprint {
	bounds := img.Bounds()
	stats := [4]channelStats{}
	for c := range stats {
		stats[c].min = math.MaxUint32
	}
	var sums, squares [4]float64
	count := float64(bounds.Dx() * bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			for c, v := range [4]uint32{r >> 8, g >> 8, b >> 8, a >> 8} {
				sums[c] += float64(v)
				squares[c] += float64(v) * float64(v)
				stats[c].min = min(stats[c].min, v)
				stats[c].max = max(stats[c].max, v)
			}
		}
	}

	h := sha256.New()
	fmt.Fprintf(h, "%s|%dx%d|%T", Version, bounds.Dx(), bounds.Dy(), img)
	for c, name := range [4]string{"R", "G", "B", "A"} {
		if count > 0 {
			stats[c].mean = sums[c] / count
			stats[c].stddev = math.Sqrt(math.Max(squares[c]/count-stats[c].mean*stats[c].mean, 0))
		} else {
			stats[c].min = 0
		}
		fmt.Fprintf(h, "|%s:%.4f:%.4f:%d:%d", name, stats[c].mean, stats[c].stddev, stats[c].min, stats[c].max)
	}
	digest := hex.EncodeToString(h.Sum(nil))
	return Fingerprint{Hex: digest[:HexLength], Kind: KindFallback}
}

// Variant is the fingerprint of one transformed copy of a raster.
type Variant struct {
	Transform   canonical.Transform `json:"transform"`
	Fingerprint Fingerprint         `json:"fingerprint"`
}

// Label names the variant's transform.
func (v Variant) Label() string { return v.Transform.Label() }

// Bundle is a primary fingerprint plus its variants.
type Bundle struct {
	Primary  Fingerprint `json:"primary"`
	Variants []Variant   `json:"variants"`
}

// Bundle fingerprints canon and every configured variant of it.
func (g *Generator) Bundle(ctx context.Context, canon image.Image) Bundle {
	return Bundle{
		Primary:  g.Primary(canon),
		Variants: g.Variants(ctx, canon, g.params.VariantTransforms()),
	}
}
