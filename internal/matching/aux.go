package matching

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
)

const (
	colorBinsPerChannel = 4
	colorBins           = colorBinsPerChannel * colorBinsPerChannel * colorBinsPerChannel
	edgeGrid            = 16
	edgeBits            = edgeGrid * edgeGrid
)

// AuxSignatures are secondary descriptors used only for diagnostic
// similarity reporting during verification.
type AuxSignatures struct {
	// ColorHistogram holds normalized 4x4x4 RGB bin weights.
	ColorHistogram []float64
	// EdgeHash is a 256-bit gradient-direction hash.
	EdgeHash []uint64
}

// HasColor reports whether a color histogram is present.
func (a AuxSignatures) HasColor() bool { return len(a.ColorHistogram) == colorBins }

// HasEdge reports whether an edge hash is present.
func (a AuxSignatures) HasEdge() bool { return len(a.EdgeHash) == edgeBits/64 }

// ComputeAux derives the auxiliary signatures of a canonical raster.
func ComputeAux(img image.Image) (AuxSignatures, error) {
	edge, err := goimagehash.ExtDifferenceHash(img, edgeGrid, edgeGrid)
	if err != nil {
		return AuxSignatures{}, fmt.Errorf("edge hash: %w", err)
	}
	return AuxSignatures{
		ColorHistogram: colorHistogram(img),
		EdgeHash:       edge.GetHash(),
	}, nil
}

func colorHistogram(img image.Image) []float64 {
	hist := make([]float64, colorBins)
	b := img.Bounds()
	total := float64(b.Dx() * b.Dy())
	if total == 0 {
		return hist
	}
	const shift = 16 - 2 // 16-bit channel to 2-bit bin index
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			idx := (r>>shift)*colorBinsPerChannel*colorBinsPerChannel + (g>>shift)*colorBinsPerChannel + bl>>shift
			hist[idx]++
		}
	}
	for i := range hist {
		hist[i] /= total
	}
	return hist
}

// ColorSimilarity is the histogram intersection of a and b, in [0,1].
func ColorSimilarity(a, b []float64) (float64, error) {
	if len(a) != colorBins || len(b) != colorBins {
		return 0, fmt.Errorf("color histogram: want %d bins, got %d and %d", colorBins, len(a), len(b))
	}
	var sum float64
	for i := range a {
		sum += min(a[i], b[i])
	}
	return sum, nil
}

// EdgeSimilarity is 1 - distance/256 between two edge hashes.
func EdgeSimilarity(a, b []uint64) (float64, error) {
	left := goimagehash.NewExtImageHash(a, goimagehash.DHash, edgeBits)
	right := goimagehash.NewExtImageHash(b, goimagehash.DHash, edgeBits)
	d, err := left.Distance(right)
	if err != nil {
		return 0, fmt.Errorf("edge hash: %w", err)
	}
	return 1 - float64(d)/edgeBits, nil
}

// EncodeEdgeHash renders an edge hash as hex for storage.
func EncodeEdgeHash(words []uint64) string {
	buf := make([]byte, 0, len(words)*8)
	for _, w := range words {
		buf = binary.BigEndian.AppendUint64(buf, w)
	}
	return hex.EncodeToString(buf)
}

// DecodeEdgeHash parses EncodeEdgeHash output. Empty text yields nil.
func DecodeEdgeHash(text string) ([]uint64, error) {
	if text == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("decode edge hash: %w", err)
	}
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("decode edge hash: %d bytes is not a whole number of words", len(raw))
	}
	words := make([]uint64, len(raw)/8)
	for i := range words {
		words[i] = binary.BigEndian.Uint64(raw[i*8:])
	}
	return words, nil
}
