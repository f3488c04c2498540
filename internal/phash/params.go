package phash

import "github.com/Goosie/nostr-object-identity/internal/canonical"

// Version identifies the fingerprint geometry. Stored fingerprints are only
// comparable with fingerprints produced under the same version.
const Version = "ahash16-v1"

const (
	// GridSize is the edge of the downsampled luminance grid.
	GridSize = 16
	// Bits is the number of bits in a primary fingerprint.
	Bits = GridSize * GridSize
	// HexLength is the length of a fingerprint in hex digits.
	HexLength = Bits / 4
)

// Params groups the versioned constants that define fingerprint generation.
type Params struct {
	Version       string    `json:"version"`
	BoxSize       int       `json:"box_size"`
	Quality       int       `json:"jpeg_quality"`
	GridSize      int       `json:"grid_size"`
	VariantAngles []float64 `json:"variant_angles"`
	VariantScales []float64 `json:"variant_scales"`
}

// DefaultParams returns the parameters of the current Version.
func DefaultParams() Params {
	return Params{
		Version:       Version,
		BoxSize:       canonical.BoxSize,
		Quality:       canonical.Quality,
		GridSize:      GridSize,
		VariantAngles: []float64{15, 30, 45, 90, 135, 180, 225, 270, 315, 345},
		VariantScales: []float64{0.9, 1.1},
	}
}

// VariantTransforms returns the rotation transforms followed by the scale
// transforms, in the order variants appear in a Bundle.
func (p Params) VariantTransforms() []canonical.Transform {
	out := make([]canonical.Transform, 0, len(p.VariantAngles)+len(p.VariantScales))
	for _, angle := range p.VariantAngles {
		out = append(out, canonical.Rotation(angle))
	}
	for _, factor := range p.VariantScales {
		out = append(out, canonical.Scaling(factor))
	}
	return out
}
