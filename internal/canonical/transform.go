package canonical

import (
	"fmt"
	"image"
	"math"
	"strconv"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// TransformKind names a geometric transform family.
type TransformKind string

const (
	TransformRotate TransformKind = "rotate"
	TransformScale  TransformKind = "scale"
)

// Transform describes one geometric edit applied to a canonical raster.
type Transform struct {
	Kind TransformKind `json:"kind"`
	// Angle is the counterclockwise rotation in degrees.
	Angle float64 `json:"angle,omitempty"`
	// Factor is the zoom about the center; values below 1 pad, above 1 crop.
	Factor float64 `json:"factor,omitempty"`
}

// Rotation returns a rotate transform.
func Rotation(degrees float64) Transform {
	return Transform{Kind: TransformRotate, Angle: degrees}
}

// Scaling returns a scale transform.
func Scaling(factor float64) Transform {
	return Transform{Kind: TransformScale, Factor: factor}
}

// Label renders the transform as "rotate:15" or "scale:0.9".
func (t Transform) Label() string {
	switch t.Kind {
	case TransformRotate:
		return "rotate:" + strconv.FormatFloat(t.Angle, 'f', -1, 64)
	case TransformScale:
		return "scale:" + strconv.FormatFloat(t.Factor, 'f', -1, 64)
	default:
		return string(t.Kind)
	}
}

// Apply executes the transform on img.
func Apply(img image.Image, t Transform) (*image.RGBA, error) {
	switch t.Kind {
	case TransformRotate:
		return Rotate(img, t.Angle), nil
	case TransformScale:
		if t.Factor <= 0 || math.IsNaN(t.Factor) || math.IsInf(t.Factor, 0) {
			return nil, fmt.Errorf("invalid scale factor %v", t.Factor)
		}
		return Scale(img, t.Factor), nil
	default:
		return nil, fmt.Errorf("unknown transform %q", t.Kind)
	}
}

// Rotate turns img counterclockwise by degrees about its center, keeping the
// original bounds and filling uncovered area with white. Multiples of 90 on a
// square raster are exact pixel permutations.
func Rotate(img image.Image, degrees float64) *image.RGBA {
	src := toRGBA(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	angle := math.Mod(degrees, 360)
	if angle < 0 {
		angle += 360
	}

	switch {
	case angle == 0:
		return copyRGBA(src)
	case angle == 180:
		return ApplyOrientation(src, 3)
	case w == h && angle == 90:
		return ApplyOrientation(src, 8)
	case w == h && angle == 270:
		return ApplyOrientation(src, 6)
	}

	rad := angle * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	cx, cy := float64(w)/2, float64(h)/2
	// Source to destination in y-down coordinates; positive angles turn the
	// picture counterclockwise on screen.
	s2d := f64.Aff3{
		cos, sin, cx - cos*cx - sin*cy,
		-sin, cos, cy + sin*cx - cos*cy,
	}
	dst := blank(w, h)
	draw.BiLinear.Transform(dst, s2d, src, src.Bounds(), draw.Over, nil)
	return dst
}

// Scale zooms img about its center by factor while keeping the original
// bounds. Factors below 1 leave a white border, factors above 1 crop.
func Scale(img image.Image, factor float64) *image.RGBA {
	src := toRGBA(img)
	if factor == 1 {
		return copyRGBA(src)
	}
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	cx, cy := float64(w)/2, float64(h)/2
	s2d := f64.Aff3{
		factor, 0, cx - factor*cx,
		0, factor, cy - factor*cy,
	}
	dst := blank(w, h)
	draw.BiLinear.Transform(dst, s2d, src, src.Bounds(), draw.Over, nil)
	return dst
}

func copyRGBA(img *image.RGBA) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}
