package canonical

import (
	"bytes"
	"image"

	"github.com/rwcarlsen/goexif/exif"
)

// ReadOrientation returns the EXIF orientation tag of data, or 1 when the
// input carries no usable tag.
func ReadOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// ApplyOrientation rotates or mirrors img so that it displays upright for the
// given EXIF orientation value.
func ApplyOrientation(img *image.RGBA, orientation int) *image.RGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	switch orientation {
	case 2:
		return remap(img, w, h, func(x, y int) (int, int) { return w - 1 - x, y })
	case 3:
		return remap(img, w, h, func(x, y int) (int, int) { return w - 1 - x, h - 1 - y })
	case 4:
		return remap(img, w, h, func(x, y int) (int, int) { return x, h - 1 - y })
	case 5:
		return remap(img, h, w, func(x, y int) (int, int) { return y, x })
	case 6:
		return remap(img, h, w, func(x, y int) (int, int) { return y, h - 1 - x })
	case 7:
		return remap(img, h, w, func(x, y int) (int, int) { return w - 1 - y, h - 1 - x })
	case 8:
		return remap(img, h, w, func(x, y int) (int, int) { return w - 1 - y, x })
	default:
		return img
	}
}

// remap builds a dstW x dstH raster where each pixel is copied from the
// source coordinate returned by src.
func remap(img *image.RGBA, dstW, dstH int, src func(x, y int) (int, int)) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	origin := img.Bounds().Min
	for y := 0; y < dstH; y++ {
		for x := 0; x < dstW; x++ {
			sx, sy := src(x, y)
			si := img.PixOffset(origin.X+sx, origin.Y+sy)
			di := out.PixOffset(x, y)
			copy(out.Pix[di:di+4], img.Pix[si:si+4])
		}
	}
	return out
}
