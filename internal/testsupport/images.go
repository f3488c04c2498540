package testsupport

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand/v2"
	"testing"
)

// BlockImage renders a size x size raster of random black and white blocks
// arranged on a 16x16 grid. The same seed always yields the same picture.
func BlockImage(seed uint64, size int) *image.RGBA {
	if size <= 0 {
		size = 512
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	const grid = 16
	cells := make([]bool, grid*grid)
	for i := range cells {
		cells[i] = rng.IntN(2) == 1
	}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		row := (y * grid / size) * grid
		for x := 0; x < size; x++ {
			c := color.RGBA{A: 255}
			if cells[row+x*grid/size] {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// FramedBlockImage centers a content x content BlockImage on a white
// size x size canvas. Rotations up to 45 degrees keep every block in frame
// while content stays below size/sqrt(2).
func FramedBlockImage(seed uint64, content, size int) *image.RGBA {
	img := UniformImage(color.RGBA{R: 255, G: 255, B: 255, A: 255}, size)
	block := BlockImage(seed, content)
	offset := (size - content) / 2
	for y := 0; y < content; y++ {
		for x := 0; x < content; x++ {
			img.SetRGBA(offset+x, offset+y, block.RGBAAt(x, y))
		}
	}
	return img
}

// GradientImage renders a horizontal gradient from black to white with a
// dark square in the upper-left quadrant.
func GradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(x * 255 / max(width-1, 1))
			if x < width/4 && y < height/4 {
				v = 20
			}
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// UniformImage renders a single-color square raster.
func UniformImage(c color.RGBA, size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// EncodePNG returns the PNG encoding of img.
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// EncodeJPEG returns a quality 95 JPEG encoding of img.
func EncodeJPEG(t testing.TB, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// EncodeJPEGWithOrientation encodes img as JPEG and splices in an APP1 EXIF
// segment carrying the given orientation tag.
func EncodeJPEGWithOrientation(t testing.TB, img image.Image, orientation uint16) []byte {
	t.Helper()

	plain := EncodeJPEG(t, img)
	if len(plain) < 2 || plain[0] != 0xFF || plain[1] != 0xD8 {
		t.Fatalf("unexpected jpeg header")
	}

	// Minimal little-endian TIFF body with a single IFD0 entry.
	var tiff bytes.Buffer
	tiff.WriteString("II")
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(42))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(8))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(1))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(0x0112))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(3))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(1))
	_ = binary.Write(&tiff, binary.LittleEndian, orientation)
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(0))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(0))

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	segment := []byte{0xFF, 0xE1}
	segment = binary.BigEndian.AppendUint16(segment, uint16(len(payload)+2))
	segment = append(segment, payload...)

	out := make([]byte, 0, len(plain)+len(segment))
	out = append(out, plain[:2]...)
	out = append(out, segment...)
	out = append(out, plain[2:]...)
	return out
}
