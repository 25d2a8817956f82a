package bitmap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// ErrInvalidDimensions indicates a requested bitmap size outside the
// range the wire header can represent.
var ErrInvalidDimensions = errors.New("bitmap dimensions must be in 1..65535")

// MaxSide is the largest width or height a bitmap may have. The embed
// header stores each dimension as a 16-bit field.
const MaxSide = 0xFFFF

// Bitmap is a rectangular grid of binary modules, the raster form of a
// QR symbol. A module value is 1 for a dark module and 0 for a light one.
type Bitmap struct {
	Width  int
	Height int
	bits   []uint8
}

// New creates an all-zero bitmap of the given size.
func New(width, height int) (*Bitmap, error) {
	if width < 1 || height < 1 || width > MaxSide || height > MaxSide {
		return nil, fmt.Errorf("%w: got %dx%d", ErrInvalidDimensions, width, height)
	}
	return &Bitmap{
		Width:  width,
		Height: height,
		bits:   make([]uint8, width*height),
	}, nil
}

// At returns the module at (x, y). Out-of-range coordinates return 0.
func (b *Bitmap) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return 0
	}
	return b.bits[y*b.Width+x]
}

// Set writes the module at (x, y). Any non-zero value is stored as 1.
func (b *Bitmap) Set(x, y int, v uint8) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return
	}
	if v != 0 {
		v = 1
	}
	b.bits[y*b.Width+x] = v
}

// Modules returns the number of modules (Width * Height), which is also
// the payload length in bits once the bitmap is flattened.
func (b *Bitmap) Modules() int {
	return b.Width * b.Height
}

// Equal reports whether two bitmaps have identical dimensions and modules.
func (b *Bitmap) Equal(o *Bitmap) bool {
	if o == nil || b.Width != o.Width || b.Height != o.Height {
		return false
	}
	for i := range b.bits {
		if b.bits[i] != o.bits[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the bitmap.
func (b *Bitmap) Clone() *Bitmap {
	c := &Bitmap{Width: b.Width, Height: b.Height, bits: make([]uint8, len(b.bits))}
	copy(c.bits, b.bits)
	return c
}

// FromImage converts a raster image into a bitmap by thresholding each
// pixel's luma at the midpoint of the value range. Dark pixels become 1,
// matching the convention that a QR module is dark.
func FromImage(img image.Image) (*Bitmap, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	bm, err := New(width, height)
	if err != nil {
		return nil, err
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			if g.Y < 128 {
				bm.Set(x, y, 1)
			}
		}
	}
	return bm, nil
}

// Image renders the bitmap as a grayscale image: dark modules are black,
// light modules white. The result is suitable for a QR symbol reader.
func (b *Bitmap) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			v := uint8(255)
			if b.At(x, y) == 1 {
				v = 0
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}
