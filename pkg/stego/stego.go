// Package stego writes pattern bitstreams into the least-significant bits
// of a carrier image and reads them back. Bits occupy pixels in row-major
// order, channels R, G, B in that fixed order within each pixel, starting
// at the top-left pixel.
package stego

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/stegokit/qrmark/pkg/bitmap"
	"github.com/stegokit/qrmark/pkg/codec"
	"github.com/yyyoichi/bitstream-go"
)

// ErrCapacityExceeded indicates the bitstream is longer than the carrier's
// total LSB capacity. The carrier is not modified.
var ErrCapacityExceeded = errors.New("bitstream too large for carrier image")

// Capacity returns the total number of LSB positions in a carrier of the
// given dimensions: one bit per channel, three channels per pixel.
func Capacity(width, height int) int {
	return width * height * 3
}

// Embed writes the bitstream into a copy of the carrier and returns it.
// The output has the same dimensions as the input; every channel not
// consumed by the bitstream is bit-identical to the source. Embed is
// all-or-nothing: on ErrCapacityExceeded nothing has been written.
func Embed(carrier image.Image, bits *bitstream.BitReader[uint64]) (*image.NRGBA, error) {
	bounds := carrier.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	total := Capacity(width, height)
	if bits.Bits() > total {
		return nil, fmt.Errorf("%w: need %d bits, carrier holds %d", ErrCapacityExceeded, bits.Bits(), total)
	}

	output := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(output, output.Bounds(), carrier, bounds.Min, draw.Src)

	bitIndex := 0
	n := bits.Bits()

	setLSB := func(val *uint8) {
		if bitIndex >= n {
			return
		}
		bit, _ := bits.ReadBitAt(bitIndex)
		if bit {
			*val |= 1
		} else {
			*val &= 0xFE
		}
		bitIndex++
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if bitIndex >= n {
				return output, nil
			}
			c := output.NRGBAAt(x, y)
			setLSB(&c.R)
			setLSB(&c.G)
			setLSB(&c.B)
			output.SetNRGBA(x, y, c)
		}
	}

	return output, nil
}

// EmbedBitmap frames the pattern with the codec header and embeds the
// resulting bitstream.
func EmbedBitmap(carrier image.Image, bm *bitmap.Bitmap) (*image.NRGBA, error) {
	bits, err := codec.Encode(bm)
	if err != nil {
		return nil, err
	}
	return Embed(carrier, bits)
}

// Extract reads channel LSBs in embed order and applies the two-phase
// decode. It fails with codec.ErrInvalidHeader when the image was never
// embedded (or its header is garbage) and codec.ErrInsufficientData when
// the source is truncated relative to the parsed header. It never
// fabricates a pattern from an unembedded image.
func Extract(stego image.Image) (*bitmap.Bitmap, error) {
	bounds := stego.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	capacity := Capacity(width, height)

	src := newLSBSource(stego)

	// Phase 1: the fixed-width header.
	w := bitstream.NewBitWriter[uint64](0, 0)
	collected := 0
	for collected < codec.HeaderBits {
		bit, ok := src.next()
		if !ok {
			break
		}
		w.WriteBool(bit)
		collected++
	}
	if collected < codec.HeaderBits {
		return nil, fmt.Errorf("%w: carrier holds only %d bits", codec.ErrInsufficientData, collected)
	}

	hr := bitstream.NewBitReader(w.Data(), 0, 0)
	hr.SetBits(collected)
	pw, ph, err := codec.DecodeHeader(hr)
	if err != nil {
		return nil, err
	}

	// Phase 2: read exactly the promised payload. If the header could
	// never fit this carrier the read stops at capacity and Decode
	// reports the header as invalid.
	needed := codec.HeaderBits + pw*ph
	for collected < needed && collected < capacity {
		bit, ok := src.next()
		if !ok {
			break
		}
		w.WriteBool(bit)
		collected++
	}

	r := bitstream.NewBitReader(w.Data(), 0, 0)
	r.SetBits(collected)
	return codec.Decode(r, capacity)
}

// lsbSource yields channel LSBs in the fixed embed order.
type lsbSource struct {
	img           image.Image
	nrgba         *image.NRGBA
	minX, minY    int
	width, height int
	x, y, channel int
}

func newLSBSource(img image.Image) *lsbSource {
	bounds := img.Bounds()
	s := &lsbSource{
		img:    img,
		minX:   bounds.Min.X,
		minY:   bounds.Min.Y,
		width:  bounds.Dx(),
		height: bounds.Dy(),
	}
	// Fast path avoids per-pixel color model conversion.
	if n, ok := img.(*image.NRGBA); ok {
		s.nrgba = n
	}
	return s
}

func (s *lsbSource) next() (bool, bool) {
	if s.y >= s.height {
		return false, false
	}

	var r, g, b uint8
	if s.nrgba != nil {
		c := s.nrgba.NRGBAAt(s.minX+s.x, s.minY+s.y)
		r, g, b = c.R, c.G, c.B
	} else {
		c := color.NRGBAModel.Convert(s.img.At(s.minX+s.x, s.minY+s.y)).(color.NRGBA)
		r, g, b = c.R, c.G, c.B
	}

	var v uint8
	switch s.channel {
	case 0:
		v = r
	case 1:
		v = g
	default:
		v = b
	}

	s.channel++
	if s.channel == 3 {
		s.channel = 0
		s.x++
		if s.x >= s.width {
			s.x = 0
			s.y++
		}
	}

	return v&1 == 1, true
}
