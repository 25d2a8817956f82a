// Package codec defines the bit-level framing written into and read from
// carrier pixel channels: a fixed 32-bit header (pattern width and height
// as big-endian 16-bit fields) followed by the pattern modules flattened
// row-major, one bit per module.
//
// Decoding is two-phase and length-prefixed: the header alone determines
// the payload length, so no terminator sequence is needed and payload
// content can never be mistaken for an end marker.
package codec

import (
	"errors"
	"fmt"

	"github.com/stegokit/qrmark/pkg/bitmap"
	"github.com/yyyoichi/bitstream-go"
)

// HeaderBits is the fixed framing overhead in bits.
const HeaderBits = 32

// ErrInvalidHeader indicates the parsed header cannot describe a payload:
// a zero dimension, or a payload that could never fit the carrier it was
// read from. This is the expected failure when decoding an image that was
// never embedded.
var ErrInvalidHeader = errors.New("invalid bitstream header")

// ErrInsufficientData indicates the bit source ran out before the payload
// length promised by the header was read.
var ErrInsufficientData = errors.New("bit source truncated before payload end")

// Encode frames a pattern bitmap into a bit sequence: be16(width) ++
// be16(height) ++ modules in row-major order.
func Encode(bm *bitmap.Bitmap) (*bitstream.BitReader[uint64], error) {
	if bm.Width < 1 || bm.Height < 1 || bm.Width > bitmap.MaxSide || bm.Height > bitmap.MaxSide {
		return nil, fmt.Errorf("%w: pattern %dx%d not encodable", ErrInvalidHeader, bm.Width, bm.Height)
	}

	w := bitstream.NewBitWriter[uint64](0, 0)
	writeUint16(w, uint16(bm.Width))
	writeUint16(w, uint16(bm.Height))

	for y := 0; y < bm.Height; y++ {
		for x := 0; x < bm.Width; x++ {
			w.WriteBool(bm.At(x, y) == 1)
		}
	}

	r := bitstream.NewBitReader(w.Data(), 0, 0)
	r.SetBits(w.Bits())
	return r, nil
}

// DecodeHeader reads the first 32 bits of the source and returns the
// pattern dimensions. It performs no capacity validation; use Decode for
// the full two-phase read.
func DecodeHeader(r *bitstream.BitReader[uint64]) (width, height int, err error) {
	if r.Bits() < HeaderBits {
		return 0, 0, fmt.Errorf("%w: only %d bits available for 32-bit header", ErrInsufficientData, r.Bits())
	}
	wv, err := readUint16(r, 0)
	if err != nil {
		return 0, 0, err
	}
	hv, err := readUint16(r, 16)
	if err != nil {
		return 0, 0, err
	}
	return int(wv), int(hv), nil
}

// Decode performs the two-phase read against a bit source extracted from
// a carrier with the given theoretical bit capacity:
//
//  1. Parse the 32-bit header into width and height.
//  2. Reject headers that are zero-sized or whose payload plus header
//     exceeds the carrier capacity (ErrInvalidHeader).
//  3. Read exactly width*height payload bits and reshape them row-major.
func Decode(r *bitstream.BitReader[uint64], carrierBits int) (*bitmap.Bitmap, error) {
	width, height, err := DecodeHeader(r)
	if err != nil {
		return nil, err
	}

	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: zero dimension %dx%d", ErrInvalidHeader, width, height)
	}
	needed := width*height + HeaderBits
	if needed > carrierBits {
		return nil, fmt.Errorf("%w: %dx%d payload needs %d bits, carrier holds %d",
			ErrInvalidHeader, width, height, needed, carrierBits)
	}
	if r.Bits() < needed {
		return nil, fmt.Errorf("%w: header promised %d bits, source has %d",
			ErrInsufficientData, needed, r.Bits())
	}

	bm, err := bitmap.New(width, height)
	if err != nil {
		return nil, err
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			bit, err := r.ReadBitAt(HeaderBits + y*width + x)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInsufficientData, err)
			}
			if bit {
				bm.Set(x, y, 1)
			}
		}
	}
	return bm, nil
}

func writeUint16(w *bitstream.BitWriter[uint64], v uint16) {
	for i := 15; i >= 0; i-- {
		w.WriteBool((v>>i)&1 == 1)
	}
}

func readUint16(r *bitstream.BitReader[uint64], at int) (uint16, error) {
	var v uint16
	for i := 0; i < 16; i++ {
		bit, err := r.ReadBitAt(at + i)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInsufficientData, err)
		}
		v <<= 1
		if bit {
			v |= 1
		}
	}
	return v, nil
}
