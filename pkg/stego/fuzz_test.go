package stego_test

import (
	"image"
	"testing"

	"github.com/stegokit/qrmark/pkg/stego"
)

// FuzzExtract feeds arbitrary pixel data into the extractor. Garbage input
// is expected to fail; the only requirement is that it fails gracefully
// with an error instead of panicking or returning a nonsense success.
func FuzzExtract(f *testing.F) {
	// Seeds: empty, flat, and an alternating-LSB buffer.
	f.Add([]byte{})
	f.Add(make([]byte, 16*16*4))
	alt := make([]byte, 8*8*4)
	for i := range alt {
		alt[i] = byte(i) | 1
	}
	f.Add(alt)

	f.Fuzz(func(t *testing.T, data []byte) {
		pixels := len(data) / 4
		if pixels == 0 {
			return
		}
		side := 1
		for (side+1)*(side+1) <= pixels {
			side++
		}

		img := image.NewNRGBA(image.Rect(0, 0, side, side))
		copy(img.Pix, data)

		bm, err := stego.Extract(img)
		if err != nil {
			return
		}
		// A successful decode must describe a payload that actually fits.
		if bm.Modules()+32 > stego.Capacity(side, side) {
			t.Fatalf("decoded %dx%d pattern cannot fit a %dx%d carrier",
				bm.Width, bm.Height, side, side)
		}
	})
}
