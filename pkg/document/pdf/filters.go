package pdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	"io"
)

// flateDecode inflates a FlateDecode stream into raw samples.
func flateDecode(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening flate stream: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflating stream: %w", err)
	}
	return out, nil
}

// flateEncode deflates raw samples into a FlateDecode stream.
func flateEncode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("deflating stream: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing flate stream: %w", err)
	}
	return buf.Bytes(), nil
}

// samplesToImage converts decoded PDF image samples into an NRGBA image.
// Only 8-bit DeviceRGB and DeviceGray are supported, which is what this
// package itself writes back.
func samplesToImage(obj *xobject, samples []byte) (*image.NRGBA, error) {
	var components int
	switch obj.colorSpace {
	case "DeviceRGB":
		components = 3
	case "DeviceGray":
		components = 1
	default:
		return nil, fmt.Errorf("%w: color space %q", ErrUnsupportedPDF, obj.colorSpace)
	}
	if obj.bpc != 8 {
		return nil, fmt.Errorf("%w: %d bits per component", ErrUnsupportedPDF, obj.bpc)
	}
	if want := obj.width * obj.height * components; len(samples) < want {
		return nil, fmt.Errorf("image stream truncated: have %d samples, want %d", len(samples), want)
	}

	img := image.NewNRGBA(image.Rect(0, 0, obj.width, obj.height))
	for y := 0; y < obj.height; y++ {
		for x := 0; x < obj.width; x++ {
			i := (y*obj.width + x) * components
			o := img.PixOffset(x, y)
			if components == 3 {
				img.Pix[o+0] = samples[i+0]
				img.Pix[o+1] = samples[i+1]
				img.Pix[o+2] = samples[i+2]
			} else {
				img.Pix[o+0] = samples[i]
				img.Pix[o+1] = samples[i]
				img.Pix[o+2] = samples[i]
			}
			img.Pix[o+3] = 0xFF
		}
	}
	return img, nil
}

// imageToSamples flattens an image into 8-bit DeviceRGB samples, the
// representation replacements are written back in.
func imageToSamples(img image.Image) []byte {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	samples := make([]byte, 0, width*height*3)
	if n, ok := img.(*image.NRGBA); ok {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				o := n.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
				samples = append(samples, n.Pix[o], n.Pix[o+1], n.Pix[o+2])
			}
		}
		return samples
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			samples = append(samples, uint8(r>>8), uint8(g>>8), uint8(b>>8))
		}
	}
	return samples
}
