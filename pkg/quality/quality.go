// Package quality scores the pixel damage an embedding caused.
package quality

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
)

// ErrDimensionMismatch indicates the two images cannot be compared.
var ErrDimensionMismatch = errors.New("images have different dimensions")

// PSNRIdentical is the sentinel PSNR reported when the images are
// bit-identical and the ratio would otherwise divide by zero.
var PSNRIdentical = math.Inf(1)

// Report holds the aggregated distortion metrics for an (original, stego)
// pair, averaged over all pixels and the three color channels.
type Report struct {
	MSE  float64
	PSNR float64

	// Identical is set when no channel differs at all.
	Identical bool
}

// Compare computes MSE and PSNR between an original carrier and its stego
// counterpart. It is a pure function; neither image is modified.
func Compare(original, stego image.Image) (*Report, error) {
	ob, sb := original.Bounds(), stego.Bounds()
	if ob.Dx() != sb.Dx() || ob.Dy() != sb.Dy() {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d",
			ErrDimensionMismatch, ob.Dx(), ob.Dy(), sb.Dx(), sb.Dy())
	}

	width, height := ob.Dx(), ob.Dy()
	var sum float64
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			oc := color.NRGBAModel.Convert(original.At(ob.Min.X+x, ob.Min.Y+y)).(color.NRGBA)
			sc := color.NRGBAModel.Convert(stego.At(sb.Min.X+x, sb.Min.Y+y)).(color.NRGBA)

			dr := float64(oc.R) - float64(sc.R)
			dg := float64(oc.G) - float64(sc.G)
			db := float64(oc.B) - float64(sc.B)
			sum += dr*dr + dg*dg + db*db
		}
	}

	mse := sum / float64(width*height*3)
	rep := &Report{MSE: mse}
	if mse == 0 {
		rep.PSNR = PSNRIdentical
		rep.Identical = true
		return rep, nil
	}
	rep.PSNR = 10 * math.Log10(255*255/mse)
	return rep, nil
}
