// Package pattern rescales binary pattern bitmaps to a target size while
// keeping every module strictly two-level, so resampling artifacts never
// leak gray values into an embedded payload.
package pattern

import (
	"errors"
	"fmt"
	"image"

	"github.com/stegokit/qrmark/pkg/bitmap"
	"golang.org/x/image/draw"
)

// ErrTargetTooSmall indicates a degenerate resize target on which the
// pattern cannot remain distinguishable.
var ErrTargetTooSmall = errors.New("resize target too small for pattern")

// ErrUnknownMode indicates a Mode value outside the declared constants.
var ErrUnknownMode = errors.New("unknown resample mode")

// Mode selects the resampling algorithm.
type Mode int

const (
	// Nearest picks the closest source module. Best for QR symbols since
	// it cannot blur module edges.
	Nearest Mode = iota
	// Bilinear interpolates linearly between neighboring modules.
	Bilinear
	// Bicubic uses Catmull-Rom interpolation.
	Bicubic
	// AreaAverage averages each source region covered by a target module.
	AreaAverage
)

func (m Mode) String() string {
	switch m {
	case Nearest:
		return "nearest"
	case Bilinear:
		return "bilinear"
	case Bicubic:
		return "bicubic"
	case AreaAverage:
		return "area"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a CLI flag value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "nearest":
		return Nearest, nil
	case "bilinear":
		return Bilinear, nil
	case "bicubic":
		return Bicubic, nil
	case "area":
		return AreaAverage, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// MinTargetSide is the smallest usable target dimension.
const MinTargetSide = 2

// DefaultMinReadability is the readability score below which Resize sets
// the quality warning flag.
const DefaultMinReadability = 0.9

// Result carries a resized pattern along with an estimate of how reliably
// it would still scan.
type Result struct {
	Bitmap *bitmap.Bitmap

	// Readability is the fraction of source information preserved by the
	// resize, in [0, 1]. It is measured by projecting the result back onto
	// the source grid and counting module flips.
	Readability float64

	// QualityWarning is set when Readability fell below the configured
	// minimum. It is advisory; the result is still usable.
	QualityWarning bool
}

// Resize resamples src to targetWidth x targetHeight using the selected
// mode, then re-binarizes every module at the midpoint threshold.
// minReadability <= 0 selects DefaultMinReadability.
func Resize(src *bitmap.Bitmap, targetWidth, targetHeight int, mode Mode, minReadability float64) (*Result, error) {
	if targetWidth < MinTargetSide || targetHeight < MinTargetSide {
		return nil, fmt.Errorf("%w: %dx%d (minimum side %d)",
			ErrTargetTooSmall, targetWidth, targetHeight, MinTargetSide)
	}
	if targetWidth > bitmap.MaxSide || targetHeight > bitmap.MaxSide {
		return nil, fmt.Errorf("resize target %dx%d exceeds %d", targetWidth, targetHeight, bitmap.MaxSide)
	}
	if minReadability <= 0 {
		minReadability = DefaultMinReadability
	}

	var resized *bitmap.Bitmap
	var err error
	if src.Width == targetWidth && src.Height == targetHeight {
		resized = src.Clone()
	} else if mode == AreaAverage {
		resized, err = areaResize(src, targetWidth, targetHeight)
	} else {
		resized, err = scalerResize(src, targetWidth, targetHeight, mode)
	}
	if err != nil {
		return nil, err
	}

	readability := readabilityScore(src, resized)
	return &Result{
		Bitmap:         resized,
		Readability:    readability,
		QualityWarning: readability < minReadability,
	}, nil
}

// scalerResize renders the pattern to grayscale, scales it with an
// x/image interpolator, and thresholds the result back to modules.
func scalerResize(src *bitmap.Bitmap, w, h int, mode Mode) (*bitmap.Bitmap, error) {
	var scaler draw.Scaler
	switch mode {
	case Nearest:
		scaler = draw.NearestNeighbor
	case Bilinear:
		scaler = draw.ApproxBiLinear
	case Bicubic:
		scaler = draw.CatmullRom
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownMode, mode)
	}

	srcImg := src.Image()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	scaler.Scale(dst, dst.Bounds(), srcImg, srcImg.Bounds(), draw.Src, nil)

	return bitmap.FromImage(dst)
}

// areaResize averages the source region each target module covers and
// thresholds at one half coverage.
func areaResize(src *bitmap.Bitmap, w, h int) (*bitmap.Bitmap, error) {
	dst, err := bitmap.New(w, h)
	if err != nil {
		return nil, err
	}

	for ty := 0; ty < h; ty++ {
		y0 := ty * src.Height / h
		y1 := (ty + 1) * src.Height / h
		if y1 <= y0 {
			y1 = y0 + 1
		}
		for tx := 0; tx < w; tx++ {
			x0 := tx * src.Width / w
			x1 := (tx + 1) * src.Width / w
			if x1 <= x0 {
				x1 = x0 + 1
			}

			dark, total := 0, 0
			for y := y0; y < y1 && y < src.Height; y++ {
				for x := x0; x < x1 && x < src.Width; x++ {
					dark += int(src.At(x, y))
					total++
				}
			}
			if total > 0 && dark*2 >= total {
				dst.Set(tx, ty, 1)
			}
		}
	}
	return dst, nil
}

// readabilityScore projects the resized pattern back onto the source grid
// with nearest-neighbor mapping and returns the fraction of source modules
// preserved.
func readabilityScore(src, resized *bitmap.Bitmap) float64 {
	flips := 0
	for y := 0; y < src.Height; y++ {
		ry := y * resized.Height / src.Height
		for x := 0; x < src.Width; x++ {
			rx := x * resized.Width / src.Width
			if src.At(x, y) != resized.At(rx, ry) {
				flips++
			}
		}
	}
	return 1 - float64(flips)/float64(src.Modules())
}
