// Package capacity computes how many bits a carrier image can hold and
// recommends a pattern size that keeps the embedding density low.
package capacity

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/stegokit/qrmark/pkg/codec"
	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientCapacity indicates the carrier cannot hold even the
// 32-bit header of an embedded pattern.
var ErrInsufficientCapacity = errors.New("carrier too small to hold any pattern")

const (
	// DefaultSafetyFactor leaves headroom so embedding density stays low
	// enough to keep visual and scan-quality impact down.
	DefaultSafetyFactor = 0.7

	minSafetyFactor = 0.5
	maxSafetyFactor = 0.8

	// textureBlockSide is the tile size used when sampling local variance
	// for the efficiency score.
	textureBlockSide = 8
)

// Options configures the analysis. The zero value selects the defaults.
type Options struct {
	// SafetyFactor scales the recommended capacity relative to the
	// maximum. Values outside [0.5, 0.8] are clamped; zero means default.
	SafetyFactor float64
}

func (o Options) safetyFactor() float64 {
	sf := o.SafetyFactor
	if sf == 0 {
		sf = DefaultSafetyFactor
	}
	return math.Min(maxSafetyFactor, math.Max(minSafetyFactor, sf))
}

// Report summarizes what a carrier can hold. It is derived on demand and
// never mutated.
type Report struct {
	// AvailableBits is the LSB capacity left for payload after the header:
	// W*H*3 - 32.
	AvailableBits int

	// MaxPatternSide is the largest square pattern side that fits.
	MaxPatternSide int

	// RecommendedPatternSide applies the safety factor on top of the max.
	RecommendedPatternSide int

	// EfficiencyScore rates the carrier from 0 to 100. AnalyzeDimensions
	// scores utilization only; Analyze blends in carrier texture, because
	// LSB perturbation hides better in high-variance regions.
	EfficiencyScore float64
}

// AnalyzeDimensions computes the capacity figures that depend only on the
// carrier dimensions. Three channels carry one bit each per pixel.
func AnalyzeDimensions(width, height int, opts Options) (*Report, error) {
	available := width*height*3 - codec.HeaderBits
	if available <= 0 {
		return nil, fmt.Errorf("%w: %dx%d carrier has %d payload bits",
			ErrInsufficientCapacity, width, height, available)
	}

	sf := opts.safetyFactor()
	maxSide := int(math.Sqrt(float64(available)))
	recSide := int(math.Sqrt(float64(available) * sf))
	if recSide < 1 {
		recSide = 1
	}

	rep := &Report{
		AvailableBits:          available,
		MaxPatternSide:         maxSide,
		RecommendedPatternSide: recSide,
	}
	rep.EfficiencyScore = clampScore(100 * utilization(rep))
	return rep, nil
}

// Analyze computes the full capacity report for a decoded carrier,
// including the texture-aware efficiency score.
func Analyze(img image.Image, opts Options) (*Report, error) {
	bounds := img.Bounds()
	rep, err := AnalyzeDimensions(bounds.Dx(), bounds.Dy(), opts)
	if err != nil {
		return nil, err
	}

	texture := textureScore(img)
	rep.EfficiencyScore = clampScore(100 * (0.7*texture + 0.3*utilization(rep)))
	return rep, nil
}

// utilization is the recommended-vs-max module ratio, in [0, 1].
func utilization(rep *Report) float64 {
	if rep.MaxPatternSide == 0 {
		return 0
	}
	r := float64(rep.RecommendedPatternSide) / float64(rep.MaxPatternSide)
	return r * r
}

// textureScore samples local luma variance over fixed tiles and maps the
// mean standard deviation into [0, 1]. Near-flat carriers score close to
// zero; variance beyond one quarter of the value range saturates at one.
func textureScore(img image.Image) float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	var blockVars []float64
	samples := make([]float64, 0, textureBlockSide*textureBlockSide)

	for by := 0; by < height; by += textureBlockSide {
		for bx := 0; bx < width; bx += textureBlockSide {
			samples = samples[:0]
			for y := by; y < by+textureBlockSide && y < height; y++ {
				for x := bx; x < bx+textureBlockSide && x < width; x++ {
					g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
					samples = append(samples, float64(g.Y))
				}
			}
			if len(samples) < 2 {
				continue
			}
			blockVars = append(blockVars, stat.Variance(samples, nil))
		}
	}
	if len(blockVars) == 0 {
		return 0
	}

	sigma := math.Sqrt(stat.Mean(blockVars, nil))
	return math.Min(sigma/64.0, 1.0)
}

func clampScore(s float64) float64 {
	return math.Min(100, math.Max(0, s))
}
