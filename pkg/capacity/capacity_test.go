package capacity

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math/rand"
	"testing"
)

func TestAnalyzeDimensionsKnownCarrier(t *testing.T) {
	// 50x50 RGB carrier: 50*50*3 - 32 = 7468 payload bits.
	rep, err := AnalyzeDimensions(50, 50, Options{})
	if err != nil {
		t.Fatalf("AnalyzeDimensions failed: %v", err)
	}

	if rep.AvailableBits != 7468 {
		t.Errorf("AvailableBits = %d, want 7468", rep.AvailableBits)
	}
	if rep.MaxPatternSide != 86 { // floor(sqrt(7468))
		t.Errorf("MaxPatternSide = %d, want 86", rep.MaxPatternSide)
	}
	if rep.RecommendedPatternSide != 72 { // floor(sqrt(7468*0.7))
		t.Errorf("RecommendedPatternSide = %d, want 72", rep.RecommendedPatternSide)
	}
}

func TestAnalyzeDimensionsPurity(t *testing.T) {
	a, err := AnalyzeDimensions(640, 480, Options{})
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	b, err := AnalyzeDimensions(640, 480, Options{})
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if *a != *b {
		t.Errorf("repeated analysis of identical dimensions differs: %+v vs %+v", a, b)
	}
}

func TestAvailableBitsMonotonic(t *testing.T) {
	prev := -1
	for _, side := range []int{4, 8, 16, 50, 128, 512} {
		rep, err := AnalyzeDimensions(side, side, Options{})
		if err != nil {
			t.Fatalf("AnalyzeDimensions(%d) failed: %v", side, err)
		}
		if rep.AvailableBits <= prev {
			t.Fatalf("AvailableBits not increasing at side %d: %d <= %d", side, rep.AvailableBits, prev)
		}
		prev = rep.AvailableBits
	}
}

func TestInsufficientCapacity(t *testing.T) {
	// 3x3 carrier: 27 bits total, less than the 32-bit header.
	_, err := AnalyzeDimensions(3, 3, Options{})
	if !errors.Is(err, ErrInsufficientCapacity) {
		t.Fatalf("expected ErrInsufficientCapacity, got %v", err)
	}
}

func TestSafetyFactorClamping(t *testing.T) {
	low, _ := AnalyzeDimensions(100, 100, Options{SafetyFactor: 0.1})
	floor, _ := AnalyzeDimensions(100, 100, Options{SafetyFactor: 0.5})
	if low.RecommendedPatternSide != floor.RecommendedPatternSide {
		t.Errorf("safety factor below 0.5 should clamp to 0.5")
	}

	high, _ := AnalyzeDimensions(100, 100, Options{SafetyFactor: 0.99})
	ceil, _ := AnalyzeDimensions(100, 100, Options{SafetyFactor: 0.8})
	if high.RecommendedPatternSide != ceil.RecommendedPatternSide {
		t.Errorf("safety factor above 0.8 should clamp to 0.8")
	}
}

func TestEfficiencyPenalizesFlatCarrier(t *testing.T) {
	flat := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	draw.Draw(flat, flat.Bounds(), &image.Uniform{color.NRGBA{R: 120, G: 120, B: 120, A: 255}}, image.Point{}, draw.Src)

	noisy := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	rng := rand.New(rand.NewSource(42))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			noisy.SetNRGBA(x, y, color.NRGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}

	flatRep, err := Analyze(flat, Options{})
	if err != nil {
		t.Fatalf("Analyze(flat) failed: %v", err)
	}
	noisyRep, err := Analyze(noisy, Options{})
	if err != nil {
		t.Fatalf("Analyze(noisy) failed: %v", err)
	}

	if noisyRep.EfficiencyScore <= flatRep.EfficiencyScore {
		t.Errorf("noisy carrier should outscore flat carrier: noisy=%.2f flat=%.2f",
			noisyRep.EfficiencyScore, flatRep.EfficiencyScore)
	}
	if flatRep.EfficiencyScore < 0 || flatRep.EfficiencyScore > 100 {
		t.Errorf("score out of range: %.2f", flatRep.EfficiencyScore)
	}
}
