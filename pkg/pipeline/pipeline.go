// Package pipeline applies the per-image embed/extract transform across
// every raster image inside a structured document. Document structure is
// never touched; the pipeline only swaps raster byte payloads through the
// Document capability interface.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stegokit/qrmark/pkg/bitmap"
	"github.com/stegokit/qrmark/pkg/capacity"
	"github.com/stegokit/qrmark/pkg/codec"
	"github.com/stegokit/qrmark/pkg/pattern"
	"github.com/stegokit/qrmark/pkg/quality"
	"github.com/stegokit/qrmark/pkg/stego"

	_ "image/jpeg" // decode JPEG-stored document images

	_ "golang.org/x/image/bmp" // decode BMP-stored document images
)

// ErrNoImages indicates the document holds no raster images at all. This
// is fatal at the document level, unlike per-image failures.
var ErrNoImages = errors.New("document contains no images")

// ImageRef is one raster image inside a document, keyed by an id the
// owning Document implementation understands.
type ImageRef struct {
	ID   string
	Data []byte
}

// Document is the capability a document handler must expose for the
// pipeline to run against it. One implementation exists per document type
// (DOCX, PDF); the pipeline is agnostic to which.
type Document interface {
	// ListImages returns the document's raster images in document order.
	ListImages() ([]ImageRef, error)

	// ReplaceImage swaps the raster bytes behind id, leaving every other
	// part of the document untouched.
	ReplaceImage(id string, data []byte) error
}

// Config carries the per-call settings. The zero value selects defaults.
type Config struct {
	// Resample selects the pattern resize algorithm.
	Resample pattern.Mode

	// SafetyFactor is forwarded to the capacity analyzer.
	SafetyFactor float64

	// MinReadability is the resize warning threshold.
	MinReadability float64

	// Workers bounds the per-image worker pool. Zero means GOMAXPROCS.
	Workers int

	// Logger receives one event per processed image. Nil disables logging.
	Logger *zerolog.Logger
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (c Config) logger() zerolog.Logger {
	if c.Logger != nil {
		return *c.Logger
	}
	return zerolog.Nop()
}

// ImageReport records the outcome for a single document image.
type ImageReport struct {
	ID          string
	Watermarked bool

	// Reason explains why the image was left unmodified.
	Reason string

	// Quality compares the original and watermarked image. Only set when
	// Watermarked is true.
	Quality *quality.Report

	// Readability is the resize quality score of the pattern that was
	// embedded into this image.
	Readability float64

	// QualityWarning mirrors the resizer's advisory flag.
	QualityWarning bool
}

// Extraction is one successfully recovered pattern. A document may carry
// the same pattern redundantly across images; callers reconcile
// multiple readings themselves.
type Extraction struct {
	ID      string
	Pattern *bitmap.Bitmap
}

// Embed runs list -> per-image process -> reassemble. The same source
// pattern is embedded into every image, resized per image to fit its
// carrier. Per-image failures are downgraded to report entries; only an
// empty image list, a listing failure, or context cancellation surface as
// errors. On cancellation the images already processed have been
// reassembled, so the document holds a valid partial result.
func Embed(ctx context.Context, doc Document, src *bitmap.Bitmap, cfg Config) ([]ImageReport, error) {
	logger := cfg.logger()

	refs, err := doc.ListImages()
	if err != nil {
		return nil, fmt.Errorf("listing document images: %w", err)
	}
	if len(refs) == 0 {
		return nil, ErrNoImages
	}

	reports := make([]ImageReport, len(refs))
	replacements := make([][]byte, len(refs))

	// Per-image work is independent; only the shared source pattern is
	// read concurrently, and it is never mutated.
	grp, gctx := newGroup(ctx, cfg.workers())
	for i, ref := range refs {
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reports[i], replacements[i] = processImage(ref, src, cfg)
			return nil
		})
	}
	waitErr := grp.Wait()

	// Reassemble sequentially: document mutation is single-threaded.
	for i, data := range replacements {
		if data != nil {
			if err := doc.ReplaceImage(refs[i].ID, data); err != nil {
				reports[i].Watermarked = false
				reports[i].Reason = fmt.Sprintf("replacing image: %v", err)
				reports[i].Quality = nil
			}
		}
		logger.Info().
			Str("image", refs[i].ID).
			Bool("watermarked", reports[i].Watermarked).
			Str("reason", reports[i].Reason).
			Msg("processed document image")
	}

	if waitErr != nil {
		return reports, waitErr
	}
	return reports, nil
}

// processImage runs the full per-image chain: decode, capacity analysis,
// pattern resize, embed, quality comparison, PNG re-encode. Failure
// returns a report carrying the reason and a nil replacement.
func processImage(ref ImageRef, src *bitmap.Bitmap, cfg Config) (ImageReport, []byte) {
	rep := ImageReport{ID: ref.ID}
	skip := func(format string, args ...any) (ImageReport, []byte) {
		rep.Reason = fmt.Sprintf(format, args...)
		return rep, nil
	}

	img, format, err := image.Decode(bytes.NewReader(ref.Data))
	if err != nil {
		return skip("undecodable image: %v", err)
	}
	// LSBs only survive a pixel-exact channel.
	if format != "png" {
		return skip("carrier stored in lossy or unsupported format %q", format)
	}

	capRep, err := capacity.Analyze(img, capacity.Options{SafetyFactor: cfg.SafetyFactor})
	if err != nil {
		return skip("capacity analysis: %v", err)
	}

	target, res, err := fitPattern(src, capRep, cfg)
	if err != nil {
		return skip("sizing pattern: %v", err)
	}
	if res != nil {
		rep.Readability = res.Readability
		rep.QualityWarning = res.QualityWarning
	} else {
		rep.Readability = 1
	}

	stegoImg, err := stego.EmbedBitmap(img, target)
	if err != nil {
		return skip("embedding: %v", err)
	}

	qrep, err := quality.Compare(img, stegoImg)
	if err != nil {
		return skip("quality comparison: %v", err)
	}
	rep.Quality = qrep

	var buf bytes.Buffer
	if err := png.Encode(&buf, stegoImg); err != nil {
		return skip("encoding stego image: %v", err)
	}

	rep.Watermarked = true
	return rep, buf.Bytes()
}

// fitPattern returns the pattern to embed into a carrier with the given
// capacity report. A source that already fits is used unchanged; larger
// sources are resized down to the recommended square side.
func fitPattern(src *bitmap.Bitmap, capRep *capacity.Report, cfg Config) (*bitmap.Bitmap, *pattern.Result, error) {
	// Rectangular patterns are fine as long as the module count fits.
	if src.Modules() <= capRep.AvailableBits {
		return src, nil, nil
	}

	side := capRep.RecommendedPatternSide
	res, err := pattern.Resize(src, side, side, cfg.Resample, cfg.MinReadability)
	if err != nil {
		return nil, nil, err
	}
	return res.Bitmap, res, nil
}

// Extract runs the reverse direction: every document image is decoded and
// scanned for an embedded pattern; unreadable images are skipped. The
// result keeps document order.
func Extract(ctx context.Context, doc Document, cfg Config) ([]Extraction, error) {
	logger := cfg.logger()

	refs, err := doc.ListImages()
	if err != nil {
		return nil, fmt.Errorf("listing document images: %w", err)
	}
	if len(refs) == 0 {
		return nil, ErrNoImages
	}

	found := make([]*bitmap.Bitmap, len(refs))

	grp, gctx := newGroup(ctx, cfg.workers())
	for i, ref := range refs {
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, _, err := image.Decode(bytes.NewReader(ref.Data))
			if err != nil {
				logger.Debug().Str("image", ref.ID).Err(err).Msg("skipping undecodable image")
				return nil
			}
			bm, err := stego.Extract(img)
			if err != nil {
				if !errors.Is(err, codec.ErrInvalidHeader) && !errors.Is(err, codec.ErrInsufficientData) {
					logger.Debug().Str("image", ref.ID).Err(err).Msg("extraction failed")
				}
				return nil
			}
			found[i] = bm
			return nil
		})
	}
	waitErr := grp.Wait()

	var out []Extraction
	for i, bm := range found {
		if bm != nil {
			out = append(out, Extraction{ID: refs[i].ID, Pattern: bm})
		}
	}
	return out, waitErr
}

// newGroup builds the bounded worker pool the per-image loops run on.
func newGroup(ctx context.Context, workers int) (*errgroup.Group, context.Context) {
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(workers)
	return grp, gctx
}

// AggregateQuality averages the per-image metrics of the watermarked
// subset, mirroring the document-level MSE/PSNR summary callers expect.
// It returns nil when nothing was watermarked.
func AggregateQuality(reports []ImageReport) *quality.Report {
	var sumMSE, sumPSNR float64
	finite, n := 0, 0
	for _, r := range reports {
		if !r.Watermarked || r.Quality == nil {
			continue
		}
		n++
		sumMSE += r.Quality.MSE
		if !r.Quality.Identical {
			sumPSNR += r.Quality.PSNR
			finite++
		}
	}
	if n == 0 {
		return nil
	}

	agg := &quality.Report{MSE: sumMSE / float64(n)}
	if finite == 0 {
		agg.PSNR = quality.PSNRIdentical
		agg.Identical = true
	} else {
		agg.PSNR = sumPSNR / float64(finite)
	}
	return agg
}
