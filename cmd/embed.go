package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stegokit/qrmark/pkg/capacity"
	"github.com/stegokit/qrmark/pkg/pattern"
	"github.com/stegokit/qrmark/pkg/quality"
	"github.com/stegokit/qrmark/pkg/stego"
)

var (
	embedOutput         string
	embedResample       string
	embedSafety         float64
	embedMinReadability float64
	embedNoResize       bool
)

var embedCmd = &cobra.Command{
	Use:   "embed [carrier] [pattern]",
	Short: "Hide a QR pattern inside a carrier image",
	Long: `Embed writes the pattern's modules into the least significant bits of
the carrier's RGB channels and saves the result as PNG. When the pattern
is too large for the carrier it is resized down to the recommended side
first, unless --no-resize forbids that.

Example:
  qrmark embed photo.png qr.png -o photo_marked.png`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		carrierPath, patternPath := args[0], args[1]

		mode, err := pattern.ParseMode(embedResample)
		if err != nil {
			return err
		}

		// 1. Load inputs
		carrier, _, err := loadImage(carrierPath)
		if err != nil {
			return err
		}
		bm, err := loadPattern(patternPath)
		if err != nil {
			return err
		}

		// 2. Fit the pattern to the carrier budget
		capRep, err := capacity.Analyze(carrier, capacity.Options{SafetyFactor: embedSafety})
		if err != nil {
			return err
		}

		if bm.Modules() > capRep.AvailableBits {
			if embedNoResize {
				return fmt.Errorf("%w: pattern needs %d bits, carrier offers %d",
					stego.ErrCapacityExceeded, bm.Modules(), capRep.AvailableBits)
			}
			side := capRep.RecommendedPatternSide
			res, err := pattern.Resize(bm, side, side, mode, embedMinReadability)
			if err != nil {
				return fmt.Errorf("failed to fit pattern: %w", err)
			}
			if res.QualityWarning {
				fmt.Printf("Warning: resized pattern readability %.2f is below the minimum\n", res.Readability)
			}
			fmt.Printf("Resized pattern %dx%d -> %dx%d (readability %.2f)\n",
				bm.Width, bm.Height, side, side, res.Readability)
			bm = res.Bitmap
		}

		// 3. Embed and measure distortion
		marked, err := stego.EmbedBitmap(carrier, bm)
		if err != nil {
			return fmt.Errorf("embedding failed: %w", err)
		}

		qRep, err := quality.Compare(carrier, marked)
		if err != nil {
			return err
		}

		// 4. Write output
		outPath := embedOutput
		if outPath == "" {
			outPath = markedName(carrierPath)
		}
		if err := savePNG(outPath, marked); err != nil {
			return err
		}

		fmt.Printf("Created %s (MSE %.4f, PSNR %.2f dB)\n", outPath, qRep.MSE, qRep.PSNR)
		return nil
	},
}

// markedName derives the default output path: photo.png -> photo_marked.png.
func markedName(carrierPath string) string {
	base := strings.TrimSuffix(carrierPath, ".png")
	base = strings.TrimSuffix(base, ".PNG")
	return base + "_marked.png"
}

func init() {
	rootCmd.AddCommand(embedCmd)

	embedCmd.Flags().StringVarP(&embedOutput, "output", "o", "", "Output PNG path (default: <carrier>_marked.png)")
	embedCmd.Flags().StringVarP(&embedResample, "resample", "r", "nearest", "Resize algorithm: nearest, bilinear, bicubic, area")
	embedCmd.Flags().Float64VarP(&embedSafety, "safety", "s", 0, "Safety factor for the recommended pattern side (0.5-0.8)")
	embedCmd.Flags().Float64Var(&embedMinReadability, "min-readability", 0, "Readability threshold for resize warnings (default 0.9)")
	embedCmd.Flags().BoolVar(&embedNoResize, "no-resize", false, "Fail instead of resizing an oversized pattern")
}
