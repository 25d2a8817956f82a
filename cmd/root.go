package cmd

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/stegokit/qrmark/pkg/bitmap"
)

var verbose bool

// logger is shared by all subcommands. Diagnostics go to stderr so the
// report tables on stdout stay pipeable.
var logger = zerolog.Nop()

var rootCmd = &cobra.Command{
	Use:   "qrmark",
	Short: "Hide QR patterns inside images and documents",
	Long: `Qrmark embeds a QR-code bitmap into the least significant bits of a
carrier image, recovers it again, and applies the same watermark across
every raster image inside a DOCX or PDF document.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger = zerolog.New(zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: time.RFC3339,
			}).With().Timestamp().Logger()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log per-image progress to stderr")
}

// loadImage decodes any registered raster format from disk.
func loadImage(filePath string) (image.Image, string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image %s: %w", filePath, err)
	}
	return img, format, nil
}

// loadPattern reads a pattern image and binarizes it into a module bitmap.
func loadPattern(filePath string) (*bitmap.Bitmap, error) {
	img, _, err := loadImage(filePath)
	if err != nil {
		return nil, err
	}
	bm, err := bitmap.FromImage(img)
	if err != nil {
		return nil, fmt.Errorf("pattern %s: %w", filePath, err)
	}
	return bm, nil
}

// savePNG writes img losslessly. Stego output must never pass through a
// lossy encoder, so PNG is the only format written.
func savePNG(filePath string, img image.Image) error {
	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", filePath, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", filePath, err)
	}
	return f.Close()
}
