package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stegokit/qrmark/pkg/stego"
)

var extractOutput string

var extractCmd = &cobra.Command{
	Use:   "extract [image]",
	Short: "Recover a hidden QR pattern from a stego image",
	Long: `Extract reads the LSB channel of a watermarked image, decodes the
embedded dimension header and rebuilds the pattern as a black-and-white
PNG.

Example:
  qrmark extract photo_marked.png -o recovered.png`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, _, err := loadImage(args[0])
		if err != nil {
			return err
		}

		bm, err := stego.Extract(img)
		if err != nil {
			return fmt.Errorf("extraction failed: %w", err)
		}

		outPath := extractOutput
		if outPath == "" {
			outPath = "pattern.png"
		}
		if err := savePNG(outPath, bm.Image()); err != nil {
			return err
		}

		fmt.Printf("Recovered %dx%d pattern -> %s\n", bm.Width, bm.Height, outPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "Output PNG path (default: pattern.png)")
}
