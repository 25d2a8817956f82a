package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stegokit/qrmark/pkg/document/docx"
	"github.com/stegokit/qrmark/pkg/document/pdf"
	"github.com/stegokit/qrmark/pkg/pattern"
	"github.com/stegokit/qrmark/pkg/pipeline"
)

var (
	docOutput         string
	docDestDir        string
	docResample       string
	docSafety         float64
	docMinReadability float64
	docWorkers        int
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Watermark or scan every image inside a DOCX or PDF",
}

var documentEmbedCmd = &cobra.Command{
	Use:   "embed [document] [pattern]",
	Short: "Embed a QR pattern into every eligible image of a document",
	Long: `Embed opens a .docx or .pdf document, hides the pattern in every
losslessly stored raster image, and writes the rebuilt document. Images in
lossy formats are skipped and listed in the report; a document-wide
failure occurs only when the document holds no images at all.

Example:
  qrmark document embed report.docx qr.png -o report_marked.docx`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		docPath, patternPath := args[0], args[1]

		mode, err := pattern.ParseMode(docResample)
		if err != nil {
			return err
		}
		bm, err := loadPattern(patternPath)
		if err != nil {
			return err
		}
		doc, err := openDocument(docPath)
		if err != nil {
			return err
		}

		cfg := pipeline.Config{
			Resample:       mode,
			SafetyFactor:   docSafety,
			MinReadability: docMinReadability,
			Workers:        docWorkers,
			Logger:         &logger,
		}
		reports, err := pipeline.Embed(cmd.Context(), doc, bm, cfg)
		if err != nil {
			return fmt.Errorf("document embedding failed: %w", err)
		}

		outPath := docOutput
		if outPath == "" {
			ext := filepath.Ext(docPath)
			outPath = strings.TrimSuffix(docPath, ext) + "_marked" + ext
		}
		if err := doc.SaveFile(outPath); err != nil {
			return err
		}

		printEmbedReport(reports)
		fmt.Printf("Created %s\n", outPath)
		return nil
	},
}

var documentExtractCmd = &cobra.Command{
	Use:   "extract [document]",
	Short: "Recover hidden QR patterns from a document's images",
	Long: `Extract opens a watermarked .docx or .pdf and attempts recovery from
every raster image, writing one PNG per successfully decoded pattern.

Example:
  qrmark document extract report_marked.docx -d recovered/`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := openDocument(args[0])
		if err != nil {
			return err
		}

		cfg := pipeline.Config{Workers: docWorkers, Logger: &logger}
		extractions, err := pipeline.Extract(cmd.Context(), doc, cfg)
		if err != nil {
			return fmt.Errorf("document extraction failed: %w", err)
		}
		if len(extractions) == 0 {
			fmt.Println("No hidden patterns found.")
			return nil
		}

		if docDestDir != "" {
			if err := os.MkdirAll(docDestDir, 0755); err != nil {
				return fmt.Errorf("failed to create destination directory: %w", err)
			}
		}

		for _, ex := range extractions {
			name := strings.ReplaceAll(strings.TrimSuffix(ex.ID, ".png"), "/", "_") + ".png"
			outPath := filepath.Join(docDestDir, name)
			if err := savePNG(outPath, ex.Pattern.Image()); err != nil {
				return err
			}
			fmt.Printf("Recovered %dx%d pattern from %s -> %s\n",
				ex.Pattern.Width, ex.Pattern.Height, ex.ID, outPath)
		}
		return nil
	},
}

// savableDocument is what the CLI needs beyond the pipeline contract.
type savableDocument interface {
	pipeline.Document
	SaveFile(filePath string) error
}

func openDocument(filePath string) (savableDocument, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".docx":
		return docx.Open(filePath)
	case ".pdf":
		return pdf.Open(filePath)
	default:
		return nil, fmt.Errorf("unsupported document type %q (want .docx or .pdf)", filepath.Ext(filePath))
	}
}

func printEmbedReport(reports []pipeline.ImageReport) {
	wtr := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(wtr, "Image\tStatus\tReadability\tPSNR (dB)")
	fmt.Fprintln(wtr, "-----\t------\t-----------\t---------")

	for _, rep := range reports {
		if !rep.Watermarked {
			fmt.Fprintf(wtr, "%s\tskipped: %s\t-\t-\n", rep.ID, rep.Reason)
			continue
		}
		psnr := "-"
		if rep.Quality != nil {
			psnr = fmt.Sprintf("%.2f", rep.Quality.PSNR)
		}
		status := "watermarked"
		if rep.QualityWarning {
			status = "watermarked (low readability)"
		}
		fmt.Fprintf(wtr, "%s\t%s\t%.2f\t%s\n", rep.ID, status, rep.Readability, psnr)
	}
	wtr.Flush()

	if agg := pipeline.AggregateQuality(reports); agg != nil {
		fmt.Printf("Overall: MSE %.4f, PSNR %.2f dB\n", agg.MSE, agg.PSNR)
	}
}

func init() {
	rootCmd.AddCommand(documentCmd)
	documentCmd.AddCommand(documentEmbedCmd)
	documentCmd.AddCommand(documentExtractCmd)

	documentEmbedCmd.Flags().StringVarP(&docOutput, "output", "o", "", "Output document path (default: <document>_marked.<ext>)")
	documentEmbedCmd.Flags().StringVarP(&docResample, "resample", "r", "nearest", "Resize algorithm: nearest, bilinear, bicubic, area")
	documentEmbedCmd.Flags().Float64VarP(&docSafety, "safety", "s", 0, "Safety factor for the recommended pattern side (0.5-0.8)")
	documentEmbedCmd.Flags().Float64Var(&docMinReadability, "min-readability", 0, "Readability threshold for resize warnings (default 0.9)")
	documentEmbedCmd.Flags().IntVarP(&docWorkers, "workers", "w", 0, "Per-image worker count (default: GOMAXPROCS)")

	documentExtractCmd.Flags().StringVarP(&docDestDir, "destination", "d", "", "Directory to write recovered patterns")
	documentExtractCmd.Flags().IntVarP(&docWorkers, "workers", "w", 0, "Per-image worker count (default: GOMAXPROCS)")
}
