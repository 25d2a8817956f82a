package tests

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stegokit/qrmark/cmd"
	"github.com/stegokit/qrmark/pkg/bitmap"
)

// writeCarrierPNG writes a noisy RGB carrier, the kind of textured photo
// LSB changes hide well in.
func writeCarrierPNG(t *testing.T, path string, side int) {
	t.Helper()

	rng := rand.New(rand.NewSource(42))
	img := image.NewNRGBA(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 0xFF,
			})
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// writePatternPNG writes a checkerboard QR stand-in and returns its
// module bitmap.
func writePatternPNG(t *testing.T, path string, side int) *bitmap.Bitmap {
	t.Helper()

	bm, err := bitmap.New(side, side)
	require.NoError(t, err)
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			if (x/3+y/3)%2 == 0 {
				bm.Set(x, y, 1)
			}
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, bm.Image()))
	return bm
}

func loadRecoveredBitmap(t *testing.T, path string) *bitmap.Bitmap {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	bm, err := bitmap.FromImage(img)
	require.NoError(t, err)
	return bm
}

// TestImageRoundTrip simulates the full user journey on a single image:
// embed -> extract -> compare.
func TestImageRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	carrierPath := filepath.Join(tmpDir, "carrier.png")
	patternPath := filepath.Join(tmpDir, "qr.png")
	markedPath := filepath.Join(tmpDir, "carrier_marked.png")
	recoveredPath := filepath.Join(tmpDir, "recovered.png")

	writeCarrierPNG(t, carrierPath, 64)
	want := writePatternPNG(t, patternPath, 25)

	root := cmd.GetRootCmd()

	// 1. Embed
	root.SetArgs([]string{"embed", carrierPath, patternPath, "-o", markedPath})
	require.NoError(t, root.Execute(), "embed command failed")
	require.FileExists(t, markedPath)

	// 2. Extract
	root.SetArgs([]string{"extract", markedPath, "-o", recoveredPath})
	require.NoError(t, root.Execute(), "extract command failed")

	// 3. The recovered pattern must match module for module
	got := loadRecoveredBitmap(t, recoveredPath)
	assert.True(t, want.Equal(got), "recovered pattern differs from the embedded one")
}

// TestOversizedPatternIsResized checks the auto-fit path: a pattern too
// large for the carrier still round-trips, at the recommended size.
func TestOversizedPatternIsResized(t *testing.T) {
	tmpDir := t.TempDir()
	carrierPath := filepath.Join(tmpDir, "small.png")
	patternPath := filepath.Join(tmpDir, "big_qr.png")
	markedPath := filepath.Join(tmpDir, "small_marked.png")
	recoveredPath := filepath.Join(tmpDir, "recovered.png")

	writeCarrierPNG(t, carrierPath, 40)
	writePatternPNG(t, patternPath, 120)

	root := cmd.GetRootCmd()

	root.SetArgs([]string{"embed", carrierPath, patternPath, "-o", markedPath})
	require.NoError(t, root.Execute())

	root.SetArgs([]string{"extract", markedPath, "-o", recoveredPath})
	require.NoError(t, root.Execute())

	got := loadRecoveredBitmap(t, recoveredPath)
	assert.Less(t, got.Width, 120, "pattern should have been resized down")
	assert.Equal(t, got.Width, got.Height, "auto-fit produces square patterns")
}

// buildDocx assembles the minimal OOXML package the document pipeline
// needs: a content-types part, a document body and one media image.
func buildDocx(t *testing.T, path, imagePath string) {
	t.Helper()

	imageData, err := os.ReadFile(imagePath)
	require.NoError(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entries := map[string][]byte{
		"[Content_Types].xml":   []byte(`<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`),
		"word/document.xml":     []byte(`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"/>`),
		"word/media/image1.png": imageData,
	}
	for name, data := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

// TestDocumentRoundTrip runs the full document journey: build a DOCX,
// watermark it through the CLI, then recover the pattern from the copy.
func TestDocumentRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	carrierPath := filepath.Join(tmpDir, "photo.png")
	patternPath := filepath.Join(tmpDir, "qr.png")
	docPath := filepath.Join(tmpDir, "report.docx")
	markedPath := filepath.Join(tmpDir, "report_marked.docx")
	outDir := filepath.Join(tmpDir, "recovered")

	writeCarrierPNG(t, carrierPath, 64)
	want := writePatternPNG(t, patternPath, 25)
	buildDocx(t, docPath, carrierPath)

	root := cmd.GetRootCmd()

	root.SetArgs([]string{"document", "embed", docPath, patternPath, "-o", markedPath})
	require.NoError(t, root.Execute(), "document embed failed")
	require.FileExists(t, markedPath)

	root.SetArgs([]string{"document", "extract", markedPath, "-d", outDir})
	require.NoError(t, root.Execute(), "document extract failed")

	got := loadRecoveredBitmap(t, filepath.Join(outDir, "word_media_image1.png"))
	assert.True(t, want.Equal(got), "recovered pattern differs from the embedded one")
}
