package pdf

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildMinimalPDF assembles a single-page classic-xref PDF whose only
// resource is one image XObject.
func buildMinimalPDF(t *testing.T, imageDict string, stream []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, 5)
	writeObj := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}
	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	writeObj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /XObject << /Im0 4 0 R >> >> >>")

	offsets[4] = buf.Len()
	fmt.Fprintf(&buf, "4 0 obj\n%s\nstream\n", imageDict)
	buf.Write(stream)
	buf.WriteString("\nendstream\nendobj\n")

	xref := buf.Len()
	buf.WriteString("xref\n0 5\n0000000000 65535 f \n")
	for num := 1; num <= 4; num++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[num])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size 5 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref)
	return buf.Bytes()
}

func rgbDict(width, height, length int) string {
	return fmt.Sprintf("<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /FlateDecode /Length %d >>",
		width, height, length)
}

func flatePDF(t *testing.T, img *image.NRGBA) []byte {
	t.Helper()

	stream, err := flateEncode(imageToSamples(img))
	require.NoError(t, err)
	bounds := img.Bounds()
	return buildMinimalPDF(t, rgbDict(bounds.Dx(), bounds.Dy(), len(stream)), stream)
}

func gradientImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(10 + x*40),
				G: uint8(20 + y*40),
				B: uint8(30 + (x+y)*20),
				A: 0xFF,
			})
		}
	}
	return img
}

func TestListImagesFlate(t *testing.T) {
	src := gradientImage(2, 2)
	doc, err := New(flatePDF(t, src))
	require.NoError(t, err)

	refs, err := doc.ListImages()
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "obj-4", refs[0].ID)

	got, err := png.Decode(bytes.NewReader(refs[0].Data))
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), got.Bounds())
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			assert.Equal(t, src.At(x, y), color.NRGBAModel.Convert(got.At(x, y)))
		}
	}
}

func TestListImagesDCT(t *testing.T) {
	jpegBytes := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02, 0x03}
	dict := "<< /Type /XObject /Subtype /Image /Width 4 /Height 4 /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode /Length 7 >>"
	doc, err := New(buildMinimalPDF(t, dict, jpegBytes))
	require.NoError(t, err)

	refs, err := doc.ListImages()
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, jpegBytes, refs[0].Data)
}

func TestReplaceImageAndSave(t *testing.T) {
	original := flatePDF(t, gradientImage(2, 2))
	doc, err := New(original)
	require.NoError(t, err)

	replacement := gradientImage(3, 2)
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, replacement))
	require.NoError(t, doc.ReplaceImage("obj-4", pngBuf.Bytes()))

	var saved bytes.Buffer
	require.NoError(t, doc.Save(&saved))

	// Incremental update: the original revision is preserved verbatim.
	assert.True(t, bytes.HasPrefix(saved.Bytes(), original))
	assert.True(t, bytes.HasSuffix(saved.Bytes(), []byte("%%EOF\n")))

	// Reopening must surface the appended revision of object 4.
	reopened, err := New(saved.Bytes())
	require.NoError(t, err)
	refs, err := reopened.ListImages()
	require.NoError(t, err)
	require.Len(t, refs, 1)

	got, err := png.Decode(bytes.NewReader(refs[0].Data))
	require.NoError(t, err)
	require.Equal(t, replacement.Bounds(), got.Bounds())
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			assert.Equal(t, replacement.At(x, y), color.NRGBAModel.Convert(got.At(x, y)))
		}
	}
}

func TestReplaceImageUnknownID(t *testing.T) {
	doc, err := New(flatePDF(t, gradientImage(2, 2)))
	require.NoError(t, err)

	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, gradientImage(2, 2)))

	assert.ErrorIs(t, doc.ReplaceImage("obj-99", pngBuf.Bytes()), ErrUnknownImage)
	assert.ErrorIs(t, doc.ReplaceImage("bogus", pngBuf.Bytes()), ErrUnknownImage)
}

func TestSaveWithoutReplacements(t *testing.T) {
	original := flatePDF(t, gradientImage(2, 2))
	doc, err := New(original)
	require.NoError(t, err)

	var saved bytes.Buffer
	require.NoError(t, doc.Save(&saved))
	assert.Equal(t, original, saved.Bytes())
}

func TestNewRejectsNonPDF(t *testing.T) {
	_, err := New([]byte("PK\x03\x04 definitely a zip"))
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestNewRejectsXrefStreamPDF(t *testing.T) {
	// Cross-reference-stream files carry no "trailer" keyword.
	raw := []byte("%PDF-1.5\n1 0 obj\n<< /Type /XRef >>\nstream\nendstream\nendobj\nstartxref\n9\n%%EOF\n")
	_, err := New(raw)
	assert.ErrorIs(t, err, ErrUnsupportedPDF)
}
