// Package pdf exposes the image XObjects of a PDF file to the document
// pipeline. It reads classic cross-reference PDFs, decodes FlateDecode
// images (8-bit DeviceRGB/DeviceGray) into lossless PNG bytes, and writes
// replacements back as an incremental update: the original bytes are never
// rewritten, a new revision of each replaced image object is appended
// together with an updated cross-reference section. DCTDecode (JPEG)
// images are listed as-is; their lossy channel cannot carry LSB data and
// the pipeline skips them.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/stegokit/qrmark/pkg/pipeline"
)

// ErrUnsupportedPDF indicates a PDF feature outside this package's scope,
// such as cross-reference streams or exotic color spaces.
var ErrUnsupportedPDF = errors.New("unsupported PDF feature")

// ErrNotPDF indicates the file does not start with a PDF header.
var ErrNotPDF = errors.New("not a PDF file")

// ErrUnknownImage indicates a ReplaceImage id that ListImages never returned.
var ErrUnknownImage = errors.New("unknown image id")

const idPrefix = "obj-"

// Document is an in-memory PDF implementing pipeline.Document.
type Document struct {
	raw     []byte
	images  map[int]*xobject
	trailer *trailerInfo

	// replacements holds staged PNG bytes per object number.
	replacements map[int][]byte
}

var _ pipeline.Document = (*Document)(nil)

// Open reads a .pdf file into memory.
func Open(filePath string) (*Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading pdf: %w", err)
	}
	return New(data)
}

// New parses an in-memory PDF.
func New(data []byte) (*Document, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, ErrNotPDF
	}
	trailer, err := parseTrailer(data)
	if err != nil {
		return nil, err
	}
	return &Document{
		raw:          data,
		images:       scanImageObjects(data),
		trailer:      trailer,
		replacements: make(map[int][]byte),
	}, nil
}

// ListImages returns the document's image XObjects ordered by object
// number. Flate images are delivered as PNG bytes; DCT images as the raw
// JPEG stream.
func (d *Document) ListImages() ([]pipeline.ImageRef, error) {
	nums := make([]int, 0, len(d.images))
	for num := range d.images {
		nums = append(nums, num)
	}
	sort.Ints(nums)

	refs := make([]pipeline.ImageRef, 0, len(nums))
	for _, num := range nums {
		obj := d.images[num]
		id := fmt.Sprintf("%s%d", idPrefix, num)

		if repl, ok := d.replacements[num]; ok {
			refs = append(refs, pipeline.ImageRef{ID: id, Data: repl})
			continue
		}

		switch obj.filter {
		case "FlateDecode":
			samples, err := flateDecode(obj.stream)
			if err != nil {
				return nil, fmt.Errorf("object %d: %w", num, err)
			}
			img, err := samplesToImage(obj, samples)
			if err != nil {
				// Exotic color spaces are left out rather than failing
				// the whole listing.
				continue
			}
			var buf bytes.Buffer
			if err := png.Encode(&buf, img); err != nil {
				return nil, fmt.Errorf("object %d: encoding png: %w", num, err)
			}
			refs = append(refs, pipeline.ImageRef{ID: id, Data: buf.Bytes()})

		case "DCTDecode":
			refs = append(refs, pipeline.ImageRef{ID: id, Data: obj.stream})
		}
	}
	return refs, nil
}

// ReplaceImage stages PNG bytes for an image object. The swap is applied
// by Save as an appended object revision.
func (d *Document) ReplaceImage(id string, data []byte) error {
	num, err := parseID(id)
	if err != nil {
		return err
	}
	if _, ok := d.images[num]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownImage, id)
	}
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("replacement for %s is not a decodable image: %w", id, err)
	}
	d.replacements[num] = data
	return nil
}

// Save writes the document with all staged replacements applied via a
// single incremental update. With no replacements the original bytes are
// written unchanged.
func (d *Document) Save(w io.Writer) error {
	if len(d.replacements) == 0 {
		_, err := w.Write(d.raw)
		return err
	}

	var out bytes.Buffer
	out.Write(d.raw)
	if d.raw[len(d.raw)-1] != '\n' {
		out.WriteByte('\n')
	}

	nums := make([]int, 0, len(d.replacements))
	for num := range d.replacements {
		nums = append(nums, num)
	}
	sort.Ints(nums)

	offsets := make(map[int]int, len(nums))
	for _, num := range nums {
		img, _, err := image.Decode(bytes.NewReader(d.replacements[num]))
		if err != nil {
			return fmt.Errorf("decoding replacement for object %d: %w", num, err)
		}
		stream, err := flateEncode(imageToSamples(img))
		if err != nil {
			return fmt.Errorf("encoding replacement for object %d: %w", num, err)
		}

		bounds := img.Bounds()
		offsets[num] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n", num)
		fmt.Fprintf(&out,
			"<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /FlateDecode /Length %d >>\n",
			bounds.Dx(), bounds.Dy(), len(stream))
		out.WriteString("stream\n")
		out.Write(stream)
		out.WriteString("\nendstream\nendobj\n")
	}

	xrefOffset := out.Len()
	out.WriteString("xref\n")
	for _, num := range nums {
		fmt.Fprintf(&out, "%d 1\n", num)
		fmt.Fprintf(&out, "%010d %05d n \n", offsets[num], 0)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root %s /Prev %d >>\nstartxref\n%d\n%%%%EOF\n",
		d.trailer.size, d.trailer.rootRef, d.trailer.startxref, xrefOffset)

	_, err := w.Write(out.Bytes())
	return err
}

// SaveFile writes the document to a new file.
func (d *Document) SaveFile(filePath string) error {
	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("creating output pdf: %w", err)
	}
	defer f.Close()

	if err := d.Save(f); err != nil {
		return err
	}
	return f.Close()
}

func parseID(id string) (int, error) {
	num, err := strconv.Atoi(strings.TrimPrefix(id, idPrefix))
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownImage, id)
	}
	return num, nil
}
