// Package docx exposes the raster images inside a Word (OOXML) package to
// the document pipeline. A .docx file is a zip archive; images live as
// parts under word/media/. Replacement swaps part bytes only — XML,
// relationships and layout are copied through untouched.
package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/stegokit/qrmark/pkg/pipeline"
)

// ErrNotDocx indicates the archive is missing the OOXML content-type part.
var ErrNotDocx = errors.New("not a DOCX package: missing [Content_Types].xml")

// ErrUnknownImage indicates a ReplaceImage id that ListImages never returned.
var ErrUnknownImage = errors.New("unknown image id")

const mediaPrefix = "word/media/"

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".gif":  true,
}

// Document is an in-memory DOCX package implementing pipeline.Document.
type Document struct {
	reader       *zip.Reader
	imageNames   []string
	replacements map[string][]byte
}

var _ pipeline.Document = (*Document)(nil)

// Open reads a .docx file into memory.
func Open(filePath string) (*Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading docx: %w", err)
	}
	return New(data)
}

// New parses an in-memory DOCX package.
func New(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening docx archive: %w", err)
	}

	doc := &Document{
		reader:       zr,
		replacements: make(map[string][]byte),
	}

	hasContentTypes := false
	for _, f := range zr.File {
		if f.Name == "[Content_Types].xml" {
			hasContentTypes = true
		}
		if strings.HasPrefix(f.Name, mediaPrefix) && imageExtensions[strings.ToLower(path.Ext(f.Name))] {
			doc.imageNames = append(doc.imageNames, f.Name)
		}
	}
	if !hasContentTypes {
		return nil, ErrNotDocx
	}

	return doc, nil
}

// ListImages returns the media parts in archive order. The id is the full
// part name, e.g. "word/media/image1.png".
func (d *Document) ListImages() ([]pipeline.ImageRef, error) {
	refs := make([]pipeline.ImageRef, 0, len(d.imageNames))
	for _, name := range d.imageNames {
		data, err := d.readEntry(name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		refs = append(refs, pipeline.ImageRef{ID: name, Data: data})
	}
	return refs, nil
}

// ReplaceImage stages new bytes for a media part. The change becomes
// visible in ListImages output written by Save.
func (d *Document) ReplaceImage(id string, data []byte) error {
	for _, name := range d.imageNames {
		if name == id {
			d.replacements[id] = data
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownImage, id)
}

// Save writes the package with all staged replacements applied. Every
// entry other than the replaced parts is copied through bit-for-bit.
func (d *Document) Save(w io.Writer) error {
	zw := zip.NewWriter(w)

	for _, f := range d.reader.File {
		hdr := f.FileHeader
		out, err := zw.CreateHeader(&hdr)
		if err != nil {
			return fmt.Errorf("writing entry %s: %w", f.Name, err)
		}

		if repl, ok := d.replacements[f.Name]; ok {
			if _, err := out.Write(repl); err != nil {
				return fmt.Errorf("writing replacement %s: %w", f.Name, err)
			}
			continue
		}

		src, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening entry %s: %w", f.Name, err)
		}
		_, err = io.Copy(out, src)
		src.Close()
		if err != nil {
			return fmt.Errorf("copying entry %s: %w", f.Name, err)
		}
	}

	return zw.Close()
}

// SaveFile writes the package to a new file.
func (d *Document) SaveFile(filePath string) error {
	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("creating output docx: %w", err)
	}
	defer f.Close()

	if err := d.Save(f); err != nil {
		return err
	}
	return f.Close()
}

func (d *Document) readEntry(name string) ([]byte, error) {
	if repl, ok := d.replacements[name]; ok {
		return repl, nil
	}
	for _, f := range d.reader.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownImage, name)
}
