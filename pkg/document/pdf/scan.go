package pdf

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
)

// xobject is one indirect object carrying an image XObject stream.
type xobject struct {
	num    int
	dict   []byte // raw dictionary bytes between "obj" and "stream"
	stream []byte // raw stream bytes, filters still applied

	width, height, bpc int
	colorSpace         string // "DeviceRGB", "DeviceGray" or raw name
	filter             string // "FlateDecode", "DCTDecode" or raw name
}

var (
	objStartRe = regexp.MustCompile(`(?s)(\d+)\s+(\d+)\s+obj\b`)
	nameIntRe  = map[string]*regexp.Regexp{
		"Width":            regexp.MustCompile(`/Width\s+(\d+)`),
		"Height":           regexp.MustCompile(`/Height\s+(\d+)`),
		"BitsPerComponent": regexp.MustCompile(`/BitsPerComponent\s+(\d+)`),
	}
	nameRe = map[string]*regexp.Regexp{
		"ColorSpace": regexp.MustCompile(`/ColorSpace\s*/(\w+)`),
		"Filter":     regexp.MustCompile(`/Filter\s*/(\w+)`),
	}
	rootRe      = regexp.MustCompile(`/Root\s+(\d+)\s+(\d+)\s+R`)
	sizeRe      = regexp.MustCompile(`/Size\s+(\d+)`)
	startxrefRe = regexp.MustCompile(`startxref\s+(\d+)`)
)

// scanImageObjects walks the raw file for "N G obj ... endobj" regions
// whose dictionary declares /Subtype /Image. When a PDF has been updated
// incrementally the same object number appears more than once; the last
// occurrence wins, matching reader behavior.
func scanImageObjects(raw []byte) map[int]*xobject {
	images := make(map[int]*xobject)

	for _, loc := range objStartRe.FindAllSubmatchIndex(raw, -1) {
		num, err := strconv.Atoi(string(raw[loc[2]:loc[3]]))
		if err != nil {
			continue
		}

		bodyStart := loc[1]
		end := bytes.Index(raw[bodyStart:], []byte("endobj"))
		if end < 0 {
			continue
		}
		body := raw[bodyStart : bodyStart+end]

		obj := parseImageObject(num, body)
		if obj != nil {
			images[num] = obj
		}
	}
	return images
}

// parseImageObject splits an object body into dictionary and stream and
// keeps it only if it is an image XObject.
func parseImageObject(num int, body []byte) *xobject {
	streamKw := bytes.Index(body, []byte("stream"))
	if streamKw < 0 {
		return nil
	}
	dict := body[:streamKw]
	if !bytes.Contains(dict, []byte("/Subtype")) || !bytes.Contains(dict, []byte("/Image")) {
		return nil
	}

	// The stream keyword is followed by CRLF or LF; data runs to the
	// final "endstream", minus one trailing EOL.
	dataStart := streamKw + len("stream")
	if dataStart < len(body) && body[dataStart] == '\r' {
		dataStart++
	}
	if dataStart < len(body) && body[dataStart] == '\n' {
		dataStart++
	}
	dataEnd := bytes.LastIndex(body, []byte("endstream"))
	if dataEnd < dataStart {
		return nil
	}
	stream := body[dataStart:dataEnd]
	if n := len(stream); n > 0 && stream[n-1] == '\n' {
		stream = stream[:n-1]
		if n := len(stream); n > 0 && stream[n-1] == '\r' {
			stream = stream[:n-1]
		}
	}

	obj := &xobject{num: num, dict: dict, stream: stream, bpc: 8}
	if m := nameIntRe["Width"].FindSubmatch(dict); m != nil {
		obj.width, _ = strconv.Atoi(string(m[1]))
	}
	if m := nameIntRe["Height"].FindSubmatch(dict); m != nil {
		obj.height, _ = strconv.Atoi(string(m[1]))
	}
	if m := nameIntRe["BitsPerComponent"].FindSubmatch(dict); m != nil {
		obj.bpc, _ = strconv.Atoi(string(m[1]))
	}
	if m := nameRe["ColorSpace"].FindSubmatch(dict); m != nil {
		obj.colorSpace = string(m[1])
	}
	if m := nameRe["Filter"].FindSubmatch(dict); m != nil {
		obj.filter = string(m[1])
	}

	if obj.width <= 0 || obj.height <= 0 {
		return nil
	}
	return obj
}

// trailerInfo holds what an incremental update needs from the previous
// revision.
type trailerInfo struct {
	size      int    // /Size of the previous trailer
	rootRef   string // "N G R"
	startxref int    // byte offset of the previous xref section
}

// parseTrailer extracts /Size, /Root and the startxref offset from the
// file tail. Classic cross-reference tables only; PDFs that use
// cross-reference streams have no trailer keyword and are rejected.
func parseTrailer(raw []byte) (*trailerInfo, error) {
	trailerPos := bytes.LastIndex(raw, []byte("trailer"))
	if trailerPos < 0 {
		return nil, fmt.Errorf("%w: no classic trailer found (cross-reference streams are not supported)", ErrUnsupportedPDF)
	}
	tail := raw[trailerPos:]

	info := &trailerInfo{}
	if m := sizeRe.FindSubmatch(tail); m != nil {
		info.size, _ = strconv.Atoi(string(m[1]))
	}
	if m := rootRe.FindSubmatch(tail); m != nil {
		info.rootRef = fmt.Sprintf("%s %s R", m[1], m[2])
	}
	if info.size == 0 || info.rootRef == "" {
		return nil, fmt.Errorf("%w: trailer is missing /Size or /Root", ErrUnsupportedPDF)
	}

	// The startxref nearest to EOF points at the current xref section.
	offsets := startxrefRe.FindAllSubmatch(raw, -1)
	if len(offsets) == 0 {
		return nil, fmt.Errorf("%w: missing startxref", ErrUnsupportedPDF)
	}
	info.startxref, _ = strconv.Atoi(string(offsets[len(offsets)-1][1]))
	return info, nil
}
