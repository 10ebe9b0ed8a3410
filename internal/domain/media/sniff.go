package media

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const svgMimeType = "image/svg+xml"

// detectMimeType sniffs the payload. Text and XML results get a second look
// for an <svg> root, since leading comments hide it from the signature check.
func detectMimeType(data []byte) string {
	detected := normalizeMimeType(mimetype.Detect(data).String())
	switch detected {
	case "text/plain", "text/xml", "application/xml":
		if hasSVGRoot(data) {
			return svgMimeType
		}
	}
	return detected
}

// hasSVGRoot reports whether the first element of data is <svg>. Prolog,
// comments, doctype and processing instructions before it are skipped.
func hasSVGRoot(data []byte) bool {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	for {
		tok, err := dec.RawToken()
		if err != nil {
			return false
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return strings.EqualFold(t.Name.Local, "svg")
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return false
			}
		}
	}
}
