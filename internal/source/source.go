// Package source loads scene images from image files and PDF pages.
package source

import (
	"fmt"
	"image"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultDPI is the resolution used to rasterize PDF pages.
const DefaultDPI = 150

// Loader resolves image references. A reference is either a path to an image
// file or "deck.pdf#N" for page N (1-based) of a PDF document.
type Loader struct {
	DPI int
}

// NewLoader creates a Loader rasterizing PDF pages at dpi.
func NewLoader(dpi int) *Loader {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Loader{DPI: dpi}
}

// Load decodes the image behind ref. It is safe for concurrent use.
func (l *Loader) Load(ref string) (image.Image, error) {
	path, page, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	if IsPDF(path) {
		pdf, err := OpenPDF(path)
		if err != nil {
			return nil, err
		}
		defer pdf.Close()
		return pdf.RenderPage(page, l.DPI)
	}
	return decodeFile(path)
}

// ParseRef splits a reference into a path and a 0-based page index.
func ParseRef(ref string) (path string, page int, err error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", 0, fmt.Errorf("empty image reference")
	}
	i := strings.LastIndex(ref, "#")
	if i < 0 {
		return ref, 0, nil
	}
	n, err := strconv.Atoi(ref[i+1:])
	if err != nil || n < 1 {
		return "", 0, fmt.Errorf("invalid page in image reference %q", ref)
	}
	return ref[:i], n - 1, nil
}

// IsPDF reports whether path names a PDF document.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
