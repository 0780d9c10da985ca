package source

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// PDF is an open document whose pages become scene images.
type PDF struct {
	doc  *fitz.Document
	path string
}

// OpenPDF opens the document at path.
func OpenPDF(path string) (*PDF, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	return &PDF{doc: doc, path: path}, nil
}

// PageCount is the number of pages.
func (p *PDF) PageCount() int {
	return p.doc.NumPage()
}

// PageSize returns the page bounds in points.
func (p *PDF) PageSize(index int) (width, height float64, err error) {
	rect, err := p.doc.Bound(index)
	if err != nil {
		return 0, 0, err
	}
	return float64(rect.Dx()), float64(rect.Dy()), nil
}

// RenderPage rasterizes one page. go-fitz documents are not safe for
// concurrent use, so each call renders from its own handle.
func (p *PDF) RenderPage(index int, dpi int) (image.Image, error) {
	if index < 0 || index >= p.PageCount() {
		return nil, fmt.Errorf("pdf %s has no page %d", p.path, index+1)
	}
	doc, err := fitz.New(p.path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", p.path, err)
	}
	defer doc.Close()

	img, err := doc.ImageDPI(index, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("render page %d of %s: %w", index+1, p.path, err)
	}
	return img, nil
}

// Refs returns one reference per page, in order.
func (p *PDF) Refs() []string {
	refs := make([]string, p.PageCount())
	for i := range refs {
		refs[i] = fmt.Sprintf("%s#%d", p.path, i+1)
	}
	return refs
}

// Close releases the document.
func (p *PDF) Close() error {
	return p.doc.Close()
}
