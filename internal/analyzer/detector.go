// Package analyzer finds regions of interest in scene images.
package analyzer

import (
	"fmt"
	"image"
)

// Block is a detected region of interest.
type Block struct {
	Rect       image.Rectangle
	Confidence float64 // 0.0-1.0
}

// Detector is an image analysis strategy.
type Detector interface {
	Detect(img image.Image) ([]Block, error)
}

// NewDetector creates a detector by variant name.
func NewDetector(variant string) (Detector, error) {
	switch variant {
	case "contrast", "":
		return NewContrastDetector(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown detector variant: %s", variant)
	}
}

// Focus returns the center of the largest detected block in normalized
// coordinates, where (0,0) is the image center and ±0.5 the edges.
func Focus(d Detector, img image.Image) (x, y float64, ok bool) {
	if d == nil || img == nil {
		return 0, 0, false
	}
	blocks, err := d.Detect(img)
	if err != nil || len(blocks) == 0 {
		return 0, 0, false
	}

	best := blocks[0]
	for _, b := range blocks[1:] {
		if area(b.Rect) > area(best.Rect) {
			best = b
		}
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return 0, 0, false
	}
	cx := float64(best.Rect.Min.X+best.Rect.Max.X)/2 - float64(bounds.Min.X)
	cy := float64(best.Rect.Min.Y+best.Rect.Max.Y)/2 - float64(bounds.Min.Y)
	return cx/float64(bounds.Dx()) - 0.5, cy/float64(bounds.Dy()) - 0.5, true
}

func area(r image.Rectangle) int { return r.Dx() * r.Dy() }
