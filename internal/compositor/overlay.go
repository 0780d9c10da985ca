package compositor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/skip2/go-qrcode"
)

// Overlay is a watermark drawn on top of every frame.
type Overlay struct {
	Image    image.Image
	Position string
	Opacity  float64
	Margin   int
}

// NewQROverlay encodes url as a QR code of size pixels.
func NewQROverlay(url string, size int, position string, opacity float64) (*Overlay, error) {
	if size <= 0 {
		size = 128
	}
	q, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode qr overlay: %w", err)
	}
	return &Overlay{
		Image:    q.Image(size),
		Position: position,
		Opacity:  clamp01(opacity),
		Margin:   size / 8,
	}, nil
}

// Rect is where the overlay lands inside frame.
func (o *Overlay) Rect(frame image.Rectangle) image.Rectangle {
	size := o.Image.Bounds().Size()
	var p image.Point
	switch o.Position {
	case "top-left":
		p = image.Pt(frame.Min.X+o.Margin, frame.Min.Y+o.Margin)
	case "bottom-left":
		p = image.Pt(frame.Min.X+o.Margin, frame.Max.Y-o.Margin-size.Y)
	case "bottom-right":
		p = image.Pt(frame.Max.X-o.Margin-size.X, frame.Max.Y-o.Margin-size.Y)
	default: // top-right
		p = image.Pt(frame.Max.X-o.Margin-size.X, frame.Min.Y+o.Margin)
	}
	return image.Rectangle{Min: p, Max: p.Add(size)}
}

// Draw blends the overlay onto dst.
func (o *Overlay) Draw(dst *image.RGBA) {
	if o == nil || o.Image == nil || o.Opacity <= 0 {
		return
	}
	r := o.Rect(dst.Bounds())
	mask := image.NewUniform(color.Alpha{A: uint8(o.Opacity*255 + 0.5)})
	draw.DrawMask(dst, r, o.Image, o.Image.Bounds().Min, mask, image.Point{}, draw.Over)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
