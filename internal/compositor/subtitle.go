package compositor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// SubtitleOptions controls subtitle layout, relative to the frame size.
type SubtitleOptions struct {
	FontPath     string
	FontScale    float64 // font size as a fraction of frame height
	MaxWidth     float64 // wrap width as a fraction of frame width
	BoxOpacity   float64
	BottomMargin float64 // fraction of frame height
}

// SubtitleRenderer draws wrapped captions on a rounded box. It owns a font
// face and is not safe for concurrent use.
type SubtitleRenderer struct {
	face   font.Face
	opts   SubtitleOptions
	width  int
	height int
	pad    int
	radius int
	lineH  int
	ascent int
}

// NewSubtitleRenderer loads the configured font, or Go Regular when none is
// set. A font that cannot be loaded is reported together with a renderer
// using Go Regular, so callers may log and continue.
func NewSubtitleRenderer(width, height int, opts SubtitleOptions) (*SubtitleRenderer, error) {
	size := opts.FontScale * float64(height)
	if size < 8 {
		size = 8
	}

	var loadErr error
	face, err := loadFace(opts.FontPath, size)
	if err != nil {
		loadErr = err
		face, err = loadFace("", size)
		if err != nil {
			return nil, err
		}
	}

	m := face.Metrics()
	r := &SubtitleRenderer{
		face:   face,
		opts:   opts,
		width:  width,
		height: height,
		pad:    int(size * 0.5),
		radius: int(size * 0.4),
		lineH:  int(math.Ceil(float64(m.Height) / 64 * 1.15)),
		ascent: m.Ascent.Ceil(),
	}
	return r, loadErr
}

func loadFace(path string, size float64) (font.Face, error) {
	data := goregular.TTF
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read font file: %w", err)
		}
		data = b
	}

	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	return face, nil
}

// Close releases the font face.
func (r *SubtitleRenderer) Close() error {
	return r.face.Close()
}

// Wrap breaks text into lines no wider than the wrap width. Words wider than
// a whole line are split between runes.
func (r *SubtitleRenderer) Wrap(text string) []string {
	limit := fixed.I(int(r.opts.MaxWidth * float64(r.width)))
	var lines []string
	var line string

	for _, word := range strings.Fields(text) {
		for font.MeasureString(r.face, word) > limit {
			head, tail := r.splitWord(word, limit)
			if line != "" {
				lines = append(lines, line)
				line = ""
			}
			lines = append(lines, head)
			word = tail
		}
		if word == "" {
			continue
		}
		candidate := word
		if line != "" {
			candidate = line + " " + word
		}
		if line != "" && font.MeasureString(r.face, candidate) > limit {
			lines = append(lines, line)
			candidate = word
		}
		line = candidate
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

func (r *SubtitleRenderer) splitWord(word string, limit fixed.Int26_6) (string, string) {
	runes := []rune(word)
	n := 1
	for n < len(runes) && font.MeasureString(r.face, string(runes[:n+1])) <= limit {
		n++
	}
	return string(runes[:n]), string(runes[n:])
}

// Draw renders text centered near the bottom of dst at the given opacity.
func (r *SubtitleRenderer) Draw(dst *image.RGBA, text string, opacity float64) {
	opacity = clamp01(opacity)
	if opacity == 0 {
		return
	}
	lines := r.Wrap(text)
	if len(lines) == 0 {
		return
	}

	textW := 0
	for _, l := range lines {
		if w := font.MeasureString(r.face, l).Ceil(); w > textW {
			textW = w
		}
	}
	textH := len(lines) * r.lineH

	b := dst.Bounds()
	bottom := b.Max.Y - int(r.opts.BottomMargin*float64(r.height))
	box := image.Rect(
		b.Min.X+(b.Dx()-textW)/2-r.pad,
		bottom-textH-2*r.pad,
		b.Min.X+(b.Dx()+textW)/2+r.pad,
		bottom,
	)

	boxAlpha := uint8(clamp01(r.opts.BoxOpacity)*opacity*255 + 0.5)
	draw.DrawMask(dst, box, image.NewUniform(color.RGBA{A: 255}), image.Point{},
		&roundedRect{r: box, radius: r.radius, alpha: boxAlpha}, box.Min, draw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: uint8(opacity*255 + 0.5)}),
		Face: r.face,
	}
	y := box.Min.Y + r.pad + r.ascent
	for _, l := range lines {
		w := font.MeasureString(r.face, l).Ceil()
		d.Dot = fixed.P(b.Min.X+(b.Dx()-w)/2, y)
		d.DrawString(l)
		y += r.lineH
	}
}

// roundedRect is an alpha mask shaped like a rectangle with rounded corners.
type roundedRect struct {
	r      image.Rectangle
	radius int
	alpha  uint8
}

func (m *roundedRect) ColorModel() color.Model { return color.AlphaModel }

func (m *roundedRect) Bounds() image.Rectangle { return m.r }

func (m *roundedRect) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(m.r) {
		return color.Alpha{}
	}
	rad := m.radius
	cx, cy := x, y
	switch {
	case x < m.r.Min.X+rad:
		cx = m.r.Min.X + rad
	case x >= m.r.Max.X-rad:
		cx = m.r.Max.X - rad - 1
	}
	switch {
	case y < m.r.Min.Y+rad:
		cy = m.r.Min.Y + rad
	case y >= m.r.Max.Y-rad:
		cy = m.r.Max.Y - rad - 1
	}
	dx, dy := x-cx, y-cy
	if dx*dx+dy*dy > rad*rad {
		return color.Alpha{}
	}
	return color.Alpha{A: m.alpha}
}

// FadeOpacity is the subtitle opacity at frame f of a segment of n frames
// with a linear fade of fade frames at both ends.
func FadeOpacity(f, n, fade int) float64 {
	if fade <= 0 || n <= 0 {
		return 1
	}
	in := float64(f+1) / float64(fade)
	out := float64(n-f) / float64(fade)
	return clamp01(math.Min(in, out))
}
