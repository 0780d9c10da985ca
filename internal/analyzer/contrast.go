package analyzer

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// ContrastDetector finds regions with dense edges using a Sobel operator on a
// downscaled grayscale copy of the image.
type ContrastDetector struct {
	// MinBlockArea is the minimum block area as a fraction of the image.
	MinBlockArea  float64
	EdgeThreshold float64
	// AnalysisWidth is the width the image is reduced to before analysis.
	AnalysisWidth int
}

// NewContrastDetector returns a detector with moderate sensitivity.
func NewContrastDetector() *ContrastDetector {
	return &ContrastDetector{
		MinBlockArea:  0.01,
		EdgeThreshold: 60,
		AnalysisWidth: 256,
	}
}

// Detect returns edge-dense blocks in the coordinate space of img.
func (d *ContrastDetector) Detect(img image.Image) ([]Block, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, nil
	}

	gray, scale := d.downscale(img)
	w, h := gray.Rect.Dx(), gray.Rect.Dy()

	edges := sobel(gray, d.EdgeThreshold)
	edges = dilate(edges, w, h, 2)

	minArea := int(d.MinBlockArea * float64(w*h))
	var blocks []Block
	for _, r := range components(edges, w, h) {
		if r.Dx()*r.Dy() < minArea {
			continue
		}
		blocks = append(blocks, Block{
			Rect: image.Rect(
				bounds.Min.X+int(float64(r.Min.X)*scale),
				bounds.Min.Y+int(float64(r.Min.Y)*scale),
				bounds.Min.X+int(math.Ceil(float64(r.Max.X)*scale)),
				bounds.Min.Y+int(math.Ceil(float64(r.Max.Y)*scale)),
			),
			Confidence: 0.7,
		})
	}
	return blocks, nil
}

// downscale returns a grayscale copy no wider than AnalysisWidth and the
// factor mapping its coordinates back to the source.
func (d *ContrastDetector) downscale(img image.Image) (*image.Gray, float64) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	scale := 1.0
	if d.AnalysisWidth > 0 && w > d.AnalysisWidth {
		scale = float64(w) / float64(d.AnalysisWidth)
		w = d.AnalysisWidth
		h = int(math.Max(1, math.Round(float64(h)/scale)))
	}
	gray := image.NewGray(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(gray, gray.Rect, img, b, draw.Src, nil)
	return gray, scale
}

// sobel marks pixels whose gradient magnitude exceeds threshold.
func sobel(g *image.Gray, threshold float64) []bool {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := make([]bool, w*h)
	px := func(x, y int) float64 { return float64(g.Pix[y*g.Stride+x]) }

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -px(x-1, y-1) + px(x+1, y-1) - 2*px(x-1, y) + 2*px(x+1, y) - px(x-1, y+1) + px(x+1, y+1)
			gy := -px(x-1, y-1) - 2*px(x, y-1) - px(x+1, y-1) + px(x-1, y+1) + 2*px(x, y+1) + px(x+1, y+1)
			out[y*w+x] = math.Hypot(gx, gy) > threshold
		}
	}
	return out
}

// dilate grows marked pixels by radius so nearby edges join into one region.
func dilate(mask []bool, w, h, radius int) []bool {
	out := make([]bool, len(mask))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !mask[y*w+x] {
				continue
			}
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					nx, ny := x+dx, y+dy
					if nx >= 0 && nx < w && ny >= 0 && ny < h {
						out[ny*w+nx] = true
					}
				}
			}
		}
	}
	return out
}

// components returns the bounding boxes of 4-connected marked regions.
func components(mask []bool, w, h int) []image.Rectangle {
	visited := make([]bool, len(mask))
	var rects []image.Rectangle
	var stack []int

	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}
		minX, minY := start%w, start/w
		maxX, maxY := minX, minY

		visited[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)

			for _, n := range [4]int{i - 1, i + 1, i - w, i + w} {
				if n < 0 || n >= len(mask) || visited[n] || !mask[n] {
					continue
				}
				// no wrap-around between rows
				if (n == i-1 || n == i+1) && n/w != y {
					continue
				}
				visited[n] = true
				stack = append(stack, n)
			}
		}
		rects = append(rects, image.Rect(minX, minY, maxX+1, maxY+1))
	}
	return rects
}
