package compositor

import (
	"image"
	"image/draw"
	"math"
	"sync"

	xdraw "golang.org/x/image/draw"
)

// ImageCache holds the decoded scene images, normalized to *image.RGBA and
// pre-scaled to the largest size the camera will ever need.
type ImageCache struct {
	width, height int
	maxScale      float64

	mu     sync.RWMutex
	images map[int]*image.RGBA
}

// NewImageCache creates a cache for a width×height frame and a camera that
// zooms up to maxScale.
func NewImageCache(width, height int, maxScale float64) *ImageCache {
	if maxScale < 1 {
		maxScale = 1
	}
	return &ImageCache{
		width:    width,
		height:   height,
		maxScale: maxScale,
		images:   make(map[int]*image.RGBA),
	}
}

// Put stores the image of scene index. Safe for concurrent use.
func (c *ImageCache) Put(index int, img image.Image) {
	if img == nil || img.Bounds().Empty() {
		return
	}
	prepared := c.prepare(img)

	c.mu.Lock()
	c.images[index] = prepared
	c.mu.Unlock()
}

// Get returns the image of scene index, or nil when it is missing.
func (c *ImageCache) Get(index int) image.Image {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if img, ok := c.images[index]; ok {
		return img
	}
	return nil
}

// Len is the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Clear drops every image.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	clear(c.images)
	c.mu.Unlock()
}

func (c *ImageCache) prepare(img image.Image) *image.RGBA {
	b := img.Bounds()
	sw, sh := float64(b.Dx()), float64(b.Dy())
	need := coverScale(sw, sh, float64(c.width), float64(c.height)) * c.maxScale

	if need < 1 {
		w := ceil(sw * need)
		h := ceil(sh * need)
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		return dst
	}

	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// ceil ignores float noise just above an integer.
func ceil(v float64) int {
	return int(math.Ceil(v - 1e-9))
}

// coverScale is the smallest uniform scale at which a sw×sh image covers a
// w×h frame.
func coverScale(sw, sh, w, h float64) float64 {
	return math.Max(w/sw, h/sh)
}
