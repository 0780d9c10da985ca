// Package compositor draws timeline frames onto an off-screen RGBA surface.
package compositor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/ivlev/scenecast/internal/motion"
	"github.com/ivlev/scenecast/internal/system"
	"github.com/ivlev/scenecast/internal/timeline"
)

// Options configures a Compositor.
type Options struct {
	Width            int
	Height           int
	TransitionFrames int
	FadeFrames       int
	Subtitles        *SubtitleRenderer
	Overlay          *Overlay
}

// Compositor renders frames of one plan. It is driven by a single goroutine.
type Compositor struct {
	plan      *timeline.Plan
	images    *ImageCache
	keyframes [][]motion.Keyframe
	opts      Options
	pool      *system.ImagePool
	bounds    image.Rectangle
}

// New creates a compositor. keyframes holds one camera path per scene.
func New(plan *timeline.Plan, images *ImageCache, keyframes [][]motion.Keyframe, pool *system.ImagePool, opts Options) *Compositor {
	if pool == nil {
		pool = system.NewImagePool()
	}
	return &Compositor{
		plan:      plan,
		images:    images,
		keyframes: keyframes,
		opts:      opts,
		pool:      pool,
		bounds:    image.Rect(0, 0, opts.Width, opts.Height),
	}
}

// Bounds is the frame rectangle.
func (c *Compositor) Bounds() image.Rectangle { return c.bounds }

// RenderFrame draws absolute frame into dst, which must match Bounds.
func (c *Compositor) RenderFrame(dst *image.RGBA, frame int) error {
	if dst.Rect != c.bounds {
		return fmt.Errorf("surface %v does not match frame %v", dst.Rect, c.bounds)
	}
	pos, ok := c.plan.Locate(frame)
	if !ok {
		return fmt.Errorf("frame %d outside timeline of %d frames", frame, c.plan.TotalFrames)
	}

	draw.Draw(dst, dst.Rect, image.Black, image.Point{}, draw.Src)

	cur := c.image(pos.Scene)
	camera := motion.CameraAt(c.sceneKeyframes(pos.Scene), pos.Segment, pos.FrameInSegment, c.plan.FramesPerSegment())

	if t, next, ok := c.transition(pos); ok && cur != nil {
		c.drawLayer(dst, cur, camera, 1-t)
		c.drawLayer(dst, next, c.firstKeyframe(pos.Scene+1), t)
	} else if cur != nil {
		drawCover(dst, cur, camera)
	}

	if c.opts.Subtitles != nil {
		if text := c.plan.Subtitle(pos); text != "" {
			opacity := FadeOpacity(pos.FrameInSegment, c.plan.FramesPerSegment(), c.opts.FadeFrames)
			c.opts.Subtitles.Draw(dst, text, opacity)
		}
	}
	c.opts.Overlay.Draw(dst)
	return nil
}

// transition reports the cross-fade progress t in [0,1) when pos lies in the
// closing window of a scene followed by one with an image.
func (c *Compositor) transition(pos timeline.Position) (float64, image.Image, bool) {
	if c.opts.TransitionFrames <= 0 || pos.Scene+1 >= len(c.plan.Timings) {
		return 0, nil, false
	}
	timing := c.plan.Timings[pos.Scene]
	window := min(c.opts.TransitionFrames, timing.DurationFrames)
	into := pos.FrameInScene - (timing.DurationFrames - window)
	if into < 0 {
		return 0, nil, false
	}
	next := c.image(pos.Scene + 1)
	if next == nil {
		return 0, nil, false
	}
	return float64(into) / float64(window), next, true
}

func (c *Compositor) drawLayer(dst *image.RGBA, img image.Image, k motion.Keyframe, opacity float64) {
	if opacity <= 0 {
		return
	}
	if opacity >= 1 {
		drawCover(dst, img, k)
		return
	}
	layer := c.pool.Get(c.bounds)
	defer c.pool.Put(layer)
	clear(layer.Pix)

	drawCover(layer, img, k)
	mask := image.NewUniform(color.Alpha{A: uint8(opacity*255 + 0.5)})
	draw.DrawMask(dst, dst.Rect, layer, image.Point{}, mask, image.Point{}, draw.Over)
}

func (c *Compositor) image(scene int) image.Image {
	if c.images == nil {
		return nil
	}
	return c.images.Get(scene)
}

func (c *Compositor) sceneKeyframes(scene int) []motion.Keyframe {
	if scene < len(c.keyframes) {
		return c.keyframes[scene]
	}
	return nil
}

func (c *Compositor) firstKeyframe(scene int) motion.Keyframe {
	if kfs := c.sceneKeyframes(scene); len(kfs) > 0 {
		return kfs[0]
	}
	return motion.Neutral
}

// drawCover scales img to cover dst, zooms by k.Scale around the frame
// center and shifts by the camera offsets (percent of frame size).
func drawCover(dst *image.RGBA, img image.Image, k motion.Keyframe) {
	sb := img.Bounds()
	db := dst.Bounds()
	w, h := float64(db.Dx()), float64(db.Dy())

	s := coverScale(float64(sb.Dx()), float64(sb.Dy()), w, h) * math.Max(k.Scale, 1)
	cx := float64(db.Min.X) + w/2 + k.OffsetX/100*w
	cy := float64(db.Min.Y) + h/2 + k.OffsetY/100*h
	srcCX := float64(sb.Min.X) + float64(sb.Dx())/2
	srcCY := float64(sb.Min.Y) + float64(sb.Dy())/2

	aff := f64.Aff3{
		s, 0, cx - s*srcCX,
		0, s, cy - s*srcCY,
	}
	xdraw.ApproxBiLinear.Transform(dst, aff, img, sb, xdraw.Src, nil)
}
