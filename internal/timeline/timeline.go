// Package timeline lays scenes out on a frame-indexed grid.
package timeline

import (
	"math"
	"sort"

	"github.com/ivlev/scenecast/internal/scene"
	"github.com/ivlev/scenecast/internal/text"
)

// Grid quantizes all scene timing to whole units of UnitSeconds.
type Grid struct {
	FPS         int
	UnitSeconds float64
}

// FramesPerUnit is the length of one segment in frames.
func (g Grid) FramesPerUnit() int {
	n := int(math.Round(g.UnitSeconds * float64(g.FPS)))
	if n < 1 {
		n = 1
	}
	return n
}

// Segments is the number of grid units a scene of the given length occupies.
func (g Grid) Segments(durationSeconds float64) int {
	n := int(math.Round(durationSeconds / g.UnitSeconds))
	if n < 1 {
		n = 1
	}
	return n
}

// SceneTiming is the placement of one scene on the timeline.
type SceneTiming struct {
	Index          int
	SceneID        string
	StartFrame     int
	DurationFrames int
	SegmentCount   int
	Subtitles      []string
	StartSeconds   float64
}

// EndFrame is the first frame after the scene.
func (t SceneTiming) EndFrame() int { return t.StartFrame + t.DurationFrames }

// Position resolves an absolute frame to its place inside a scene.
type Position struct {
	Scene          int
	FrameInScene   int
	Segment        int
	FrameInSegment int
}

// Plan is the read-only timeline of one render.
type Plan struct {
	Grid        Grid
	Timings     []SceneTiming
	TotalFrames int
}

// Build lays the scenes out back to back. It is pure: the same scenes always
// produce the same plan.
func Build(scenes []scene.Scene, grid Grid, seg text.Segmenter) *Plan {
	plan := &Plan{
		Grid:    grid,
		Timings: make([]SceneTiming, 0, len(scenes)),
	}
	perUnit := grid.FramesPerUnit()

	start := 0
	for i, s := range scenes {
		segments := grid.Segments(s.DurationSeconds)
		frames := segments * perUnit
		plan.Timings = append(plan.Timings, SceneTiming{
			Index:          i,
			SceneID:        s.ID,
			StartFrame:     start,
			DurationFrames: frames,
			SegmentCount:   segments,
			Subtitles:      seg.Segment(s.Text, segments),
			StartSeconds:   float64(start) / float64(grid.FPS),
		})
		start += frames
	}
	plan.TotalFrames = start
	return plan
}

// FramesPerSegment is the segment length in frames.
func (p *Plan) FramesPerSegment() int { return p.Grid.FramesPerUnit() }

// DurationSeconds is the total length of the plan.
func (p *Plan) DurationSeconds() float64 {
	if p.Grid.FPS <= 0 {
		return 0
	}
	return float64(p.TotalFrames) / float64(p.Grid.FPS)
}

// Locate maps an absolute frame to its scene and segment. ok is false for
// frames outside the plan.
func (p *Plan) Locate(frame int) (pos Position, ok bool) {
	if frame < 0 || frame >= p.TotalFrames {
		return Position{}, false
	}

	i := sort.Search(len(p.Timings), func(i int) bool {
		return p.Timings[i].EndFrame() > frame
	})
	t := p.Timings[i]
	perSeg := p.FramesPerSegment()

	pos.Scene = i
	pos.FrameInScene = frame - t.StartFrame
	pos.Segment = pos.FrameInScene / perSeg
	pos.FrameInSegment = pos.FrameInScene % perSeg
	if pos.Segment >= t.SegmentCount {
		pos.Segment = t.SegmentCount - 1
		pos.FrameInSegment = pos.FrameInScene - pos.Segment*perSeg
	}
	return pos, true
}

// Subtitle returns the subtitle shown at pos.
func (p *Plan) Subtitle(pos Position) string {
	subs := p.Timings[pos.Scene].Subtitles
	if pos.Segment < len(subs) {
		return subs[pos.Segment]
	}
	return ""
}
