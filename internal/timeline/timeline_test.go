package timeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/scenecast/internal/scene"
	"github.com/ivlev/scenecast/internal/text"
)

var grid = Grid{FPS: 30, UnitSeconds: 10}

func TestBuildContiguous(t *testing.T) {
	scenes := []scene.Scene{
		{ID: "a", DurationSeconds: 10},
		{ID: "b", DurationSeconds: 30, Text: "One. Two. Three."},
		{ID: "c", DurationSeconds: 4}, // below one unit still gets one segment
		{ID: "d", DurationSeconds: 20},
	}

	plan := Build(scenes, grid, text.Segmenter{})
	require.Len(t, plan.Timings, 4)

	assert.Equal(t, 0, plan.Timings[0].StartFrame)
	sum := 0
	for i, tm := range plan.Timings {
		assert.Equal(t, sum, tm.StartFrame, "scene %d", i)
		assert.Equal(t, tm.SegmentCount*300, tm.DurationFrames)
		assert.Len(t, tm.Subtitles, tm.SegmentCount)
		assert.InDelta(t, float64(tm.StartFrame)/30, tm.StartSeconds, 1e-9)
		sum += tm.DurationFrames
	}
	assert.Equal(t, sum, plan.TotalFrames)
	assert.Equal(t, []int{1, 3, 1, 2}, []int{
		plan.Timings[0].SegmentCount, plan.Timings[1].SegmentCount,
		plan.Timings[2].SegmentCount, plan.Timings[3].SegmentCount,
	})
	assert.InDelta(t, 70.0, plan.DurationSeconds(), 1e-9)
}

func TestBuildIsDeterministic(t *testing.T) {
	scenes := []scene.Scene{
		{DurationSeconds: 20, Text: strings.Repeat("word ", 40)},
		{DurationSeconds: 10},
	}
	assert.Equal(t, Build(scenes, grid, text.Segmenter{}), Build(scenes, grid, text.Segmenter{}))
}

func TestBuildWithoutNarrationKeepsLayout(t *testing.T) {
	scenes := []scene.Scene{{DurationSeconds: 20}, {DurationSeconds: 10}}
	plan := Build(scenes, grid, text.Segmenter{})

	assert.Equal(t, []string{"", ""}, plan.Timings[0].Subtitles)
	assert.Equal(t, 600, plan.Timings[1].StartFrame)
}

func TestLocate(t *testing.T) {
	scenes := []scene.Scene{{DurationSeconds: 20}, {DurationSeconds: 10}}
	plan := Build(scenes, grid, text.Segmenter{})

	tests := []struct {
		frame int
		want  Position
	}{
		{0, Position{Scene: 0, FrameInScene: 0, Segment: 0, FrameInSegment: 0}},
		{299, Position{Scene: 0, FrameInScene: 299, Segment: 0, FrameInSegment: 299}},
		{300, Position{Scene: 0, FrameInScene: 300, Segment: 1, FrameInSegment: 0}},
		{599, Position{Scene: 0, FrameInScene: 599, Segment: 1, FrameInSegment: 299}},
		{600, Position{Scene: 1, FrameInScene: 0, Segment: 0, FrameInSegment: 0}},
		{899, Position{Scene: 1, FrameInScene: 299, Segment: 0, FrameInSegment: 299}},
	}

	for _, tt := range tests {
		got, ok := plan.Locate(tt.frame)
		require.True(t, ok, "frame %d", tt.frame)
		assert.Equal(t, tt.want, got, "frame %d", tt.frame)
	}

	_, ok := plan.Locate(900)
	assert.False(t, ok)
	_, ok = plan.Locate(-1)
	assert.False(t, ok)
}

func TestSubtitleAtPosition(t *testing.T) {
	scenes := []scene.Scene{{DurationSeconds: 20, Text: "First half here. Second half there."}}
	plan := Build(scenes, grid, text.Segmenter{})

	pos, _ := plan.Locate(10)
	assert.Equal(t, "First half here.", plan.Subtitle(pos))
	pos, _ = plan.Locate(310)
	assert.Equal(t, "Second half there.", plan.Subtitle(pos))
}
