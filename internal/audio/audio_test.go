package audio

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/scenecast/internal/scene"
	"github.com/ivlev/scenecast/internal/text"
	"github.com/ivlev/scenecast/internal/timeline"
)

const testRate = 1000

type fakeDecoder struct {
	calls   atomic.Int32
	clips   map[string]float64
	failing map[string]bool
}

func (f *fakeDecoder) Decode(ctx context.Context, path string) (*PCM, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.failing[path] {
		return nil, errors.New("corrupt file")
	}
	return tone(f.clips[path], testRate, 1, 1000), nil
}

func tone(seconds float64, rate, channels int, v int16) *PCM {
	n := int(math.Round(seconds*float64(rate))) * channels
	s := make([]int16, n)
	for i := range s {
		s[i] = v
	}
	return &PCM{Samples: s, SampleRate: rate, Channels: channels}
}

func TestPCMWindowClampsToBuffer(t *testing.T) {
	p := tone(12, testRate, 1, 1)

	w := p.Window(10, 20)
	require.NotNil(t, w)
	assert.InDelta(t, 2.0, w.Duration(), 1e-9)

	assert.Nil(t, p.Window(20, 30))
	assert.Nil(t, p.Window(5, 5))
	assert.Equal(t, 10*testRate, p.Window(-1, 10).Frames())
}

func TestPCMConvert(t *testing.T) {
	stereo := &PCM{Samples: []int16{100, 300, 100, 300}, SampleRate: testRate, Channels: 2}

	mono := stereo.Convert(testRate, 1)
	assert.Equal(t, []int16{200, 200}, mono.Samples)

	up := mono.Convert(testRate, 2)
	assert.Equal(t, []int16{200, 200, 200, 200}, up.Samples)

	resampled := tone(1, testRate, 1, 50).Convert(2*testRate, 1)
	assert.Equal(t, 2*testRate, resampled.Frames())
	assert.Equal(t, int16(50), resampled.Samples[len(resampled.Samples)-1])

	assert.Same(t, stereo, stereo.Convert(testRate, 2))
}

func TestPCMWriteToAndParse(t *testing.T) {
	p := &PCM{Samples: []int16{1, -2, math.MaxInt16, math.MinInt16}, SampleRate: testRate, Channels: 2}

	var buf bytes.Buffer
	n, err := p.WriteTo(&buf)
	require.NoError(t, err)
	assert.EqualValues(t, 8, n)

	// an odd trailing byte and a partial frame are dropped
	got := ParseS16LE(append(buf.Bytes(), 0x01, 0x00, 0x07), testRate, 2)
	assert.Equal(t, p.Samples, got.Samples)
}

func newTestScheduler(dec Decoder) *Scheduler {
	return NewScheduler(dec, testRate, 1, 4, zerolog.Nop())
}

func newPlan(scenes []scene.Scene) *timeline.Plan {
	return timeline.Build(scenes, timeline.Grid{FPS: 30, UnitSeconds: 10}, text.Segmenter{})
}

func TestScheduleKeepsAudioInsideItsScene(t *testing.T) {
	dec := &fakeDecoder{clips: map[string]float64{"s1.wav": 12}}
	scenes := []scene.Scene{
		{ID: "s1", DurationSeconds: scene.RoundUpDuration(12, 10), Audio: &scene.Audio{Path: "s1.wav"}},
		{ID: "s2", DurationSeconds: 10},
	}
	require.Equal(t, 20.0, scenes[0].DurationSeconds)

	s := newTestScheduler(dec)
	decoded, err := s.Decode(context.Background(), scenes)
	require.NoError(t, err)

	plan := newPlan(scenes)
	slices := s.Schedule(plan, decoded)
	require.Len(t, slices, 2)

	assert.Equal(t, 0.0, slices[0].StartSeconds)
	assert.InDelta(t, 10.0, slices[0].DurationSeconds, 1e-9)
	assert.Equal(t, 10.0, slices[1].StartSeconds)
	assert.InDelta(t, 2.0, slices[1].DurationSeconds, 1e-9)

	sceneEnd := float64(plan.Timings[0].EndFrame()) / 30
	for _, sl := range slices {
		assert.Equal(t, 0, sl.Scene)
		assert.LessOrEqual(t, sl.StartSeconds+sl.DurationSeconds, sceneEnd)
	}
}

func TestScheduleDropsSilentSegments(t *testing.T) {
	dec := &fakeDecoder{clips: map[string]float64{"short.wav": 4}}
	scenes := []scene.Scene{{DurationSeconds: 30, Audio: &scene.Audio{Path: "short.wav"}}}

	s := newTestScheduler(dec)
	decoded, err := s.Decode(context.Background(), scenes)
	require.NoError(t, err)

	slices := s.Schedule(newPlan(scenes), decoded)
	require.Len(t, slices, 1)
	assert.Equal(t, 0, slices[0].Segment)
}

func TestDecodeFailureDoesNotShiftOtherScenes(t *testing.T) {
	dec := &fakeDecoder{
		clips:   map[string]float64{"a.wav": 5, "c.wav": 5},
		failing: map[string]bool{"b.wav": true},
	}
	scenes := []scene.Scene{
		{DurationSeconds: 10, Audio: &scene.Audio{Path: "a.wav"}},
		{DurationSeconds: 10, Audio: &scene.Audio{Path: "b.wav"}},
		{DurationSeconds: 10, Audio: &scene.Audio{Path: "c.wav"}},
	}

	s := newTestScheduler(dec)
	decoded, err := s.Decode(context.Background(), scenes)
	require.NoError(t, err)
	assert.Len(t, decoded, 2)
	assert.EqualValues(t, 3, dec.calls.Load())

	slices := s.Schedule(newPlan(scenes), decoded)
	require.Len(t, slices, 2)
	assert.Equal(t, 0.0, slices[0].StartSeconds)
	assert.Equal(t, 2, slices[1].Scene)
	assert.Equal(t, 20.0, slices[1].StartSeconds)
}

func TestDecodeUsesPredecodedSamples(t *testing.T) {
	dec := &fakeDecoder{}
	pre := tone(2, 2*testRate, 2, 10)
	scenes := []scene.Scene{{
		DurationSeconds: 10,
		Audio:           &scene.Audio{Samples: pre.Samples, SampleRate: pre.SampleRate, Channels: pre.Channels},
	}}

	decoded, err := newTestScheduler(dec).Decode(context.Background(), scenes)
	require.NoError(t, err)
	require.Contains(t, decoded, 0)

	assert.EqualValues(t, 0, dec.calls.Load())
	assert.Equal(t, testRate, decoded[0].SampleRate)
	assert.Equal(t, 1, decoded[0].Channels)
	assert.InDelta(t, 2.0, decoded[0].Duration(), 0.01)
}

func TestDecodeHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dec := &fakeDecoder{clips: map[string]float64{"a.wav": 1}}
	_, err := newTestScheduler(dec).Decode(ctx, []scene.Scene{{DurationSeconds: 10, Audio: &scene.Audio{Path: "a.wav"}}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGraphMixPlacesSlicesAtAbsoluteOffsets(t *testing.T) {
	g := NewGraph(testRate, 1)
	slices := []Slice{
		{PCM: tone(1, testRate, 1, 100), StartSeconds: 0},
		{PCM: tone(1, testRate, 1, 200), StartSeconds: 2},
	}
	n, err := g.StartAll(slices, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, g.Live())

	out, err := g.Mix(3)
	require.NoError(t, err)
	require.Equal(t, 3*testRate, out.Frames())
	assert.Equal(t, int16(100), out.Samples[0])
	assert.Equal(t, int16(0), out.Samples[testRate+500])
	assert.Equal(t, int16(200), out.Samples[2*testRate])
}

func TestGraphMixSaturates(t *testing.T) {
	g := NewGraph(testRate, 1)
	_, err := g.StartAll([]Slice{
		{PCM: tone(1, testRate, 1, 30000)},
		{PCM: tone(1, testRate, 1, 30000)},
	}, 0)
	require.NoError(t, err)

	out, err := g.Mix(1)
	require.NoError(t, err)
	assert.Equal(t, int16(math.MaxInt16), out.Samples[0])
}

func TestGraphSkipsForeignLayout(t *testing.T) {
	g := NewGraph(testRate, 2)
	n, err := g.StartAll([]Slice{{PCM: tone(1, testRate, 1, 1)}}, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGraphCloseIsIdempotent(t *testing.T) {
	g := NewGraph(testRate, 1)
	_, err := g.StartAll([]Slice{{PCM: tone(1, testRate, 1, 1)}}, 0)
	require.NoError(t, err)

	g.Close()
	g.Close()
	assert.True(t, g.Closed())
	assert.Zero(t, g.Live())

	_, err = g.Mix(1)
	assert.ErrorIs(t, err, ErrGraphClosed)
	_, err = g.StartAll(nil, 0)
	assert.ErrorIs(t, err, ErrGraphClosed)
}
