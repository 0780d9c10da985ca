package engine

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivlev/scenecast/internal/audio"
	"github.com/ivlev/scenecast/internal/config"
	"github.com/ivlev/scenecast/internal/video"
)

const testRate = 1000

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Width = 64
	cfg.Height = 36
	cfg.FPS = 10
	cfg.GridSeconds = 10
	cfg.Workers = 2
	cfg.Audio.SampleRate = testRate
	cfg.Audio.Channels = 1
	cfg.Motion.FocusDetection = false
	return cfg
}

type fakeEncoder struct {
	mu       sync.Mutex
	stream   video.Stream
	begun    bool
	frames   int
	ended    int
	aborted  int
	beginErr error
	onFrame  func(n int)
	panicAt  int
}

func (e *fakeEncoder) Begin(_ context.Context, s video.Stream) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.beginErr != nil {
		return e.beginErr
	}
	e.stream = s
	e.begun = true
	return nil
}

func (e *fakeEncoder) WriteFrame(frame *image.RGBA) error {
	e.mu.Lock()
	e.frames++
	n := e.frames
	hook := e.onFrame
	e.mu.Unlock()

	if e.panicAt > 0 && n == e.panicAt {
		panic("encoder exploded")
	}
	if hook != nil {
		hook(n)
	}
	return nil
}

func (e *fakeEncoder) End() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ended++
	return []byte("fake-mp4"), nil
}

func (e *fakeEncoder) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.aborted++
}

func (e *fakeEncoder) Codec() string { return "fake264" }

func (e *fakeEncoder) snapshot() (frames, ended, aborted int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames, e.ended, e.aborted
}

// encoderFactory hands out enc and counts how often it was asked.
func encoderFactory(enc *fakeEncoder, calls *atomic.Int32) EncoderFactory {
	return func(*config.Config, zerolog.Logger) video.Encoder {
		if calls != nil {
			calls.Add(1)
		}
		return enc
	}
}

// fakeClock advances only when slept on.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	slept  time.Duration
	sleeps []time.Duration
	block  atomic.Bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if c.block.Load() {
		<-ctx.Done()
		return ctx.Err()
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.slept += d
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) total() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept
}

type fakeDecoder struct {
	clips map[string]float64
}

func (d *fakeDecoder) Decode(ctx context.Context, path string) (*audio.PCM, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	secs, ok := d.clips[path]
	if !ok {
		return nil, errors.New("no such clip")
	}
	n := int(math.Round(secs * testRate))
	s := make([]int16, n)
	for i := range s {
		s[i] = 1000
	}
	return &audio.PCM{Samples: s, SampleRate: testRate, Channels: 1}, nil
}

type fakeLoader struct {
	images map[string]image.Image
}

func (l *fakeLoader) Load(ref string) (image.Image, error) {
	if img, ok := l.images[ref]; ok {
		return img, nil
	}
	return nil, errors.New("image not found")
}

func solid(c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 128, 72))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// recorder collects progress events.
type recorder struct {
	mu     sync.Mutex
	events []Progress
}

func (r *recorder) OnProgress(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
}

func (r *recorder) all() []Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Progress(nil), r.events...)
}

func (r *recorder) terminal() []Progress {
	var out []Progress
	for _, p := range r.all() {
		if p.Status == StatusComplete || p.Status == StatusError {
			out = append(out, p)
		}
	}
	return out
}

func assertMonotonic(t *testing.T, events []Progress) {
	t.Helper()
	prev := -1.0
	for i, p := range events {
		if p.Percent < prev {
			t.Fatalf("event %d: percent dropped from %.2f to %.2f", i, prev, p.Percent)
		}
		prev = p.Percent
	}
}
