package audio

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/scenecast/internal/scene"
	"github.com/ivlev/scenecast/internal/timeline"
)

// Slice is one grid segment of a scene's narration, scheduled at an absolute
// time. Slices are independent: dropping one never moves another.
type Slice struct {
	Scene           int
	Segment         int
	PCM             *PCM
	StartSeconds    float64
	DurationSeconds float64
}

// Scheduler prepares narration for the mixing graph.
type Scheduler struct {
	decoder    Decoder
	sampleRate int
	channels   int
	workers    int
	logger     zerolog.Logger
}

// NewScheduler creates a scheduler producing audio in the given layout.
func NewScheduler(dec Decoder, sampleRate, channels, workers int, logger zerolog.Logger) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		decoder:    dec,
		sampleRate: sampleRate,
		channels:   channels,
		workers:    workers,
		logger:     logger.With().Str("component", "audio-scheduler").Logger(),
	}
}

// Decode decodes every scene's narration once, in parallel. Scenes whose audio
// fails to decode are missing from the result; the error is only logged.
// The returned error is non-nil only when ctx is cancelled.
func (s *Scheduler) Decode(ctx context.Context, scenes []scene.Scene) (map[int]*PCM, error) {
	var mu sync.Mutex
	decoded := make(map[int]*PCM)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i := range scenes {
		i := i
		a := scenes[i].Audio
		if a == nil {
			continue
		}
		g.Go(func() error {
			pcm, err := s.decodeOne(gctx, a)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Warn().Err(err).Int("scene", i).Str("path", a.Path).Msg("narration unavailable, scene stays silent")
				return nil
			}
			mu.Lock()
			decoded[i] = pcm
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decoded, ctx.Err()
}

func (s *Scheduler) decodeOne(ctx context.Context, a *scene.Audio) (*PCM, error) {
	if a.Decoded() {
		pcm := &PCM{Samples: a.Samples, SampleRate: a.SampleRate, Channels: a.Channels}
		return pcm.Convert(s.sampleRate, s.channels), nil
	}
	if a.Path == "" {
		return nil, errNoAudioSource
	}
	if s.decoder == nil {
		return nil, errNoDecoder
	}
	pcm, err := s.decoder.Decode(ctx, a.Path)
	if err != nil {
		return nil, err
	}
	return pcm.Convert(s.sampleRate, s.channels), nil
}

// Schedule cuts each decoded narration into grid segments. Segment k of a
// scene plays [k·unit, (k+1)·unit) of its audio starting at
// scene start + k·unit, so narration never runs past its own scene.
func (s *Scheduler) Schedule(plan *timeline.Plan, decoded map[int]*PCM) []Slice {
	unit := plan.Grid.UnitSeconds
	var slices []Slice

	for _, t := range plan.Timings {
		pcm, ok := decoded[t.Index]
		if !ok || pcm == nil {
			continue
		}
		for seg := 0; seg < t.SegmentCount; seg++ {
			w := pcm.Window(float64(seg)*unit, float64(seg+1)*unit)
			if w == nil || w.Frames() == 0 {
				continue
			}
			slices = append(slices, Slice{
				Scene:           t.Index,
				Segment:         seg,
				PCM:             w,
				StartSeconds:    t.StartSeconds + float64(seg)*unit,
				DurationSeconds: w.Duration(),
			})
		}
	}
	return slices
}
