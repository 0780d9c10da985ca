// Package engine runs the capture pipeline: prepare a timeline, composite every
// frame, stream frames and narration into an encoder and report progress.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/scenecast/internal/analyzer"
	"github.com/ivlev/scenecast/internal/audio"
	"github.com/ivlev/scenecast/internal/compositor"
	"github.com/ivlev/scenecast/internal/config"
	"github.com/ivlev/scenecast/internal/logging"
	"github.com/ivlev/scenecast/internal/motion"
	"github.com/ivlev/scenecast/internal/scene"
	"github.com/ivlev/scenecast/internal/system"
	"github.com/ivlev/scenecast/internal/text"
	"github.com/ivlev/scenecast/internal/timeline"
	"github.com/ivlev/scenecast/internal/video"
)

// State is the lifecycle of a Session.
type State int

const (
	StateIdle State = iota
	StatePreparing
	StateRendering
	StateComplete
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateRendering:
		return "rendering"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Session owns every piece of mutable state of one render. A Session runs
// once; create a new one per render.
type Session struct {
	id      string
	channel string
	cfg     *config.Config
	logger  zerolog.Logger

	clock       Clock
	images      ImageLoader
	decoder     audio.Decoder
	newEncoder  EncoderFactory
	detector    analyzer.Detector
	detectorSet bool

	mu        sync.Mutex
	state     State
	cancel    context.CancelFunc
	cancelled bool
	res       *resources
	done      chan struct{}
}

// resources are allocated during preparation and released exactly once.
type resources struct {
	plan      *timeline.Plan
	scenes    []scene.Scene
	cache     *compositor.ImageCache
	keyframes [][]motion.Keyframe
	slices    []audio.Slice
	graph     *audio.Graph
	mixed     *audio.PCM
	subs      *compositor.SubtitleRenderer
	comp      *compositor.Compositor
	pool      *system.ImagePool
	surface   *image.RGBA
	encoder   video.Encoder
	finalized bool
	once      sync.Once
}

// Resources is a snapshot of what a session currently holds.
type Resources struct {
	LiveAudioSources int
	CachedImages     int
	SurfaceHeld      bool
	EncoderOpen      bool
}

// Idle reports whether nothing is held.
func (r Resources) Idle() bool {
	return r.LiveAudioSources == 0 && r.CachedImages == 0 && !r.SurfaceHeld && !r.EncoderOpen
}

// NewSession creates an idle session for cfg.
func NewSession(cfg *config.Config, opts ...Option) *Session {
	s := &Session{
		id:         uuid.NewString(),
		cfg:        cfg,
		logger:     logging.New(nil),
		clock:      wallClock{},
		newEncoder: FFmpegEncoderFactory,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.images == nil {
		s.images = defaultImageLoader(cfg)
	}
	if s.decoder == nil {
		s.decoder = audio.NewFFmpegDecoder(cfg.Video.FFmpegPath, cfg.Audio.SampleRate, cfg.Audio.Channels, s.logger)
	}

	l := logging.WithComponent(s.logger, "engine").With().Str("session", s.id)
	if s.channel != "" {
		l = l.Str("channel", s.channel)
	}
	s.logger = l.Logger()
	return s
}

// ID is the session's unique id.
func (s *Session) ID() string { return s.id }

// State is the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} { return s.done }

// Cancel stops the render at the next frame. It is idempotent and safe in
// any state; a session cancelled before Run resolves as cancelled without
// rendering.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
		s.cancelled = true
	case StatePreparing, StateRendering:
		s.cancelled = true
		s.state = StateCancelled
		s.cancel()
		s.logger.Info().Msg("cancel requested")
	}
}

// Resources reports what the session holds right now. After Run returns it
// is always idle.
func (s *Session) Resources() Resources {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.res
	if r == nil {
		return Resources{}
	}
	return Resources{
		LiveAudioSources: r.graph.Live(),
		CachedImages:     r.cache.Len(),
		SurfaceHeld:      r.surface != nil,
		EncoderOpen:      r.encoder != nil && !r.finalized,
	}
}

// Run renders scenes and always returns a result. Errors after preparation
// starts are reported once through obs and in Result.Err; Run never panics.
func (s *Session) Run(ctx context.Context, scenes []scene.Scene, obs Observer) *Result {
	started := time.Now()
	rep := newReporter(obs)
	result := &Result{SceneCount: len(scenes)}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		result.Err = ErrSessionUsed
		return result
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StatePreparing
	if s.cancelled {
		s.state = StateCancelled
		cancel()
	}
	s.mu.Unlock()

	defer close(s.done)
	defer cancel()

	s.logger.Info().Int("scenes", len(scenes)).Msg("render started")
	rep.preparing()

	err := s.execute(ctx, scenes, rep, result)
	if err != nil && ctx.Err() != nil {
		err = ErrCancelled
	}
	s.release()
	return s.finish(result, rep, err, started)
}

func (s *Session) execute(ctx context.Context, scenes []scene.Scene, rep *reporter, result *Result) (err error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error().Interface("panic", p).Bytes("stack", debug.Stack()).Msg("render panicked")
			err = fmt.Errorf("render panic: %v", p)
		}
	}()

	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if len(scenes) == 0 {
		return ErrNoScenes
	}
	renderable := s.renderable(scenes)
	if len(renderable) == 0 {
		return ErrNoFrames
	}
	if ctx.Err() != nil {
		return ErrCancelled
	}

	prepStart := time.Now()
	r, err := s.prepare(ctx, renderable)
	if err != nil {
		return err
	}
	result.SceneCount = len(renderable)
	result.TotalFrames = r.plan.TotalFrames
	result.DurationSeconds = r.plan.DurationSeconds()
	result.Plan = describePlan(s.cfg, r.plan, r.keyframes, renderable)
	result.Stats.Prepare = time.Since(prepStart)

	if err := s.startOutput(ctx, r); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state == StatePreparing {
		s.state = StateRendering
	}
	s.mu.Unlock()

	total := r.plan.TotalFrames
	rep.rendering(total, s.cfg.FPS)

	pacer := NewPacer(s.clock, s.cfg.FPS, s.cfg.Pace)
	pacer.Start()
	renderStart := time.Now()

	for f := 0; f < total; f++ {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		if err := r.comp.RenderFrame(r.surface, f); err != nil {
			return fmt.Errorf("composite frame %d: %w", f, err)
		}
		if err := r.encoder.WriteFrame(r.surface); err != nil {
			return fmt.Errorf("encode frame %d: %w", f, err)
		}
		result.Stats.Frames = f + 1
		rep.frame(f + 1)
		if err := pacer.Wait(ctx, f+1); err != nil {
			return ErrCancelled
		}
	}
	result.Stats.Render = time.Since(renderStart)

	if err := s.clock.Sleep(ctx, s.cfg.FlushDelay); err != nil {
		return ErrCancelled
	}

	finStart := time.Now()
	data, err := r.encoder.End()
	s.mu.Lock()
	r.finalized = true
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("finalize encoder: %w", err)
	}
	result.Stats.Finalize = time.Since(finStart)
	result.Video = data
	result.Codec = r.encoder.Codec()
	return nil
}

// renderable drops scenes without a usable duration.
func (s *Session) renderable(scenes []scene.Scene) []scene.Scene {
	out := make([]scene.Scene, 0, len(scenes))
	for _, sc := range scenes {
		d := sc.DurationSeconds
		if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			s.logger.Warn().Str("scene", sc.ID).Float64("duration", d).Msg("scene has no duration, skipped")
			continue
		}
		out = append(out, sc)
	}
	return out
}

// prepare builds the plan and loads every asset. Asset failures degrade the
// affected scene only.
func (s *Session) prepare(ctx context.Context, scenes []scene.Scene) (*resources, error) {
	cfg := s.cfg
	grid := timeline.Grid{FPS: cfg.FPS, UnitSeconds: cfg.GridSeconds}
	plan := timeline.Build(scenes, grid, text.Segmenter{TargetChars: cfg.Subtitle.CharsPerSegment})
	if plan.TotalFrames == 0 {
		return nil, ErrNoFrames
	}

	r := &resources{
		plan:      plan,
		scenes:    scenes,
		cache:     compositor.NewImageCache(cfg.Width, cfg.Height, cfg.Motion.MaxScale),
		keyframes: make([][]motion.Keyframe, len(scenes)),
		graph:     audio.NewGraph(cfg.Audio.SampleRate, cfg.Audio.Channels),
		pool:      system.NewImagePool(),
	}
	s.mu.Lock()
	s.res = r
	s.mu.Unlock()

	director := motion.NewDirector(cfg.Motion.MaxScale, s.focusDetector())
	sched := audio.NewScheduler(s.decoder, cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Workers, s.logger)

	var decoded map[int]*audio.PCM
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		decoded, err = sched.Decode(gctx, scenes)
		return err
	})
	g.Go(func() error {
		return s.preloadImages(gctx, r, director)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.slices = sched.Schedule(plan, decoded)
	s.logger.Debug().
		Int("frames", plan.TotalFrames).
		Int("images", r.cache.Len()).
		Int("narrations", len(decoded)).
		Int("slices", len(r.slices)).
		Msg("preparation finished")

	subs, err := compositor.NewSubtitleRenderer(cfg.Width, cfg.Height, compositor.SubtitleOptions{
		FontPath:     cfg.Subtitle.FontPath,
		FontScale:    cfg.Subtitle.FontScale,
		MaxWidth:     cfg.Subtitle.MaxWidth,
		BoxOpacity:   cfg.Subtitle.BoxOpacity,
		BottomMargin: cfg.Subtitle.BottomMargin,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("font", cfg.Subtitle.FontPath).Msg("subtitle font unavailable")
	}
	r.subs = subs

	var overlay *compositor.Overlay
	if o := cfg.Overlay; o.QRURL != "" {
		overlay, err = compositor.NewQROverlay(o.QRURL, o.QRSize, o.QRPosition, o.QROpacity)
		if err != nil {
			s.logger.Warn().Err(err).Msg("qr overlay disabled")
		}
	}

	r.comp = compositor.New(plan, r.cache, r.keyframes, r.pool, compositor.Options{
		Width:            cfg.Width,
		Height:           cfg.Height,
		TransitionFrames: secondsToFrames(cfg.TransitionSeconds, cfg.FPS),
		FadeFrames:       secondsToFrames(cfg.Subtitle.FadeSeconds, cfg.FPS),
		Subtitles:        subs,
		Overlay:          overlay,
	})

	surface := r.pool.Get(r.comp.Bounds())
	s.mu.Lock()
	r.surface = surface
	s.mu.Unlock()
	return r, nil
}

func (s *Session) preloadImages(ctx context.Context, r *resources, director *motion.Director) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for i := range r.scenes {
		i := i
		sc := &r.scenes[i]
		segments := r.plan.Timings[i].SegmentCount
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			img := sc.Image
			if img == nil && sc.ImageRef != "" {
				loaded, err := s.images.Load(sc.ImageRef)
				if err != nil {
					s.logger.Warn().Err(err).Str("scene", sc.ID).Str("image", sc.ImageRef).Msg("image unavailable, scene renders without it")
				}
				img = loaded
			}
			r.keyframes[i] = director.Plan(i, sc.Mood, segments, img)
			r.cache.Put(i, img)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Session) focusDetector() analyzer.Detector {
	if s.detectorSet {
		return s.detector
	}
	if !s.cfg.Motion.FocusDetection {
		return nil
	}
	d, err := analyzer.NewDetector("contrast")
	if err != nil {
		s.logger.Warn().Err(err).Msg("focus detection disabled")
		return nil
	}
	return d
}

// startOutput starts audio sources and the encoder at the shared reference
// instant: both timelines begin at offset zero.
func (s *Session) startOutput(ctx context.Context, r *resources) error {
	started, err := r.graph.StartAll(r.slices, 0)
	if err != nil {
		return err
	}
	if started > 0 {
		r.mixed, err = r.graph.Mix(r.plan.DurationSeconds())
		if err != nil {
			return err
		}
	}

	enc := s.newEncoder(s.cfg, s.logger)
	s.mu.Lock()
	r.encoder = enc
	s.mu.Unlock()

	err = enc.Begin(ctx, video.Stream{
		Width:  s.cfg.Width,
		Height: s.cfg.Height,
		FPS:    s.cfg.FPS,
		Audio:  r.mixed,
	})
	if err != nil {
		return fmt.Errorf("start encoder: %w", err)
	}
	return nil
}

// release frees everything prepare allocated. It runs exactly once.
func (s *Session) release() {
	s.mu.Lock()
	r := s.res
	s.mu.Unlock()
	if r == nil {
		return
	}

	r.once.Do(func() {
		r.graph.Close()
		r.cache.Clear()
		if r.subs != nil {
			r.subs.Close()
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if r.encoder != nil && !r.finalized {
			r.encoder.Abort()
		}
		if r.surface != nil {
			r.pool.Release(r.surface)
			r.surface = nil
		}
		s.res = nil
	})
}

func (s *Session) finish(result *Result, rep *reporter, err error, started time.Time) *Result {
	result.Stats.Total = time.Since(started)
	if secs := result.Stats.Total.Seconds(); secs > 0 {
		result.Stats.EffectiveFPS = float64(result.Stats.Frames) / secs
	}
	if s.cfg.ShowStats {
		host := system.Snapshot()
		result.Stats.Host = &host
	}

	s.mu.Lock()
	switch {
	case err == nil:
		s.state = StateComplete
		result.Success = true
	case errors.Is(err, ErrCancelled):
		s.state = StateCancelled
		result.Cancelled = true
	default:
		s.state = StateFailed
	}
	s.mu.Unlock()
	result.Err = err

	switch {
	case result.Success:
		s.logger.Info().
			Int("frames", result.TotalFrames).
			Float64("duration", result.DurationSeconds).
			Str("codec", result.Codec).
			Dur("elapsed", result.Stats.Total).
			Msg("render complete")
		rep.complete()
	case result.Cancelled:
		s.logger.Info().Int("frame", result.Stats.Frames).Msg("render cancelled")
		rep.fail(err, result.Stats.Frames)
	default:
		s.logger.Error().Err(err).Int("frame", result.Stats.Frames).Msg("render failed")
		rep.fail(err, result.Stats.Frames)
	}
	return result
}

func secondsToFrames(seconds float64, fps int) int {
	if seconds <= 0 {
		return 0
	}
	return int(math.Round(seconds * float64(fps)))
}
