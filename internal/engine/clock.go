package engine

import (
	"context"
	"runtime"
	"time"
)

// Clock is the time source the frame loop paces against.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Pacer holds frame production to the output frame rate, scaled by pace.
// Frames that fall behind are never delayed further; pace 0 only yields.
type Pacer struct {
	clock Clock
	fps   int
	pace  float64
	start time.Time
}

// NewPacer creates a pacer for fps frames per second.
func NewPacer(clock Clock, fps int, pace float64) *Pacer {
	return &Pacer{clock: clock, fps: fps, pace: pace}
}

// Start fixes the reference instant frame 0 is measured from.
func (p *Pacer) Start() {
	p.start = p.clock.Now()
}

// Wait blocks until frames frames are due.
func (p *Pacer) Wait(ctx context.Context, frames int) error {
	if p.pace <= 0 || p.fps <= 0 {
		runtime.Gosched()
		return ctx.Err()
	}
	due := time.Duration(float64(frames) / float64(p.fps) / p.pace * float64(time.Second))
	ahead := p.start.Add(due).Sub(p.clock.Now())
	if ahead <= 0 {
		return ctx.Err()
	}
	return p.clock.Sleep(ctx, ahead)
}
