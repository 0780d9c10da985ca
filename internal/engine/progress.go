package engine

import (
	"math"
	"sync"
)

// Status is the phase reported in a Progress event.
type Status string

const (
	StatusPreparing Status = "preparing"
	StatusRendering Status = "rendering"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
)

// Progress is one event of a render.
type Progress struct {
	Status       Status
	Percent      float64
	CurrentFrame int
	TotalFrames  int
	// Err is set on StatusError. It wraps ErrCancelled for cancelled renders.
	Err error
}

// Observer receives progress events on the rendering goroutine.
type Observer interface {
	OnProgress(p Progress)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(p Progress)

func (f ObserverFunc) OnProgress(p Progress) { f(p) }

// ChanObserver forwards events to a channel, dropping them when it is full.
// Terminal events are never dropped.
type ChanObserver chan Progress

func (c ChanObserver) OnProgress(p Progress) {
	if p.Status == StatusComplete || p.Status == StatusError {
		c <- p
		return
	}
	select {
	case c <- p:
	default:
	}
}

// reporter keeps Percent monotonic and guarantees a single terminal event.
type reporter struct {
	mu       sync.Mutex
	obs      Observer
	percent  float64
	total    int
	fps      int
	terminal bool
}

func newReporter(obs Observer) *reporter {
	return &reporter{obs: obs}
}

func (r *reporter) emit(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.terminal {
		return
	}
	if p.Status == StatusComplete || p.Status == StatusError {
		r.terminal = true
	}
	if p.Percent < r.percent {
		p.Percent = r.percent
	}
	r.percent = p.Percent
	if p.TotalFrames == 0 {
		p.TotalFrames = r.total
	}
	if r.obs != nil {
		r.obs.OnProgress(p)
	}
}

func (r *reporter) preparing() {
	r.emit(Progress{Status: StatusPreparing})
}

func (r *reporter) rendering(total, fps int) {
	r.mu.Lock()
	r.total, r.fps = total, fps
	r.mu.Unlock()
	r.emit(Progress{Status: StatusRendering, TotalFrames: total})
}

// frame reports done frames, once per second of output and on the last one.
func (r *reporter) frame(done int) {
	r.mu.Lock()
	total, fps := r.total, r.fps
	r.mu.Unlock()

	if fps > 0 && done%fps != 0 && done != total {
		return
	}
	r.emit(Progress{
		Status:       StatusRendering,
		Percent:      percent(done, total),
		CurrentFrame: done,
		TotalFrames:  total,
	})
}

func (r *reporter) complete() {
	r.mu.Lock()
	total := r.total
	r.mu.Unlock()
	r.emit(Progress{Status: StatusComplete, Percent: 100, CurrentFrame: total})
}

func (r *reporter) fail(err error, current int) {
	r.emit(Progress{Status: StatusError, CurrentFrame: current, Err: err})
}

func percent(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Min(100, 100*float64(done)/float64(total))
}
