package audio

import (
	"errors"
	"math"
	"sync"
)

var (
	// ErrGraphClosed is returned by operations on a closed graph.
	ErrGraphClosed = errors.New("audio graph closed")

	errNoAudioSource = errors.New("scene audio has neither a path nor samples")
	errNoDecoder     = errors.New("no audio decoder configured")
)

// Source is one slice connected to the graph.
type Source struct {
	slice     Slice
	startAt   float64
	started   bool
	connected bool
}

// Graph mixes scheduled slices into a single interleaved track. A Graph
// belongs to one render and must be closed when the render ends.
type Graph struct {
	mu         sync.Mutex
	sampleRate int
	channels   int
	sources    []*Source
	closed     bool
}

// NewGraph creates an empty graph in the given output layout.
func NewGraph(sampleRate, channels int) *Graph {
	return &Graph{sampleRate: sampleRate, channels: channels}
}

// StartAll connects one source per slice and starts each at base plus the
// slice's own scheduled time. Slices in a foreign layout are skipped.
func (g *Graph) StartAll(slices []Slice, base float64) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return 0, ErrGraphClosed
	}
	started := 0
	for _, sl := range slices {
		if sl.PCM == nil || sl.PCM.SampleRate != g.sampleRate || sl.PCM.Channels != g.channels {
			continue
		}
		g.sources = append(g.sources, &Source{
			slice:     sl,
			startAt:   base + sl.StartSeconds,
			started:   true,
			connected: true,
		})
		started++
	}
	return started, nil
}

// Mix renders the first seconds of output. Overlapping sources are summed
// with saturation; anything past the end is cut.
func (g *Graph) Mix(seconds float64) (*PCM, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, ErrGraphClosed
	}

	frames := int(math.Round(seconds * float64(g.sampleRate)))
	if frames < 0 {
		frames = 0
	}
	acc := make([]int32, frames*g.channels)

	for _, src := range g.sources {
		if !src.started || !src.connected {
			continue
		}
		offset := int(math.Round(src.startAt * float64(g.sampleRate)))
		samples := src.slice.PCM.Samples
		for i, v := range samples {
			j := offset*g.channels + i
			if j < 0 {
				continue
			}
			if j >= len(acc) {
				break
			}
			acc[j] += int32(v)
		}
	}

	out := &PCM{Samples: make([]int16, len(acc)), SampleRate: g.sampleRate, Channels: g.channels}
	for i, v := range acc {
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		out.Samples[i] = int16(v)
	}
	return out, nil
}

// Live is the number of sources still started or connected.
func (g *Graph) Live() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for _, s := range g.sources {
		if s.started || s.connected {
			n++
		}
	}
	return n
}

// Closed reports whether Close has run.
func (g *Graph) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Close stops and disconnects every source. Safe to call more than once.
func (g *Graph) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return
	}
	for _, s := range g.sources {
		s.started = false
		s.connected = false
	}
	g.sources = nil
	g.closed = true
}
