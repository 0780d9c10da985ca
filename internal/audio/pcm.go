// Package audio decodes narration, slices it onto the timeline grid and
// mixes the scheduled slices into one output track.
package audio

import (
	"encoding/binary"
	"io"
	"math"
)

// PCM is interleaved signed 16-bit audio.
type PCM struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Frames is the number of sample frames (samples per channel).
func (p *PCM) Frames() int {
	if p == nil || p.Channels <= 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// Duration is the length in seconds.
func (p *PCM) Duration() float64 {
	if p == nil || p.SampleRate <= 0 {
		return 0
	}
	return float64(p.Frames()) / float64(p.SampleRate)
}

// Window returns the part of p between from and to seconds, clamped to the
// buffer. The result shares memory with p; it is nil when empty.
func (p *PCM) Window(from, to float64) *PCM {
	if p == nil || to <= from {
		return nil
	}
	start := p.frameAt(from)
	end := p.frameAt(to)
	if end > p.Frames() {
		end = p.Frames()
	}
	if start >= end {
		return nil
	}
	return &PCM{
		Samples:    p.Samples[start*p.Channels : end*p.Channels],
		SampleRate: p.SampleRate,
		Channels:   p.Channels,
	}
}

func (p *PCM) frameAt(seconds float64) int {
	if seconds <= 0 {
		return 0
	}
	return int(math.Round(seconds * float64(p.SampleRate)))
}

// Convert returns p in the given layout. Channels are averaged down or
// duplicated up; the rate is changed by linear interpolation.
func (p *PCM) Convert(sampleRate, channels int) *PCM {
	if p == nil || (p.SampleRate == sampleRate && p.Channels == channels) {
		return p
	}

	frames := p.Frames()
	mono := make([]float64, frames)
	for f := 0; f < frames; f++ {
		sum := 0.0
		for c := 0; c < p.Channels; c++ {
			sum += float64(p.Samples[f*p.Channels+c])
		}
		mono[f] = sum / float64(p.Channels)
	}

	// keep stereo images intact when only the rate differs
	sameLayout := p.Channels == channels
	outFrames := frames
	if p.SampleRate != sampleRate && p.SampleRate > 0 {
		outFrames = int(math.Round(float64(frames) * float64(sampleRate) / float64(p.SampleRate)))
	}

	out := &PCM{Samples: make([]int16, outFrames*channels), SampleRate: sampleRate, Channels: channels}
	for f := 0; f < outFrames; f++ {
		src := float64(f)
		if outFrames != frames && outFrames > 1 {
			src = float64(f) * float64(frames-1) / float64(outFrames-1)
		}
		i := int(src)
		frac := src - float64(i)
		for c := 0; c < channels; c++ {
			var a, b float64
			if sameLayout {
				a = float64(p.Samples[i*p.Channels+c])
				b = a
				if i+1 < frames {
					b = float64(p.Samples[(i+1)*p.Channels+c])
				}
			} else {
				a = mono[i]
				b = a
				if i+1 < frames {
					b = mono[i+1]
				}
			}
			out.Samples[f*channels+c] = clip16(a + (b-a)*frac)
		}
	}
	return out
}

// WriteTo writes the samples as little-endian s16le.
func (p *PCM) WriteTo(w io.Writer) (int64, error) {
	if p == nil {
		return 0, nil
	}
	buf := make([]byte, 2*len(p.Samples))
	for i, s := range p.Samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}
	n, err := w.Write(buf)
	return int64(n), err
}

// ParseS16LE interprets raw little-endian bytes as interleaved samples.
func ParseS16LE(data []byte, sampleRate, channels int) *PCM {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	// drop a trailing partial frame
	if channels > 0 {
		samples = samples[:len(samples)-len(samples)%channels]
	}
	return &PCM{Samples: samples, SampleRate: sampleRate, Channels: channels}
}

func clip16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(math.Round(v))
}
