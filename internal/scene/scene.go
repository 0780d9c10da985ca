// Package scene defines the unit of input the engine renders.
package scene

import "image"

// Scene is one image plus narration. The engine never mutates a scene.
type Scene struct {
	ID       string
	Sequence int
	// DurationSeconds must be a positive multiple of the grid unit.
	DurationSeconds float64

	// Image is used when set; otherwise ImageRef is loaded during preparation.
	Image    image.Image
	ImageRef string

	Text  string
	Audio *Audio
	Mood  string
}

// Audio is a scene's narration. Either Path points to an encoded file or
// Samples already holds interleaved 16-bit PCM.
type Audio struct {
	Path string

	Samples    []int16
	SampleRate int
	Channels   int

	DurationSeconds float64
}

// Decoded reports whether the audio carries PCM samples.
func (a *Audio) Decoded() bool {
	return a != nil && len(a.Samples) > 0 && a.SampleRate > 0 && a.Channels > 0
}

// HasImage reports whether the scene has anything to load or draw.
func (s *Scene) HasImage() bool {
	return s.Image != nil || s.ImageRef != ""
}
