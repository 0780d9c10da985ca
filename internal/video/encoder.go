// Package video streams composited frames into an ffmpeg process and muxes
// them with the mixed narration track.
package video

import (
	"context"
	"errors"
	"image"

	"github.com/ivlev/scenecast/internal/audio"
)

// ErrNoEncoder means no codec in the fallback list could be started.
var ErrNoEncoder = errors.New("no usable video encoder")

// Stream describes the output of one render.
type Stream struct {
	Width  int
	Height int
	FPS    int
	// Audio is muxed as the only audio track when non-nil.
	Audio *audio.PCM
}

// Encoder consumes frames in order and produces a container.
type Encoder interface {
	Begin(ctx context.Context, s Stream) error
	WriteFrame(frame *image.RGBA) error
	// End finalizes the container and returns its bytes.
	End() ([]byte, error)
	// Abort discards a started encode. Safe to call at any time.
	Abort()
	// Codec is the video codec in use after Begin.
	Codec() string
}
