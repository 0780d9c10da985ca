package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog"
)

// Decoder turns an encoded audio file into PCM.
type Decoder interface {
	Decode(ctx context.Context, path string) (*PCM, error)
}

// FFmpegDecoder decodes any container ffmpeg understands to s16le.
type FFmpegDecoder struct {
	FFmpegPath string
	SampleRate int
	Channels   int
	logger     zerolog.Logger
}

// NewFFmpegDecoder creates a decoder producing the given layout.
func NewFFmpegDecoder(ffmpegPath string, sampleRate, channels int, logger zerolog.Logger) *FFmpegDecoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegDecoder{
		FFmpegPath: ffmpegPath,
		SampleRate: sampleRate,
		Channels:   channels,
		logger:     logger.With().Str("component", "audio-decoder").Logger(),
	}
}

// Decode runs ffmpeg and collects its raw output.
func (d *FFmpegDecoder) Decode(ctx context.Context, path string) (*PCM, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-vn",
		"-ac", strconv.Itoa(d.Channels),
		"-ar", strconv.Itoa(d.SampleRate),
		"-f", "s16le",
		"-",
	}
	d.logger.Debug().Str("path", path).Strs("args", args).Msg("decoding narration")

	cmd := exec.CommandContext(ctx, d.FFmpegPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg decode %s: %w, output: %s", path, err, stderr.String())
	}

	pcm := ParseS16LE(stdout.Bytes(), d.SampleRate, d.Channels)
	if pcm.Frames() == 0 {
		return nil, fmt.Errorf("ffmpeg decode %s: no samples", path)
	}
	return pcm, nil
}
