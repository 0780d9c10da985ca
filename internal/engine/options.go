package engine

import (
	"image"

	"github.com/rs/zerolog"

	"github.com/ivlev/scenecast/internal/analyzer"
	"github.com/ivlev/scenecast/internal/audio"
	"github.com/ivlev/scenecast/internal/config"
	"github.com/ivlev/scenecast/internal/source"
	"github.com/ivlev/scenecast/internal/system"
	"github.com/ivlev/scenecast/internal/video"
)

// ImageLoader resolves Scene.ImageRef.
type ImageLoader interface {
	Load(ref string) (image.Image, error)
}

// EncoderFactory creates the encoder of one session.
type EncoderFactory func(cfg *config.Config, logger zerolog.Logger) video.Encoder

// Option customizes a Session.
type Option func(*Session)

// WithLogger sets the base logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithChannel tags the session with an export channel name.
func WithChannel(name string) Option {
	return func(s *Session) { s.channel = name }
}

// WithClock replaces the wall clock used for pacing and the flush delay.
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithImageLoader replaces the file/PDF loader.
func WithImageLoader(l ImageLoader) Option {
	return func(s *Session) { s.images = l }
}

// WithDecoder replaces the ffmpeg audio decoder.
func WithDecoder(d audio.Decoder) Option {
	return func(s *Session) { s.decoder = d }
}

// WithEncoder replaces the ffmpeg encoder factory.
func WithEncoder(f EncoderFactory) Option {
	return func(s *Session) { s.newEncoder = f }
}

// WithDetector replaces the configured focus detector. nil disables focus
// detection.
func WithDetector(d analyzer.Detector) Option {
	return func(s *Session) {
		s.detector = d
		s.detectorSet = true
	}
}

// FFmpegEncoderFactory builds an ffmpeg encoder trying the configured codec
// first, "auto" resolving to the best H.264 encoder of the host, then the
// fallbacks.
func FFmpegEncoderFactory(cfg *config.Config, logger zerolog.Logger) video.Encoder {
	return video.NewFFmpegEncoder(cfg.Video.FFmpegPath, Codecs(cfg), cfg.Video.Quality, cfg.Video.AudioBitrate, logger)
}

// Codecs is the ordered codec list for cfg.
func Codecs(cfg *config.Config) []string {
	primary := cfg.Video.Encoder
	if primary == "" || primary == "auto" {
		primary = system.GetBestH264Encoder(cfg.Video.FFmpegPath)
	}
	return append([]string{primary}, cfg.Video.Fallbacks...)
}

func defaultImageLoader(cfg *config.Config) ImageLoader {
	return source.NewLoader(cfg.DPI)
}
