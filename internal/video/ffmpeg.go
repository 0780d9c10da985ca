package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

// ProbeFunc checks that a codec can actually encode a w×h stream.
type ProbeFunc func(ctx context.Context, ffmpegPath, codec string, w, h int) error

// FFmpegEncoder pipes raw RGBA frames into ffmpeg's stdin.
type FFmpegEncoder struct {
	FFmpegPath   string
	Codecs       []string
	Quality      int
	AudioBitrate string
	Probe        ProbeFunc

	logger zerolog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stderr  syncBuffer
	tmpDir  string
	outPath string
	codec   string
	stream  Stream
	frames  int
	closed  bool
}

// NewFFmpegEncoder creates an encoder trying codecs in order.
func NewFFmpegEncoder(ffmpegPath string, codecs []string, quality int, audioBitrate string, logger zerolog.Logger) *FFmpegEncoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if audioBitrate == "" {
		audioBitrate = "192k"
	}
	return &FFmpegEncoder{
		FFmpegPath:   ffmpegPath,
		Codecs:       dedupe(codecs),
		Quality:      quality,
		AudioBitrate: audioBitrate,
		Probe:        probeCodec,
		logger:       logger.With().Str("component", "encoder").Logger(),
	}
}

// SelectCodec returns the first codec that passes the probe.
func (e *FFmpegEncoder) SelectCodec(ctx context.Context, w, h int) (string, error) {
	var errs []error
	for _, codec := range e.Codecs {
		err := e.Probe(ctx, e.FFmpegPath, codec, w, h)
		if err == nil {
			return codec, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		e.logger.Warn().Err(err).Str("codec", codec).Msg("codec unavailable, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", codec, err))
	}
	return "", fmt.Errorf("%w (tried %v): %v", ErrNoEncoder, e.Codecs, errs)
}

// Begin picks a codec and starts ffmpeg.
func (e *FFmpegEncoder) Begin(ctx context.Context, s Stream) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd != nil {
		return fmt.Errorf("encoder already started")
	}
	codec, err := e.SelectCodec(ctx, s.Width, s.Height)
	if err != nil {
		return err
	}

	e.tmpDir, err = os.MkdirTemp("", "scenecast_")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	e.outPath = filepath.Join(e.tmpDir, "out.mp4")

	audioPath := ""
	if s.Audio != nil && s.Audio.Frames() > 0 {
		audioPath = filepath.Join(e.tmpDir, "audio.pcm")
		if err := writePCM(audioPath, s); err != nil {
			e.cleanup()
			return err
		}
	}

	args := e.buildArgs(s, codec, audioPath)
	e.logger.Debug().Strs("args", args).Msg("starting ffmpeg")

	cmd := exec.CommandContext(ctx, e.FFmpegPath, args...)
	e.stderr.Reset()
	cmd.Stderr = &e.stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		e.cleanup()
		return fmt.Errorf("stdin pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		e.cleanup()
		return fmt.Errorf("%w: ffmpeg start error: %v", ErrNoEncoder, err)
	}

	e.cmd, e.stdin, e.codec, e.stream = cmd, stdin, codec, s
	e.logger.Info().Str("codec", codec).Int("width", s.Width).Int("height", s.Height).Int("fps", s.FPS).Bool("audio", audioPath != "").Msg("encoder started")
	return nil
}

func writePCM(path string, s Stream) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create audio track: %w", err)
	}
	if _, err := s.Audio.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write audio track: %w", err)
	}
	return f.Close()
}

func (e *FFmpegEncoder) buildArgs(s Stream, codec, audioPath string) []string {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", s.Width, s.Height),
		"-framerate", strconv.Itoa(s.FPS),
		"-i", "-",
	}
	if audioPath != "" {
		args = append(args,
			"-f", "s16le",
			"-ar", strconv.Itoa(s.Audio.SampleRate),
			"-ac", strconv.Itoa(s.Audio.Channels),
			"-i", audioPath,
			"-map", "0:v", "-map", "1:a",
			"-c:a", "aac", "-b:a", e.AudioBitrate,
		)
	}
	args = append(args, "-c:v", codec, "-pix_fmt", "yuv420p")
	args = append(args, qualityArgs(codec, e.Quality)...)
	args = append(args, "-r", strconv.Itoa(s.FPS), "-movflags", "+faststart", e.outPath)
	return args
}

// qualityArgs maps one quality knob onto each encoder's rate control.
func qualityArgs(codec string, quality int) []string {
	switch codec {
	case "h264_videotoolbox":
		if quality <= 0 {
			quality = 60
		}
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		if quality <= 0 {
			quality = 23
		}
		return []string{"-cq", strconv.Itoa(quality)}
	case "libx264":
		if quality <= 0 {
			quality = 23
		}
		return []string{"-crf", strconv.Itoa(quality), "-preset", "medium"}
	default:
		if quality <= 0 {
			quality = 40
		}
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	}
}

// WriteFrame sends one frame. Frames must match the stream size.
func (e *FFmpegEncoder) WriteFrame(frame *image.RGBA) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stdin == nil || e.closed {
		return fmt.Errorf("encoder not running")
	}
	if err := writeRawRGBA(e.stdin, frame); err != nil {
		return fmt.Errorf("write frame %d: %w, output: %s", e.frames, err, e.stderr.String())
	}
	e.frames++
	return nil
}

func writeRawRGBA(w io.Writer, img *image.RGBA) error {
	b := img.Bounds()
	if img.Stride != b.Dx()*4 || b.Min != (image.Point{}) {
		packed := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(packed, packed.Bounds(), img, b.Min, draw.Src)
		img = packed
	}
	_, err := w.Write(img.Pix)
	return err
}

// End closes the input, waits for ffmpeg and returns the container bytes.
func (e *FFmpegEncoder) End() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd == nil || e.closed {
		return nil, fmt.Errorf("encoder not running")
	}
	e.closed = true
	defer e.cleanup()

	e.stdin.Close()
	if err := e.cmd.Wait(); err != nil {
		return nil, fmt.Errorf("ffmpeg wait error: %w, output: %s", err, e.stderr.String())
	}
	data, err := os.ReadFile(e.outPath)
	if err != nil {
		return nil, fmt.Errorf("read encoded video: %w", err)
	}
	e.logger.Info().Int("frames", e.frames).Int("bytes", len(data)).Msg("encoder finished")
	return data, nil
}

// Abort kills ffmpeg and removes its files.
func (e *FFmpegEncoder) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	if e.cmd != nil {
		e.stdin.Close()
		if e.cmd.Process != nil {
			_ = e.cmd.Process.Kill()
		}
		_ = e.cmd.Wait()
		e.logger.Debug().Int("frames", e.frames).Msg("encoder aborted")
	}
	e.cleanup()
}

// Codec is the codec selected by Begin.
func (e *FFmpegEncoder) Codec() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.codec
}

// Frames is the number of frames written so far.
func (e *FFmpegEncoder) Frames() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

func (e *FFmpegEncoder) cleanup() {
	if e.tmpDir != "" {
		os.RemoveAll(e.tmpDir)
		e.tmpDir = ""
	}
}

// probeCodec encodes a single black frame to the null muxer.
func probeCodec(ctx context.Context, ffmpegPath, codec string, w, h int) error {
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", fmt.Sprintf("color=c=black:s=%dx%d:d=0.1", w, h),
		"-frames:v", "1",
		"-c:v", codec, "-pix_fmt", "yuv420p",
		"-f", "null", "-",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("probe %s: %w, output: %s", codec, err, bytes.TrimSpace(out))
	}
	return nil
}

// syncBuffer collects ffmpeg's stderr while frames are still being written.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

func dedupe(codecs []string) []string {
	seen := make(map[string]bool, len(codecs))
	out := make([]string, 0, len(codecs))
	for _, c := range codecs {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
