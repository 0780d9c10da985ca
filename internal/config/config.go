package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of a render.
type Config struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`

	// GridSeconds is the grid unit all segment, camera and subtitle timing is
	// quantized to.
	GridSeconds       float64 `yaml:"grid_seconds"`
	TransitionSeconds float64 `yaml:"transition_seconds"`

	// Pace is the speed of the reference clock relative to wall time.
	// 1 renders in real time, 0 disables pacing entirely.
	Pace       float64       `yaml:"pace"`
	FlushDelay time.Duration `yaml:"flush_delay"`

	Workers   int  `yaml:"workers"`
	DPI       int  `yaml:"dpi"`
	ShowStats bool `yaml:"show_stats"`

	Video    VideoConfig    `yaml:"video"`
	Audio    AudioConfig    `yaml:"audio"`
	Subtitle SubtitleConfig `yaml:"subtitle"`
	Motion   MotionConfig   `yaml:"motion"`
	Overlay  OverlayConfig  `yaml:"overlay"`

	BuildVersion string `yaml:"-"`
}

type VideoConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
	// Encoder is a codec name or "auto" for the best available H.264 encoder.
	Encoder   string   `yaml:"encoder"`
	Fallbacks []string `yaml:"fallbacks"`
	// Quality is 0 for the per-encoder default.
	Quality      int    `yaml:"quality"`
	AudioBitrate string `yaml:"audio_bitrate"`
}

type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
}

type SubtitleConfig struct {
	FontPath string `yaml:"font_path"`
	// FontScale is the font size as a fraction of frame height.
	FontScale    float64 `yaml:"font_scale"`
	MaxWidth     float64 `yaml:"max_width"`
	BoxOpacity   float64 `yaml:"box_opacity"`
	BottomMargin float64 `yaml:"bottom_margin"`
	FadeSeconds  float64 `yaml:"fade_seconds"`
	// CharsPerSegment switches the segmenter to a fixed target length with
	// rebalancing. 0 divides each narration evenly.
	CharsPerSegment int `yaml:"chars_per_segment"`
}

type MotionConfig struct {
	FocusDetection bool    `yaml:"focus_detection"`
	MaxScale       float64 `yaml:"max_scale"`
}

type OverlayConfig struct {
	QRURL     string  `yaml:"qr_url"`
	QRSize    int     `yaml:"qr_size"`
	QROpacity float64 `yaml:"qr_opacity"`
	// QRPosition is one of top-left, top-right, bottom-left, bottom-right.
	QRPosition string `yaml:"qr_position"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Width:             1280,
		Height:            720,
		FPS:               30,
		GridSeconds:       10,
		TransitionSeconds: 0.5,
		Pace:              1,
		FlushDelay:        100 * time.Millisecond,
		Workers:           4,
		DPI:               150,
		Video: VideoConfig{
			FFmpegPath:   "ffmpeg",
			FFprobePath:  "ffprobe",
			Encoder:      "auto",
			Fallbacks:    []string{"libx264", "libopenh264", "mpeg4"},
			AudioBitrate: "192k",
		},
		Audio: AudioConfig{
			SampleRate: 48000,
			Channels:   2,
		},
		Subtitle: SubtitleConfig{
			FontScale:    0.045,
			MaxWidth:     0.88,
			BoxOpacity:   0.6,
			BottomMargin: 0.06,
			FadeSeconds:  0.3,
		},
		Motion: MotionConfig{
			FocusDetection: true,
			MaxScale:       1.25,
		},
		Overlay: OverlayConfig{
			QRSize:     128,
			QROpacity:  0.85,
			QRPosition: "top-right",
		},
	}
}

// Load reads the YAML file at path on top of the defaults. An empty path
// searches the usual locations; a missing file is not an error. Environment
// overrides (including a .env file) are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	_ = godotenv.Load()
	cfg.applyEnv()

	return cfg, cfg.Validate()
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyPreset switches the frame size to a named aspect preset.
func (c *Config) ApplyPreset(preset string) error {
	switch preset {
	case "":
	case "16:9":
		c.Width, c.Height = 1280, 720
	case "9:16":
		c.Width, c.Height = 720, 1280
	case "4:5":
		c.Width, c.Height = 1080, 1350
	case "1:1":
		c.Width, c.Height = 1080, 1080
	default:
		return fmt.Errorf("unknown preset %q", preset)
	}
	return nil
}

// Validate rejects configurations the engine cannot render.
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", c.Width, c.Height)
	}
	if c.Width%2 != 0 || c.Height%2 != 0 {
		return fmt.Errorf("frame size %dx%d must be even for yuv420p", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("invalid fps %d", c.FPS)
	}
	if c.GridSeconds <= 0 {
		return fmt.Errorf("invalid grid unit %.3fs", c.GridSeconds)
	}
	if c.TransitionSeconds < 0 || c.Pace < 0 {
		return fmt.Errorf("transition and pace must not be negative")
	}
	if c.Audio.SampleRate <= 0 || c.Audio.Channels <= 0 {
		return fmt.Errorf("invalid audio format %dHz/%dch", c.Audio.SampleRate, c.Audio.Channels)
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Motion.MaxScale < 1 {
		c.Motion.MaxScale = 1
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SCENECAST_FFMPEG"); v != "" {
		c.Video.FFmpegPath = v
	}
	if v := os.Getenv("SCENECAST_FFPROBE"); v != "" {
		c.Video.FFprobePath = v
	}
	if v := os.Getenv("SCENECAST_ENCODER"); v != "" {
		c.Video.Encoder = v
	}
	if v := os.Getenv("SCENECAST_FONT"); v != "" {
		c.Subtitle.FontPath = v
	}
	if v := os.Getenv("SCENECAST_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv("SCENECAST_PACE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Pace = f
		}
	}
	if v := os.Getenv("SCENECAST_FALLBACKS"); v != "" {
		var list []string
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				list = append(list, name)
			}
		}
		c.Video.Fallbacks = list
	}
}

func findConfigFile() string {
	candidates := []string{
		"./scenecast.yaml",
		"./scenecast.yml",
		filepath.Join(os.Getenv("HOME"), ".scenecast", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
