// Package system probes the host: ffmpeg capabilities, resource limits and
// media durations.
package system

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// InitResourceLimits raises the open file limit; ffmpeg pipes and temp files
// add up during long renders.
func InitResourceLimits(logger zerolog.Logger) {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warn().Err(err).Msg("cannot read open file limit")
		return
	}

	want := uint64(2048)
	if rLimit.Cur >= want {
		return
	}
	rLimit.Cur = want
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warn().Err(err).Msg("cannot raise open file limit")
		return
	}
	logger.Debug().Uint64("limit", uint64(rLimit.Cur)).Msg("open file limit raised")
}

// FindLatest returns the most recently modified file in dir with one of the
// given extensions.
func FindLatest(dir string, exts ...string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !hasExt(f.Name(), exts) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no %s files in %s", strings.Join(exts, "/"), dir)
	}
	return latestFile, nil
}

// FindLatestManifest picks the newest scene manifest in dir.
func FindLatestManifest(dir string) (string, error) {
	return FindLatest(dir, ".yaml", ".yml")
}

func hasExt(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// GetAudioDuration asks ffprobe for the container duration in seconds.
func GetAudioDuration(ctx context.Context, ffprobePath, path string) (float64, error) {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, ffprobePath, "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w, output: %s", path, err, strings.TrimSpace(string(out)))
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: unexpected output %q", path, strings.TrimSpace(string(out)))
	}
	return duration, nil
}

var encoderCache sync.Map // ffmpeg path -> map[string]bool

// AvailableEncoders lists the encoders compiled into ffmpeg. The result is
// cached per binary.
func AvailableEncoders(ffmpegPath string) (map[string]bool, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if v, ok := encoderCache.Load(ffmpegPath); ok {
		return v.(map[string]bool), nil
	}

	out, err := exec.Command(ffmpegPath, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("list ffmpeg encoders: %w", err)
	}
	encoders := ParseEncoders(string(out))
	encoderCache.Store(ffmpegPath, encoders)
	return encoders, nil
}

// ParseEncoders reads the output of `ffmpeg -encoders`.
func ParseEncoders(out string) map[string]bool {
	encoders := make(map[string]bool)
	inList := false
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "------") {
			inList = true
			continue
		}
		if !inList {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			encoders[fields[1]] = true
		}
	}
	return encoders
}

// hardwareH264 is tried in order before falling back to software.
var hardwareH264 = []string{
	"h264_videotoolbox",
	"h264_nvenc",
}

// GetBestH264Encoder prefers a hardware H.264 encoder and falls back to
// libx264.
func GetBestH264Encoder(ffmpegPath string) string {
	encoders, err := AvailableEncoders(ffmpegPath)
	if err != nil {
		return "libx264"
	}
	for _, name := range hardwareH264 {
		if encoders[name] {
			return name
		}
	}
	return "libx264"
}
