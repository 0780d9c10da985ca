package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/scenecast/internal/system"
)

// Result is the outcome of one render. Run always returns one.
type Result struct {
	Success         bool
	Cancelled       bool
	Video           []byte
	DurationSeconds float64
	SceneCount      int
	TotalFrames     int
	Codec           string
	Err             error
	Stats           Stats
	Plan            *PlanDump
}

// Message is a user-facing summary of the outcome.
func (r *Result) Message() string {
	switch {
	case r.Success:
		return fmt.Sprintf("rendered %d scenes, %.1fs", r.SceneCount, r.DurationSeconds)
	case r.Cancelled:
		return "render cancelled"
	case errors.Is(r.Err, ErrNoScenes):
		return "add at least one scene before exporting"
	case errors.Is(r.Err, ErrNoFrames):
		return "no scene has a duration to render"
	case r.Err != nil:
		return "render failed: " + r.Err.Error()
	}
	return "render failed"
}

// Release drops the encoded bytes.
func (r *Result) Release() {
	if r != nil {
		r.Video = nil
	}
}

// Stats are the timings of a render.
type Stats struct {
	Prepare      time.Duration
	Render       time.Duration
	Finalize     time.Duration
	Total        time.Duration
	Frames       int
	EffectiveFPS float64
	Host         *system.HostStats
}

// Report formats the stats as a performance report.
func (s Stats) Report(build string) string {
	var b strings.Builder
	b.WriteString("--- [PERFORMANCE REPORT] ---\n")
	fmt.Fprintf(&b, "Build: %s\n", build)
	fmt.Fprintf(&b, "Total Time: %.2fs\n", s.Total.Seconds())
	fmt.Fprintf(&b, "Preparation: %.2fs\n", s.Prepare.Seconds())
	fmt.Fprintf(&b, "Rendering: %.2fs\n", s.Render.Seconds())
	fmt.Fprintf(&b, "Finalize: %.2fs\n", s.Finalize.Seconds())
	fmt.Fprintf(&b, "Frames: %d\n", s.Frames)
	fmt.Fprintf(&b, "Effective FPS: %.2f\n", s.EffectiveFPS)
	if h := s.Host; h != nil {
		fmt.Fprintf(&b, "Host: %s %s, %d CPUs (%s)\n", h.OS, h.Platform, h.LogicalCPUs, h.CPUModel)
		fmt.Fprintf(&b, "Memory: %s available of %s, process RSS %s\n", system.MiB(h.AvailMemory), system.MiB(h.TotalMemory), system.MiB(h.ProcessRSS))
	}
	b.WriteString("----------------------------\n")
	return b.String()
}

// AppendBenchmark appends a one-line summary to the log at path.
func (s Stats) AppendBenchmark(path, build, input string, scenes int) error {
	line := fmt.Sprintf("[%s] Build: %s | Input: %s | Scenes: %d | Frames: %d | Total: %.2fs | Render: %.2fs | FPS: %.2f\n",
		time.Now().Format("2006-01-02 15:04:05"),
		build,
		filepath.Base(input),
		scenes,
		s.Frames,
		s.Total.Seconds(),
		s.Render.Seconds(),
		s.EffectiveFPS,
	)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Download writes encoded video bytes to filename, adding .mp4 when the name
// has no extension.
func Download(data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("no video data to write")
	}
	if filepath.Ext(filename) == "" {
		filename += ".mp4"
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", err
	}
	return filename, nil
}
