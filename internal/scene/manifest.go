package scene

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidManifest is returned for manifests that cannot describe a render.
var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest is the on-disk description of a scene list.
type Manifest struct {
	Version string          `yaml:"version"`
	Title   string          `yaml:"title,omitempty"`
	Scenes  []ManifestScene `yaml:"scenes"`
}

// ManifestScene is one scene entry. Paths are relative to the manifest.
type ManifestScene struct {
	ID       string  `yaml:"id"`
	Image    string  `yaml:"image"`
	Text     string  `yaml:"text,omitempty"`
	Audio    string  `yaml:"audio,omitempty"`
	Duration float64 `yaml:"duration,omitempty"` // seconds, 0 derives from audio
	Mood     string  `yaml:"mood,omitempty"`
}

// DurationProbe returns the length of an audio file in seconds.
type DurationProbe func(path string) (float64, error)

// ReadManifest parses a manifest file without resolving it.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return &m, nil
}

// WriteManifest writes m as YAML.
func WriteManifest(m *Manifest, path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadManifest reads a manifest and turns it into scenes. Durations are
// rounded up to the grid unit; a missing duration comes from the audio length
// (via probe) or falls back to one grid unit.
func LoadManifest(path string, gridSeconds float64, probe DurationProbe) ([]Scene, error) {
	m, err := ReadManifest(path)
	if err != nil {
		return nil, err
	}
	return m.Resolve(filepath.Dir(path), gridSeconds, probe)
}

// Resolve converts manifest entries to scenes, resolving paths against baseDir.
func (m *Manifest) Resolve(baseDir string, gridSeconds float64, probe DurationProbe) ([]Scene, error) {
	if len(m.Scenes) == 0 {
		return nil, fmt.Errorf("%w: no scenes", ErrInvalidManifest)
	}
	if gridSeconds <= 0 {
		return nil, fmt.Errorf("%w: grid unit must be positive", ErrInvalidManifest)
	}

	scenes := make([]Scene, 0, len(m.Scenes))
	for i, ms := range m.Scenes {
		s := Scene{
			ID:       ms.ID,
			Sequence: i + 1,
			ImageRef: resolvePath(baseDir, ms.Image),
			Text:     strings.TrimSpace(ms.Text),
			Mood:     ms.Mood,
		}
		if s.ID == "" {
			s.ID = fmt.Sprintf("scene_%d", i+1)
		}

		duration := ms.Duration
		if ms.Audio != "" {
			s.Audio = &Audio{Path: resolvePath(baseDir, ms.Audio)}
			if probe != nil {
				if d, err := probe(s.Audio.Path); err == nil {
					s.Audio.DurationSeconds = d
					if duration <= 0 {
						duration = d
					}
				}
			}
		}
		if duration < 0 {
			return nil, fmt.Errorf("%w: scene %s has negative duration", ErrInvalidManifest, s.ID)
		}
		s.DurationSeconds = RoundUpDuration(duration, gridSeconds)

		scenes = append(scenes, s)
	}
	return scenes, nil
}

// RoundUpDuration rounds seconds up to a whole number of grid units, minimum one.
func RoundUpDuration(seconds, unit float64) float64 {
	units := math.Ceil(seconds/unit - 1e-9)
	if units < 1 {
		units = 1
	}
	return units * unit
}

// resolvePath joins a relative reference with baseDir. The optional "#page"
// suffix used for PDF pages is preserved.
func resolvePath(baseDir, ref string) string {
	if ref == "" || filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(baseDir, ref)
}
