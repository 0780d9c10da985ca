package motion

import (
	"image"
	"strings"

	"github.com/ivlev/scenecast/internal/analyzer"
)

// focusWeight is how far interior keyframes lean toward a detected focus
// region, as a fraction of the available pan range.
const focusWeight = 0.6

var moodPaths = map[string]string{
	"calm":       "drift",
	"peaceful":   "drift",
	"dreamy":     "drift",
	"tense":      "push-in",
	"dramatic":   "push-in",
	"action":     "push-in",
	"sad":        "pull-out",
	"melancholy": "pull-out",
	"ending":     "pull-out",
	"curious":    "hold-pan-hold",
	"wonder":     "hold-pan-hold",
}

// Director picks the camera move for each scene.
type Director struct {
	MaxScale float64
	// Detector, when set, biases pans toward the image's region of interest.
	Detector analyzer.Detector
}

// NewDirector creates a Director with the given zoom limit.
func NewDirector(maxScale float64, det analyzer.Detector) *Director {
	return &Director{MaxScale: maxScale, Detector: det}
}

// PathFor chooses a path by mood tag, falling back to rotating through the
// repertoire by scene index.
func (d *Director) PathFor(sceneIndex int, mood string) Path {
	if name, ok := moodPaths[strings.ToLower(strings.TrimSpace(mood))]; ok {
		if p, ok := PathByName(name); ok {
			return p
		}
	}
	paths := Repertoire()
	if sceneIndex < 0 {
		sceneIndex = -sceneIndex
	}
	return paths[sceneIndex%len(paths)]
}

// Plan returns segments+1 keyframes for a scene. It is deterministic for a
// given index, mood and image.
func (d *Director) Plan(sceneIndex int, mood string, segments int, img image.Image) []Keyframe {
	keyframes := Fit(d.PathFor(sceneIndex, mood), segments)

	if fx, fy, ok := analyzer.Focus(d.Detector, img); ok && len(keyframes) > 2 {
		for i := 1; i < len(keyframes)-1; i++ {
			k := keyframes[i]
			bound := 50 * (k.Scale - 1)
			// shifting the image against the focus direction brings the focus to the center
			k.OffsetX = lerp(k.OffsetX, -2*fx*bound, focusWeight)
			k.OffsetY = lerp(k.OffsetY, -2*fy*bound, focusWeight)
			keyframes[i] = k
		}
	}

	for i, k := range keyframes {
		keyframes[i] = Clamp(k, d.MaxScale)
	}
	return keyframes
}
