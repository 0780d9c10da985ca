package motion

import "math"

// Path is a canonical camera move. Every path starts and ends at neutral
// offsets so scenes can cut or cross-fade cleanly.
type Path struct {
	Name      string
	Keyframes []Keyframe
}

var repertoire = []Path{
	{Name: "push-in", Keyframes: []Keyframe{
		{Scale: 1.0}, {Scale: 1.08}, {Scale: 1.16},
	}},
	{Name: "hold-pan-hold", Keyframes: []Keyframe{
		{Scale: 1.15}, {Scale: 1.15, OffsetX: -6, OffsetY: -2}, {Scale: 1.15, OffsetX: 6, OffsetY: 2}, {Scale: 1.15},
	}},
	{Name: "pull-out", Keyframes: []Keyframe{
		{Scale: 1.2}, {Scale: 1.1}, {Scale: 1.0},
	}},
	{Name: "drift", Keyframes: []Keyframe{
		{Scale: 1.1}, {Scale: 1.12, OffsetX: 4, OffsetY: -3}, {Scale: 1.12, OffsetX: -4, OffsetY: 3}, {Scale: 1.1},
	}},
}

// Repertoire returns the built-in paths in rotation order.
func Repertoire() []Path {
	out := make([]Path, len(repertoire))
	for i, p := range repertoire {
		out[i] = Path{Name: p.Name, Keyframes: append([]Keyframe(nil), p.Keyframes...)}
	}
	return out
}

// PathByName looks up a built-in path.
func PathByName(name string) (Path, bool) {
	for _, p := range Repertoire() {
		if p.Name == name {
			return p, true
		}
	}
	return Path{}, false
}

// Fit resamples a path uniformly to segments+1 keyframes.
func Fit(p Path, segments int) []Keyframe {
	if segments < 1 {
		segments = 1
	}
	src := p.Keyframes
	if len(src) == 0 {
		src = []Keyframe{Neutral}
	}

	out := make([]Keyframe, segments+1)
	if len(src) == 1 {
		for i := range out {
			out[i] = src[0]
		}
		return out
	}
	if len(src) == segments+1 {
		copy(out, src)
		return out
	}

	span := float64(len(src) - 1)
	for i := range out {
		u := float64(i) / float64(segments) * span
		j := int(math.Floor(u))
		if j >= len(src)-1 {
			out[i] = src[len(src)-1]
			continue
		}
		f := u - float64(j)
		a, b := src[j], src[j+1]
		out[i] = Keyframe{
			Scale:   lerp(a.Scale, b.Scale, f),
			OffsetX: lerp(a.OffsetX, b.OffsetX, f),
			OffsetY: lerp(a.OffsetY, b.OffsetY, f),
		}
	}
	return out
}

// Clamp keeps a keyframe inside the range where the cover-fit image still
// fills the frame: scale at least 1 and |offset| at most 50·(scale-1) percent.
func Clamp(k Keyframe, maxScale float64) Keyframe {
	if maxScale < 1 {
		maxScale = 1
	}
	if math.IsNaN(k.Scale) || k.Scale < 1 {
		k.Scale = 1
	}
	if k.Scale > maxScale {
		k.Scale = maxScale
	}
	bound := 50 * (k.Scale - 1)
	k.OffsetX = clampAbs(k.OffsetX, bound)
	k.OffsetY = clampAbs(k.OffsetY, bound)
	return k
}

func clampAbs(v, bound float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-bound, math.Min(bound, v))
}
