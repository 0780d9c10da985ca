// Package motion generates the Ken Burns camera for still scenes.
package motion

// Keyframe is a camera state. Scale 1 shows the cover-fit image as is;
// offsets are percentages of the frame size by which the image is shifted.
type Keyframe struct {
	Scale   float64 `yaml:"scale"`
	OffsetX float64 `yaml:"offset_x"`
	OffsetY float64 `yaml:"offset_y"`
}

// Neutral is the unzoomed, centered camera.
var Neutral = Keyframe{Scale: 1}

// CameraAt interpolates the camera inside a segment. keyframes holds one
// entry per segment boundary; frameInSegment runs from 0 to framesPerSegment.
func CameraAt(keyframes []Keyframe, segment, frameInSegment, framesPerSegment int) Keyframe {
	switch len(keyframes) {
	case 0:
		return Neutral
	case 1:
		return keyframes[0]
	}

	last := len(keyframes) - 1
	if segment < 0 {
		segment = 0
	}
	if segment >= last {
		return keyframes[last]
	}
	from, to := keyframes[segment], keyframes[segment+1]

	if framesPerSegment <= 0 || frameInSegment <= 0 {
		return from
	}
	if frameInSegment >= framesPerSegment {
		return to
	}

	t := easeInOutCubic(float64(frameInSegment) / float64(framesPerSegment))
	return Keyframe{
		Scale:   lerp(from.Scale, to.Scale, t),
		OffsetX: lerp(from.OffsetX, to.OffsetX, t),
		OffsetY: lerp(from.OffsetY, to.OffsetY, t),
	}
}

// lerp is exact at both ends.
func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	u := -2*t + 2
	return 1 - u*u*u/2
}
