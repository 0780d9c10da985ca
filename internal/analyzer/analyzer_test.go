package analyzer

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// square draws a white square on black, like a text block on a dark slide.
func square(w, h int, r image.Rectangle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.Black, image.Point{}, draw.Src)
	draw.Draw(img, r, image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

func TestContrastDetector(t *testing.T) {
	img := square(200, 200, image.Rect(50, 50, 150, 150))

	blocks, err := NewContrastDetector().Detect(img)
	require.NoError(t, err)
	require.NotEmpty(t, blocks)

	b := blocks[0]
	assert.GreaterOrEqual(t, b.Rect.Dx(), 90)
	assert.GreaterOrEqual(t, b.Rect.Dy(), 90)
}

func TestContrastDetectorFlatImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	blocks, err := NewContrastDetector().Detect(img)
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestFocusOnDownscaledImage(t *testing.T) {
	// block in the right half, image wider than the analysis width
	img := square(1024, 512, image.Rect(700, 200, 900, 320))

	x, y, ok := Focus(NewContrastDetector(), img)
	require.True(t, ok)
	assert.InDelta(t, 800.0/1024-0.5, x, 0.03)
	assert.InDelta(t, 260.0/512-0.5, y, 0.03)
}

func TestFocusWithoutDetector(t *testing.T) {
	_, _, ok := Focus(nil, square(10, 10, image.Rect(0, 0, 5, 5)))
	assert.False(t, ok)
}

func TestNewDetector(t *testing.T) {
	tests := []struct {
		variant string
		wantNil bool
		wantErr bool
	}{
		{"contrast", false, false},
		{"", false, false},
		{"none", true, false},
		{"ocr", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			d, err := NewDetector(tt.variant)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantNil, d == nil)
		})
	}
}
