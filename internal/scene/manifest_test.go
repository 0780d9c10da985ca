package scene

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `version: "1.0"
title: harbor
scenes:
  - id: dawn
    image: img/dawn.png
    text: The harbor woke before the sun did.
    mood: calm
  - image: img/ferry.jpg
    audio: audio/ferry.mp3
  - image: deck.pdf#2
    duration: 14
`

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0644))

	probe := func(p string) (float64, error) {
		assert.Equal(t, filepath.Join(dir, "audio", "ferry.mp3"), p)
		return 12.4, nil
	}

	scenes, err := LoadManifest(path, 10, probe)
	require.NoError(t, err)
	require.Len(t, scenes, 3)

	assert.Equal(t, "dawn", scenes[0].ID)
	assert.Equal(t, filepath.Join(dir, "img", "dawn.png"), scenes[0].ImageRef)
	assert.Equal(t, 10.0, scenes[0].DurationSeconds)
	assert.Equal(t, "calm", scenes[0].Mood)

	assert.Equal(t, "scene_2", scenes[1].ID)
	assert.Equal(t, 20.0, scenes[1].DurationSeconds, "12.4s of audio rounds up to two grid units")
	require.NotNil(t, scenes[1].Audio)
	assert.Equal(t, 12.4, scenes[1].Audio.DurationSeconds)

	assert.Equal(t, filepath.Join(dir, "deck.pdf#2"), scenes[2].ImageRef)
	assert.Equal(t, 20.0, scenes[2].DurationSeconds)
	assert.Equal(t, 3, scenes[2].Sequence)
}

func TestLoadManifestProbeFailureKeepsDefault(t *testing.T) {
	m := &Manifest{Scenes: []ManifestScene{{Image: "a.png", Audio: "a.wav"}}}
	scenes, err := m.Resolve("/base", 10, func(string) (float64, error) {
		return 0, errors.New("no ffprobe")
	})
	require.NoError(t, err)
	assert.Equal(t, 10.0, scenes[0].DurationSeconds)
	assert.Equal(t, "/base/a.wav", scenes[0].Audio.Path)
}

func TestManifestRejectsEmpty(t *testing.T) {
	_, err := (&Manifest{}).Resolve(".", 10, nil)
	assert.ErrorIs(t, err, ErrInvalidManifest)
}

func TestManifestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.yaml")
	m := &Manifest{Version: "1.0", Scenes: []ManifestScene{{ID: "a", Image: "a.png", Duration: 10}}}
	require.NoError(t, WriteManifest(m, path))

	got, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestRoundUpDuration(t *testing.T) {
	assert.Equal(t, 10.0, RoundUpDuration(0, 10))
	assert.Equal(t, 10.0, RoundUpDuration(10, 10))
	assert.Equal(t, 20.0, RoundUpDuration(10.5, 10))
	assert.Equal(t, 20.0, RoundUpDuration(12, 10))
}
