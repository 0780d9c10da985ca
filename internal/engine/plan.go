package engine

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/scenecast/internal/config"
	"github.com/ivlev/scenecast/internal/motion"
	"github.com/ivlev/scenecast/internal/scene"
	"github.com/ivlev/scenecast/internal/timeline"
)

// PlanDump is the computed timeline of a render, for inspection.
type PlanDump struct {
	Version         string      `yaml:"version"`
	Width           int         `yaml:"width"`
	Height          int         `yaml:"height"`
	FPS             int         `yaml:"fps"`
	GridSeconds     float64     `yaml:"grid_seconds"`
	TotalFrames     int         `yaml:"total_frames"`
	DurationSeconds float64     `yaml:"duration_seconds"`
	Scenes          []ScenePlan `yaml:"scenes"`
}

// ScenePlan is one scene of a PlanDump.
type ScenePlan struct {
	ID             string            `yaml:"id"`
	StartFrame     int               `yaml:"start_frame"`
	DurationFrames int               `yaml:"duration_frames"`
	StartSeconds   float64           `yaml:"start_seconds"`
	Segments       int               `yaml:"segments"`
	Mood           string            `yaml:"mood,omitempty"`
	Image          string            `yaml:"image,omitempty"`
	Subtitles      []string          `yaml:"subtitles"`
	Camera         []motion.Keyframe `yaml:"camera"`
}

func describePlan(cfg *config.Config, plan *timeline.Plan, keyframes [][]motion.Keyframe, scenes []scene.Scene) *PlanDump {
	dump := &PlanDump{
		Version:         "1.0",
		Width:           cfg.Width,
		Height:          cfg.Height,
		FPS:             plan.Grid.FPS,
		GridSeconds:     plan.Grid.UnitSeconds,
		TotalFrames:     plan.TotalFrames,
		DurationSeconds: plan.DurationSeconds(),
		Scenes:          make([]ScenePlan, 0, len(plan.Timings)),
	}
	for i, t := range plan.Timings {
		sp := ScenePlan{
			ID:             t.SceneID,
			StartFrame:     t.StartFrame,
			DurationFrames: t.DurationFrames,
			StartSeconds:   t.StartSeconds,
			Segments:       t.SegmentCount,
			Subtitles:      t.Subtitles,
		}
		if i < len(scenes) {
			sp.Mood = scenes[i].Mood
			sp.Image = scenes[i].ImageRef
		}
		if i < len(keyframes) {
			sp.Camera = keyframes[i]
		}
		dump.Scenes = append(dump.Scenes, sp)
	}
	return dump
}

// WritePlan writes a plan dump to a YAML file.
func WritePlan(dump *PlanDump, path string) error {
	data, err := yaml.Marshal(dump)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadPlan reads a plan dump from a YAML file.
func ReadPlan(path string) (*PlanDump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var dump PlanDump
	if err := yaml.Unmarshal(data, &dump); err != nil {
		return nil, err
	}
	return &dump, nil
}
