package engine

import "errors"

var (
	// ErrNoScenes is returned for an empty scene list.
	ErrNoScenes = errors.New("no scenes to render")
	// ErrNoFrames is returned when no scene has a positive duration.
	ErrNoFrames = errors.New("timeline has no frames")
	// ErrCancelled marks a render stopped by Cancel or its context.
	ErrCancelled = errors.New("render cancelled")
	// ErrSessionUsed is returned when Run is called twice on one session.
	ErrSessionUsed = errors.New("session already ran")
)
