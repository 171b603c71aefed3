// Package script models the scene-by-scene music video script produced by
// the script generation stage and consumed by every later stage.
package script

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Metadata carries song-level fields attached to a script.
type Metadata struct {
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Mood     string  `json:"mood"`
	BPM      float64 `json:"bpm,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// Scene is one shot of the video with its time window on the audio track.
type Scene struct {
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	Description string  `json:"description"`
	Prompt      string  `json:"prompt"`
	Transition  string  `json:"transition,omitempty"`
}

// Duration returns the scene's length on the audio timeline.
func (s Scene) Duration() time.Duration {
	return time.Duration((s.EndTime - s.StartTime) * float64(time.Second))
}

// Seconds returns the scene length in seconds.
func (s Scene) Seconds() float64 {
	return s.EndTime - s.StartTime
}

// Script is the full generated script for one song.
type Script struct {
	Metadata Metadata `json:"metadata"`
	Scenes   []Scene  `json:"scenes"`
}

// Validate checks the structural invariants the pipeline relies on.
func (s *Script) Validate() error {
	if s.Metadata.Title == "" {
		return fmt.Errorf("script metadata missing title")
	}
	if s.Metadata.Artist == "" {
		return fmt.Errorf("script metadata missing artist")
	}
	if len(s.Scenes) == 0 {
		return fmt.Errorf("script has no scenes")
	}
	for i, scene := range s.Scenes {
		if scene.EndTime <= scene.StartTime {
			return fmt.Errorf("scene %d: end_time %.2f must be after start_time %.2f", i, scene.EndTime, scene.StartTime)
		}
		if scene.Description == "" {
			return fmt.Errorf("scene %d: missing description", i)
		}
		if scene.Prompt == "" {
			return fmt.Errorf("scene %d: missing prompt", i)
		}
	}
	return nil
}

// SortedScenes returns the scenes ordered by start time without mutating the
// script. Stitching relies on this ordering.
func (s *Script) SortedScenes() []Scene {
	scenes := make([]Scene, len(s.Scenes))
	copy(scenes, s.Scenes)
	sort.SliceStable(scenes, func(i, j int) bool {
		return scenes[i].StartTime < scenes[j].StartTime
	})
	return scenes
}

// Encode serializes the script for persistence on a processing record.
func (s *Script) Encode() (string, error) {
	encoded, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode script: %w", err)
	}
	return string(encoded), nil
}

// Decode parses a persisted script and validates it.
func Decode(raw string) (*Script, error) {
	var s Script
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
