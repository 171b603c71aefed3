package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status represents the lifecycle of a processing record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRetry      Status = "retry"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusRetry,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Valid reports whether the status is a known lifecycle value.
func (s Status) Valid() bool {
	_, ok := statusSet[s]
	return ok
}

// Terminal reports whether a record in this status is finished. Non-terminal
// records block the creation of a new record for the same song.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Stage identifies the pipeline stage a processing record is working through.
type Stage string

const (
	StageScriptGeneration Stage = "script_generation"
	StageVideoGeneration  Stage = "video_generation"
	StageVideoStitching   Stage = "video_stitching"
	StageUploading        Stage = "uploading"
)

var allStages = []Stage{
	StageScriptGeneration,
	StageVideoGeneration,
	StageVideoStitching,
	StageUploading,
}

var stageSet = func() map[Stage]struct{} {
	set := make(map[Stage]struct{}, len(allStages))
	for _, stage := range allStages {
		set[stage] = struct{}{}
	}
	return set
}()

// Valid reports whether the stage is a known pipeline stage.
func (s Stage) Valid() bool {
	_, ok := stageSet[s]
	return ok
}

// Song is a work item awaiting a music video.
type Song struct {
	ID       int64
	Title    string
	Artist   string
	AudioURL string

	// Optional generation hints forwarded to the script and video services.
	Genre           string
	Mood            string
	Style           string
	Description     string
	NegativePrompt  string
	ReferenceImage  string
	DurationSeconds float64

	VideoURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasVideo reports whether the song already carries a finished video URL.
func (s *Song) HasVideo() bool {
	return s != nil && s.VideoURL != ""
}

// ProcessingRecord is one pipeline attempt for a song. Fields accumulate as
// the attempt progresses and are never cleared, so a failed record still
// carries the script and stage it reached.
type ProcessingRecord struct {
	ID                  string
	SongID              int64
	Status              Status
	Stage               Stage
	ErrorMessage        string
	ScriptJSON          string
	SceneResults        string
	VideoPath           string
	VideoURL            string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ProcessingStartedAt *time.Time
	CompletedAt         *time.Time
}

// SceneResult is the outcome of one scene during video generation. The full
// set is stored as JSON on the record so a partial failure names the scenes
// that were lost, not just how many.
type SceneResult struct {
	SceneIndex int    `json:"scene_index"`
	ClipPath   string `json:"clip_path,omitempty"`
	Reused     bool   `json:"reused,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Failed reports whether the scene produced no clip.
func (r SceneResult) Failed() bool {
	return r.Error != ""
}

// EncodeSceneResults serializes scene outcomes for storage on a record.
func EncodeSceneResults(results []SceneResult) (string, error) {
	data, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("encode scene results: %w", err)
	}
	return string(data), nil
}

// DecodeSceneResults parses the scene outcomes stored on a record. An empty
// payload means the record never reached video generation.
func DecodeSceneResults(raw string) ([]SceneResult, error) {
	if raw == "" {
		return nil, nil
	}
	var results []SceneResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, fmt.Errorf("decode scene results: %w", err)
	}
	return results, nil
}

// HealthSummary describes aggregated record counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Retry      int
	Failed     int
	Completed  int
}
