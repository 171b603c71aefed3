package script_test

import (
	"strings"
	"testing"

	"songreel/internal/script"
)

func sampleScript() *script.Script {
	return &script.Script{
		Metadata: script.Metadata{Title: "Midnight Drive", Artist: "Yona", Mood: "dreamy", Duration: 30},
		Scenes: []script.Scene{
			{StartTime: 10, EndTime: 18, Description: "Yona walking through a neon city", Prompt: "anime girl walking, neon city"},
			{StartTime: 0, EndTime: 10, Description: "Yona singing on a rooftop", Prompt: "anime girl singing, rooftop at night"},
			{StartTime: 18, EndTime: 30, Description: "Yona dancing on stage", Prompt: "anime girl dancing, concert stage"},
		},
	}
}

func TestValidateAcceptsWellFormedScript(t *testing.T) {
	if err := sampleScript().Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestValidateRejectsInvertedTimes(t *testing.T) {
	s := sampleScript()
	s.Scenes[1].EndTime = s.Scenes[1].StartTime
	err := s.Validate()
	if err == nil {
		t.Fatal("expected validation error for zero-length scene")
	}
	if !strings.Contains(err.Error(), "end_time") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsEmptyScenes(t *testing.T) {
	s := sampleScript()
	s.Scenes = nil
	if err := s.Validate(); err == nil {
		t.Fatal("expected validation error for empty scene list")
	}
}

func TestSortedScenesOrdersByStartTime(t *testing.T) {
	s := sampleScript()
	sorted := s.SortedScenes()
	for i := 1; i < len(sorted); i++ {
		if sorted[i].StartTime < sorted[i-1].StartTime {
			t.Fatalf("scenes not sorted at index %d: %#v", i, sorted)
		}
	}
	// The original order is preserved.
	if s.Scenes[0].StartTime != 10 {
		t.Fatal("SortedScenes must not mutate the script")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := sampleScript()
	raw, err := s.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := script.Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Metadata.Title != s.Metadata.Title || len(decoded.Scenes) != len(s.Scenes) {
		t.Fatalf("round trip mismatch: %#v", decoded)
	}
}

func TestDecodeRejectsInvalidPayload(t *testing.T) {
	if _, err := script.Decode(`{"metadata":{},"scenes":[]}`); err == nil {
		t.Fatal("expected decode validation failure")
	}
	if _, err := script.Decode(`not json`); err == nil {
		t.Fatal("expected decode parse failure")
	}
}
