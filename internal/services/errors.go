package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrScriptGeneration = errors.New("script generation error")
	ErrVideoGeneration  = errors.New("video generation error")
	ErrNoClipsProduced  = errors.New("no clips produced")
	ErrStitching        = errors.New("stitching error")
	ErrUpload           = errors.New("upload error")
	ErrTimeout          = errors.New("timeout")
	ErrValidation       = errors.New("validation error")
	ErrConfiguration    = errors.New("configuration error")
	ErrTransient        = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// SceneRecoverable reports whether a stage error may be absorbed at scene
// scope. Only video generation failures are recoverable; every other kind
// aborts the work item.
func SceneRecoverable(err error) bool {
	return errors.Is(err, ErrVideoGeneration)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
