package queue

import (
	"database/sql"
	"errors"
	"time"
)

const songColumns = "id, title, artist, audio_url, genre, mood, style, description, negative_prompt, reference_image, duration_seconds, video_url, created_at, updated_at"

const recordColumns = "id, song_id, status, stage, error_message, script_json, scene_results, video_path, video_url, created_at, updated_at, processing_started_at, completed_at"

func scanSong(scanner interface{ Scan(dest ...any) error }) (*Song, error) {
	var (
		id             int64
		title          string
		artist         string
		audioURL       string
		genre          sql.NullString
		mood           sql.NullString
		style          sql.NullString
		description    sql.NullString
		negativePrompt sql.NullString
		referenceImage sql.NullString
		duration       float64
		videoURL       sql.NullString
		createdRaw     string
		updatedRaw     string
	)
	if err := scanner.Scan(
		&id,
		&title,
		&artist,
		&audioURL,
		&genre,
		&mood,
		&style,
		&description,
		&negativePrompt,
		&referenceImage,
		&duration,
		&videoURL,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	song := &Song{
		ID:              id,
		Title:           title,
		Artist:          artist,
		AudioURL:        audioURL,
		Genre:           genre.String,
		Mood:            mood.String,
		Style:           style.String,
		Description:     description.String,
		NegativePrompt:  negativePrompt.String,
		ReferenceImage:  referenceImage.String,
		DurationSeconds: duration,
		VideoURL:        videoURL.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		song.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		song.UpdatedAt = updated
	}
	return song, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*ProcessingRecord, error) {
	var (
		id           string
		songID       int64
		statusStr    string
		stage        sql.NullString
		errorMessage sql.NullString
		scriptJSON   sql.NullString
		sceneResults sql.NullString
		videoPath    sql.NullString
		videoURL     sql.NullString
		createdRaw   string
		updatedRaw   string
		startedRaw   sql.NullString
		completedRaw sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&songID,
		&statusStr,
		&stage,
		&errorMessage,
		&scriptJSON,
		&sceneResults,
		&videoPath,
		&videoURL,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	record := &ProcessingRecord{
		ID:           id,
		SongID:       songID,
		Status:       Status(statusStr),
		Stage:        Stage(stage.String),
		ErrorMessage: errorMessage.String,
		ScriptJSON:   scriptJSON.String,
		SceneResults: sceneResults.String,
		VideoPath:    videoPath.String,
		VideoURL:     videoURL.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		record.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			record.ProcessingStartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			record.CompletedAt = &completed
		}
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
