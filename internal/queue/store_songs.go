package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AddSong inserts a new song awaiting a music video. Only Title, Artist, and
// AudioURL are required; the remaining fields are optional generation hints.
func (s *Store) AddSong(ctx context.Context, song Song) (*Song, error) {
	ctx = ensureContext(ctx)
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO songs (title, artist, audio_url, genre, mood, style, description,
                            negative_prompt, reference_image, duration_seconds,
                            created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		song.Title,
		song.Artist,
		song.AudioURL,
		nullableString(song.Genre),
		nullableString(song.Mood),
		nullableString(song.Style),
		nullableString(song.Description),
		nullableString(song.NegativePrompt),
		nullableString(song.ReferenceImage),
		song.DurationSeconds,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert song: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetSong(ctx, id)
}

// GetSong fetches a song by identifier.
func (s *Store) GetSong(ctx context.Context, id int64) (*Song, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+songColumns+` FROM songs WHERE id = ?`, id)
	song, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrSongNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get song: %w", err)
	}
	return song, nil
}

// ListSongs returns all songs ordered by insertion.
func (s *Store) ListSongs(ctx context.Context) ([]*Song, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT `+songColumns+` FROM songs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	defer rows.Close()

	var songs []*Song
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate songs: %w", err)
	}
	return songs, nil
}

// PendingSongs returns up to limit songs that still need a video: no stored
// video URL and no non-terminal processing record.
func (s *Store) PendingSongs(ctx context.Context, limit int) ([]*Song, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+songColumns+` FROM songs
         WHERE (video_url IS NULL OR video_url = '')
           AND NOT EXISTS (
               SELECT 1 FROM processing_records
               WHERE processing_records.song_id = songs.id
                 AND processing_records.status IN (?, ?, ?)
           )
         ORDER BY id
         LIMIT ?`,
		StatusPending,
		StatusProcessing,
		StatusRetry,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending songs: %w", err)
	}
	defer rows.Close()

	var songs []*Song
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending song: %w", err)
		}
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending songs: %w", err)
	}
	return songs, nil
}

// SetSongVideoURL stores the finished video location on the song.
func (s *Store) SetSongVideoURL(ctx context.Context, id int64, videoURL string) error {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE songs SET video_url = ?, updated_at = ? WHERE id = ?`,
		videoURL,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update song video url: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", ErrSongNotFound, id)
	}
	return nil
}
