package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateRecord opens a new pending processing record for a song. The insert
// is conditional on no non-terminal record existing for the same song, so two
// concurrent pollers cannot both start an attempt.
func (s *Store) CreateRecord(ctx context.Context, songID int64) (*ProcessingRecord, error) {
	ctx = ensureContext(ctx)
	id := uuid.NewString()
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO processing_records (id, song_id, status, created_at, updated_at)
         SELECT ?, ?, ?, ?, ?
         WHERE NOT EXISTS (
             SELECT 1 FROM processing_records
             WHERE song_id = ? AND status IN (?, ?, ?)
         )`,
		id,
		songID,
		StatusPending,
		timestamp,
		timestamp,
		songID,
		StatusPending,
		StatusProcessing,
		StatusRetry,
	)
	if err != nil {
		return nil, fmt.Errorf("insert processing record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: song %d", ErrDuplicateActiveRecord, songID)
	}
	return s.GetRecord(ctx, id)
}

// GetRecord fetches a processing record by identifier.
func (s *Store) GetRecord(ctx context.Context, id string) (*ProcessingRecord, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM processing_records WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get processing record: %w", err)
	}
	return record, nil
}

// RecordsForSong returns every processing record for a song, newest first.
func (s *Store) RecordsForSong(ctx context.Context, songID int64) ([]*ProcessingRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+recordColumns+` FROM processing_records WHERE song_id = ? ORDER BY created_at DESC`,
		songID,
	)
	if err != nil {
		return nil, fmt.Errorf("query records for song: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListRecords returns records filtered by status; with no statuses it returns
// every record, oldest first.
func (s *Store) ListRecords(ctx context.Context, statuses ...Status) ([]*ProcessingRecord, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + recordColumns + ` FROM processing_records`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func collectRecords(rows *sql.Rows) ([]*ProcessingRecord, error) {
	var records []*ProcessingRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// TransitionUpdate is a partial, cumulative update applied to a processing
// record. Empty fields are left untouched, never cleared.
type TransitionUpdate struct {
	Status       Status
	Stage        Stage
	ErrorMessage string
	ScriptJSON   string
	SceneResults string
	VideoPath    string
	ResultURL    string
}

// Transition applies a cumulative update to a record. Entering processing for
// the first time stamps processing_started_at exactly once; supplying a result
// URL stamps completed_at. Returns ErrRecordNotFound for unknown ids.
func (s *Store) Transition(ctx context.Context, id string, update TransitionUpdate) (*ProcessingRecord, error) {
	ctx = ensureContext(ctx)
	if update.Status != "" && !update.Status.Valid() {
		return nil, fmt.Errorf("invalid status %q", update.Status)
	}
	if update.Stage != "" && !update.Stage.Valid() {
		return nil, fmt.Errorf("invalid stage %q", update.Stage)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	sets := []string{"updated_at = ?"}
	args := []any{timestamp}

	if update.Status != "" {
		sets = append(sets, "status = ?")
		args = append(args, update.Status)
		if update.Status == StatusProcessing {
			sets = append(sets, "processing_started_at = COALESCE(processing_started_at, ?)")
			args = append(args, timestamp)
		}
	}
	if update.Stage != "" {
		sets = append(sets, "stage = ?")
		args = append(args, update.Stage)
	}
	if update.ErrorMessage != "" {
		sets = append(sets, "error_message = ?")
		args = append(args, update.ErrorMessage)
	}
	if update.ScriptJSON != "" {
		sets = append(sets, "script_json = ?")
		args = append(args, update.ScriptJSON)
	}
	if update.SceneResults != "" {
		sets = append(sets, "scene_results = ?")
		args = append(args, update.SceneResults)
	}
	if update.VideoPath != "" {
		sets = append(sets, "video_path = ?")
		args = append(args, update.VideoPath)
	}
	if update.ResultURL != "" {
		sets = append(sets, "video_url = ?", "completed_at = COALESCE(completed_at, ?)")
		args = append(args, update.ResultURL, timestamp)
	}

	args = append(args, id)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE processing_records SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("transition record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return s.GetRecord(ctx, id)
}

// RetryFailed moves failed records back to retry for reprocessing. With no ids
// it retries every failed record.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	ctx = ensureContext(ctx)
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE processing_records SET status = ?, updated_at = ? WHERE status = ?`,
			StatusRetry,
			timestamp,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed records: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusRetry, timestamp, StatusFailed)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE processing_records SET status = ?, updated_at = ?
         WHERE status = ? AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("retry selected records: %w", err)
	}
	return res.RowsAffected()
}

// Clear deletes records in the given statuses; with no statuses it deletes
// only terminal records.
func (s *Store) Clear(ctx context.Context, statuses ...Status) (int64, error) {
	ctx = ensureContext(ctx)
	if len(statuses) == 0 {
		statuses = []Status{StatusCompleted, StatusFailed}
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, 0, len(statuses))
	for _, status := range statuses {
		args = append(args, status)
	}
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM processing_records WHERE status IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("clear records: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuckProcessing returns in-flight records to retry after a daemon
// restart so the next poll picks the songs up again.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE processing_records SET status = ?, updated_at = ? WHERE status IN (?, ?)`,
		StatusRetry,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusPending,
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck records: %w", err)
	}
	return res.RowsAffected()
}
