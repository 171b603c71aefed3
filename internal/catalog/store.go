package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"songreel/internal/config"
)

// ErrClipNotFound indicates a lookup referenced an unknown clip id.
var ErrClipNotFound = errors.New("catalog clip not found")

const clipColumns = "id, path, filename, filesize, character, action, setting, detail_tags, ai_description, manual_description, duration_seconds, usage_count, last_used_at, created_at"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS clip_catalog (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    filename TEXT NOT NULL,
    filesize INTEGER NOT NULL DEFAULT 0,
    character TEXT,
    action TEXT,
    setting TEXT,
    detail_tags TEXT,
    ai_description TEXT,
    manual_description TEXT,
    duration_seconds REAL,
    usage_count INTEGER NOT NULL DEFAULT 0,
    last_used_at TEXT,
    created_at TEXT NOT NULL
);
`

// Store manages the clip catalog backed by its own SQLite database so a
// broken catalog never takes the queue down with it.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the catalog database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "catalog.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Add inserts a clip, ignoring duplicates by path.
func (s *Store) Add(ctx context.Context, clip Clip) (*Clip, error) {
	tags, err := json.Marshal(clip.DetailTags)
	if err != nil {
		return nil, fmt.Errorf("marshal detail tags: %w", err)
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO clip_catalog (
            path, filename, filesize, character, action, setting, detail_tags,
            ai_description, manual_description, duration_seconds, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(path) DO NOTHING`,
		clip.Path,
		clip.Filename,
		clip.Filesize,
		nullable(clip.Character),
		nullable(clip.Action),
		nullable(clip.Setting),
		string(tags),
		nullable(clip.AIDescription),
		nullable(clip.ManualDescription),
		clip.DurationSeconds,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert clip: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return s.GetByPath(ctx, clip.Path)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(ctx, id)
}

// Get fetches a clip by identifier.
func (s *Store) Get(ctx context.Context, id int64) (*Clip, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clipColumns+` FROM clip_catalog WHERE id = ?`, id)
	clip, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrClipNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get clip: %w", err)
	}
	return clip, nil
}

// GetByPath fetches a clip by its file path.
func (s *Store) GetByPath(ctx context.Context, path string) (*Clip, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clipColumns+` FROM clip_catalog WHERE path = ?`, path)
	clip, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrClipNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("get clip by path: %w", err)
	}
	return clip, nil
}

// List returns every catalog clip ordered by insertion.
func (s *Store) List(ctx context.Context) ([]*Clip, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+clipColumns+` FROM clip_catalog ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer rows.Close()

	var clips []*Clip
	for rows.Next() {
		clip, err := scanClip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan clip: %w", err)
		}
		clips = append(clips, clip)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clips: %w", err)
	}
	return clips, nil
}

// IncrementUsage bumps the persistent usage counter and last-used timestamp in
// a single statement so concurrent matchers never lose an increment.
func (s *Store) IncrementUsage(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE clip_catalog SET usage_count = usage_count + 1, last_used_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("increment clip usage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", ErrClipNotFound, id)
	}
	return nil
}

func scanClip(scanner interface{ Scan(dest ...any) error }) (*Clip, error) {
	var (
		id          int64
		path        string
		filename    string
		filesize    int64
		character   sql.NullString
		action      sql.NullString
		setting     sql.NullString
		detailTags  sql.NullString
		aiDesc      sql.NullString
		manualDesc  sql.NullString
		duration    sql.NullFloat64
		usageCount  int64
		lastUsedRaw sql.NullString
		createdRaw  string
	)
	if err := scanner.Scan(
		&id,
		&path,
		&filename,
		&filesize,
		&character,
		&action,
		&setting,
		&detailTags,
		&aiDesc,
		&manualDesc,
		&duration,
		&usageCount,
		&lastUsedRaw,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	clip := &Clip{
		ID:                id,
		Path:              path,
		Filename:          filename,
		Filesize:          filesize,
		Character:         character.String,
		Action:            action.String,
		Setting:           setting.String,
		AIDescription:     aiDesc.String,
		ManualDescription: manualDesc.String,
		DurationSeconds:   duration.Float64,
		UsageCount:        usageCount,
	}
	if detailTags.Valid && detailTags.String != "" {
		if err := json.Unmarshal([]byte(detailTags.String), &clip.DetailTags); err != nil {
			return nil, fmt.Errorf("unmarshal detail tags: %w", err)
		}
	}
	if lastUsedRaw.Valid {
		if used, err := time.Parse(time.RFC3339Nano, lastUsedRaw.String); err == nil {
			clip.LastUsedAt = &used
		}
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		clip.CreatedAt = created
	}
	return clip, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
