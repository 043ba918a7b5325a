package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// store persists artifact metadata in SQLite so it is never recomputed on
// read. Artifact bytes live on disk next to it; a row is only visible as
// ready after the artifact file is fully in place.
type store struct {
	db *sql.DB
}

func openStore(path string) (*store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
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

	s := &store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS artifacts (
    cache_key    TEXT    NOT NULL,
    filter_id    TEXT    NOT NULL,
    path         TEXT    NOT NULL,
    width        INTEGER NOT NULL,
    height       INTEGER NOT NULL,
    fps          REAL    NOT NULL,
    total_frames INTEGER NOT NULL,
    has_audio    INTEGER NOT NULL,
    size         INTEGER NOT NULL,
    ready        INTEGER NOT NULL DEFAULT 0,
    created_at   TEXT    NOT NULL,
    PRIMARY KEY (cache_key, filter_id)
)`)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *store) close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *store) putReady(ctx context.Context, a Artifact) error {
	timestamp := a.CreatedAt.UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO artifacts (
    cache_key, filter_id, path, width, height, fps, total_frames,
    has_audio, size, ready, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
ON CONFLICT (cache_key, filter_id) DO UPDATE SET
    path = excluded.path, width = excluded.width, height = excluded.height,
    fps = excluded.fps, total_frames = excluded.total_frames,
    has_audio = excluded.has_audio, size = excluded.size,
    ready = 1, created_at = excluded.created_at`,
		a.Key, a.FilterID, a.Path,
		a.Meta.Width, a.Meta.Height, a.Meta.FPS, a.Meta.TotalFrames,
		boolToInt(a.Meta.HasAudio), a.Size, timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

func (s *store) get(ctx context.Context, key, filterID string) (Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT cache_key, filter_id, path, width, height, fps, total_frames,
       has_audio, size, created_at
FROM artifacts
WHERE cache_key = ? AND filter_id = ? AND ready = 1`,
		key, filterID,
	)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Artifact{}, ErrMiss
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("query artifact: %w", err)
	}
	return a, nil
}

func (s *store) list(ctx context.Context) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT cache_key, filter_id, path, width, height, fps, total_frames,
       has_audio, size, created_at
FROM artifacts
WHERE ready = 1
ORDER BY created_at, cache_key, filter_id`)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (Artifact, error) {
	var (
		a         Artifact
		hasAudio  int
		createdAt string
	)
	err := row.Scan(
		&a.Key, &a.FilterID, &a.Path,
		&a.Meta.Width, &a.Meta.Height, &a.Meta.FPS, &a.Meta.TotalFrames,
		&hasAudio, &a.Size, &createdAt,
	)
	if err != nil {
		return Artifact{}, err
	}
	a.Meta.HasAudio = hasAudio != 0
	if ts, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
		a.CreatedAt = ts
	}
	return a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
