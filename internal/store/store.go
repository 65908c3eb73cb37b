// Package store persists per-source cursors in a local SQLite database.
// A save replaces the whole row in one statement, so a cursor is never
// visible half-written; a missing or corrupt row loads as fresh-empty.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"bylinewatch/internal/article"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// errCorruptRow marks a stored row whose contents cannot be decoded.
// Distinct from read failures: corruption loads as fresh-empty, a failing
// database surfaces to the caller.
var errCorruptRow = errors.New("corrupt cursor row")

// LoadCursor returns the cursor for a source. A source that was never
// checked, or whose stored row is corrupt, yields a fresh empty cursor.
// Database read failures are returned as errors.
func (s *Store) LoadCursor(ctx context.Context, sourceID string) (article.Cursor, error) {
	if s == nil || s.db == nil {
		return article.Cursor{}, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(sourceID) == "" {
		return article.Cursor{}, errors.New("source id is required")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT source_id, title, url, published_time, last_checked_at,
			etag, last_modified, error_count, last_error
		FROM cursors
		WHERE source_id = ?
	`, sourceID)

	cursor, err := scanCursor(row)
	switch {
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, errCorruptRow):
		// Missing and corrupt stored state both mean fresh-empty, not fatal.
		return article.NewCursor(sourceID), nil
	case err != nil:
		return article.Cursor{}, fmt.Errorf("load cursor: %w", err)
	}

	return cursor, nil
}

// SaveCursor writes the cursor as a complete replacement of the stored row.
func (s *Store) SaveCursor(ctx context.Context, cursor article.Cursor) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cursor.SourceID) == "" {
		return errors.New("source id is required")
	}

	var title, url, published sql.NullString
	if cursor.LastArticle != nil {
		title = sql.NullString{String: cursor.LastArticle.Title, Valid: true}
		url = sql.NullString{String: cursor.LastArticle.URL, Valid: true}
		if cursor.LastArticle.PublishedTime != "" {
			published = sql.NullString{String: cursor.LastArticle.PublishedTime, Valid: true}
		}
	}

	var etag, lastModified, lastError sql.NullString
	if cursor.ETag != "" {
		etag = sql.NullString{String: cursor.ETag, Valid: true}
	}
	if cursor.LastModified != "" {
		lastModified = sql.NullString{String: cursor.LastModified, Valid: true}
	}
	if cursor.LastError != "" {
		lastError = sql.NullString{String: cursor.LastError, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cursors (
			source_id, title, url, published_time, last_checked_at,
			etag, last_modified, error_count, last_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			title = excluded.title,
			url = excluded.url,
			published_time = excluded.published_time,
			last_checked_at = excluded.last_checked_at,
			etag = excluded.etag,
			last_modified = excluded.last_modified,
			error_count = excluded.error_count,
			last_error = excluded.last_error
	`,
		cursor.SourceID,
		title,
		url,
		published,
		formatTime(cursor.LastCheckedAt),
		etag,
		lastModified,
		cursor.ErrorCount,
		lastError,
	)
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}

	return nil
}

// ListCursors returns all stored cursors ordered by source ID.
func (s *Store) ListCursors(ctx context.Context) ([]article.Cursor, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, title, url, published_time, last_checked_at,
			etag, last_modified, error_count, last_error
		FROM cursors
		ORDER BY source_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cursors []article.Cursor
	for rows.Next() {
		cursor, err := scanCursor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cursor: %w", err)
		}
		cursors = append(cursors, cursor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cursors: %w", err)
	}

	return cursors, nil
}

// DeleteCursor removes a source's stored state. The change detector never
// calls this; it backs manual cleanup when a source is retired.
func (s *Store) DeleteCursor(ctx context.Context, sourceID string) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM cursors WHERE source_id = ?", sourceID); err != nil {
		return fmt.Errorf("delete cursor: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCursor(scanner rowScanner) (article.Cursor, error) {
	var (
		cursor                      article.Cursor
		title, url, published       sql.NullString
		etag, lastModified, lastErr sql.NullString
		lastCheckedAt               string
	)

	if err := scanner.Scan(
		&cursor.SourceID,
		&title,
		&url,
		&published,
		&lastCheckedAt,
		&etag,
		&lastModified,
		&cursor.ErrorCount,
		&lastErr,
	); err != nil {
		return article.Cursor{}, err
	}

	if url.Valid && url.String != "" {
		cursor.LastArticle = &article.Article{
			Title:         title.String,
			URL:           url.String,
			PublishedTime: published.String,
		}
	}
	if etag.Valid {
		cursor.ETag = etag.String
	}
	if lastModified.Valid {
		cursor.LastModified = lastModified.String
	}
	if lastErr.Valid {
		cursor.LastError = lastErr.String
	}

	var err error
	cursor.LastCheckedAt, err = parseTime(lastCheckedAt)
	if err != nil {
		return article.Cursor{}, fmt.Errorf("%w: parse last_checked_at: %v", errCorruptRow, err)
	}

	return cursor, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return time.Time{}.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}
