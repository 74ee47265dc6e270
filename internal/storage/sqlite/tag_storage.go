package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mediaparser/internal/interfaces"
	"github.com/ternarybob/mediaparser/internal/models"
)

// TagStorage implements SQLite persistence for file tags
type TagStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewTagStorage creates a new tag storage instance
func NewTagStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.TagStorage {
	return &TagStorage{
		db:     db,
		logger: logger,
	}
}

// AddTags attaches tags to a file, ignoring names already present
func (s *TagStorage) AddTags(ctx context.Context, fileID string, names []string, source models.TagSource) error {
	if len(names) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tags (file_id, name, source, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file_id, name) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare tag insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Unix()
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, fileID, name, string(source), now); err != nil {
			return fmt.Errorf("failed to insert tag %q: %w", name, err)
		}
	}

	return tx.Commit()
}

// GetTags returns all tags for one file
func (s *TagStorage) GetTags(ctx context.Context, fileID string) ([]*models.Tag, error) {
	rows, err := s.db.db.QueryContext(ctx,
		"SELECT id, file_id, name, source, created_at FROM tags WHERE file_id = ? ORDER BY name",
		fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	var tags []*models.Tag
	for rows.Next() {
		var t models.Tag
		var source string
		var createdAt int64
		if err := rows.Scan(&t.ID, &t.FileID, &t.Name, &source, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		t.Source = models.TagSource(source)
		t.CreatedAt = time.Unix(createdAt, 0).UTC()
		tags = append(tags, &t)
	}
	return tags, rows.Err()
}

// TagsForFiles returns tag names keyed by file ID for a set of files
func (s *TagStorage) TagsForFiles(ctx context.Context, fileIDs []string) (map[string][]string, error) {
	result := make(map[string][]string)
	if len(fileIDs) == 0 {
		return result, nil
	}

	placeholders := strings.Repeat("?,", len(fileIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, len(fileIDs))
	for i, id := range fileIDs {
		args[i] = id
	}

	rows, err := s.db.db.QueryContext(ctx,
		"SELECT file_id, name FROM tags WHERE file_id IN ("+placeholders+") ORDER BY name",
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fileID, name string
		if err := rows.Scan(&fileID, &name); err != nil {
			return nil, err
		}
		result[fileID] = append(result[fileID], name)
	}
	return result, rows.Err()
}

// RemoveTag deletes one tag from a file
func (s *TagStorage) RemoveTag(ctx context.Context, fileID, name string) error {
	result, err := s.db.db.ExecContext(ctx,
		"DELETE FROM tags WHERE file_id = ? AND name = ?", fileID, name)
	if err != nil {
		return fmt.Errorf("failed to remove tag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("tag %q on file %s: %w", name, fileID, models.ErrNotFound)
	}
	return nil
}

// TagUsage returns a job's tag names ranked by file count, most used
// first, ties broken alphabetically
func (s *TagStorage) TagUsage(ctx context.Context, jobID string) ([]*models.TagUsage, error) {
	rows, err := s.db.db.QueryContext(ctx, `
		SELECT t.name, COUNT(*) FROM tags t
		JOIN files f ON f.id = t.file_id
		WHERE f.job_id = ?
		GROUP BY t.name
		ORDER BY COUNT(*) DESC, t.name`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate tag usage: %w", err)
	}
	defer rows.Close()

	var usage []*models.TagUsage
	for rows.Next() {
		var u models.TagUsage
		if err := rows.Scan(&u.Name, &u.Count); err != nil {
			return nil, err
		}
		usage = append(usage, &u)
	}
	return usage, rows.Err()
}
