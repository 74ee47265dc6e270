package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mediaparser/internal/interfaces"
	"github.com/ternarybob/mediaparser/internal/models"
)

// SettingsStorage implements SQLite persistence for settings overrides
type SettingsStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewSettingsStorage creates a new settings storage instance
func NewSettingsStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.SettingsStorage {
	return &SettingsStorage{
		db:     db,
		logger: logger,
	}
}

// Set upserts a setting value
func (s *SettingsStorage) Set(ctx context.Context, key, value string) error {
	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to save setting %q: %w", key, err)
	}
	s.logger.Debug().Str("key", key).Msg("Setting saved")
	return nil
}

// Get returns one setting value
func (s *SettingsStorage) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("setting %q: %w", key, models.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %q: %w", key, err)
	}
	return value, nil
}

// All returns every persisted setting
func (s *SettingsStorage) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.db.QueryContext(ctx, "SELECT key, value FROM settings ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// Delete removes a setting override
func (s *SettingsStorage) Delete(ctx context.Context, key string) error {
	_, err := s.db.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete setting %q: %w", key, err)
	}
	return nil
}
