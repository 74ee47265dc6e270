package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mediaparser/internal/interfaces"
	"github.com/ternarybob/mediaparser/internal/models"
)

// DecisionStorage implements SQLite persistence for the review audit trail
type DecisionStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewDecisionStorage creates a new decision storage instance
func NewDecisionStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.DecisionStorage {
	return &DecisionStorage{
		db:     db,
		logger: logger,
	}
}

// Record appends one review decision
func (s *DecisionStorage) Record(ctx context.Context, decision *models.UserDecision) error {
	createdAt := decision.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	result, err := s.db.db.ExecContext(ctx, `
		INSERT INTO user_decisions (file_id, group_id, action, detail, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		decision.FileID, decision.GroupID, string(decision.Action), decision.Detail, createdAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		decision.ID = id
	}
	return nil
}

// ListByGroup returns decisions affecting one group, oldest first
func (s *DecisionStorage) ListByGroup(ctx context.Context, groupID string) ([]*models.UserDecision, error) {
	return s.list(ctx, "group_id = ?", groupID)
}

// ListByFile returns decisions affecting one file, oldest first
func (s *DecisionStorage) ListByFile(ctx context.Context, fileID string) ([]*models.UserDecision, error) {
	return s.list(ctx, "file_id = ?", fileID)
}

func (s *DecisionStorage) list(ctx context.Context, where string, arg interface{}) ([]*models.UserDecision, error) {
	rows, err := s.db.db.QueryContext(ctx,
		"SELECT id, file_id, group_id, action, detail, created_at FROM user_decisions WHERE "+where+" ORDER BY created_at, id",
		arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*models.UserDecision
	for rows.Next() {
		var d models.UserDecision
		var action string
		var createdAt int64
		if err := rows.Scan(&d.ID, &d.FileID, &d.GroupID, &action, &d.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		d.Action = models.DecisionAction(action)
		d.CreatedAt = time.Unix(createdAt, 0).UTC()
		decisions = append(decisions, &d)
	}
	return decisions, rows.Err()
}
