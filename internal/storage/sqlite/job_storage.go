package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mediaparser/internal/interfaces"
	"github.com/ternarybob/mediaparser/internal/models"
)

// JobStorage implements SQLite persistence for import/export jobs
type JobStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewJobStorage creates a new job storage instance
func NewJobStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

const jobColumns = `id, type, source_dir, output_dir, source_job_id, status, total_files, processed_files,
	current_filename, error_count, exact_groups, similar_groups, error, created_at, started_at, completed_at`

// CreateJob inserts a new job record
func (s *JobStorage) CreateJob(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.db.ExecContext(ctx, query,
		job.ID,
		string(job.Type),
		job.SourceDir,
		job.OutputDir,
		job.SourceJobID,
		string(job.Status),
		job.TotalFiles,
		job.ProcessedFiles,
		job.CurrentFile,
		job.ErrorCount,
		job.ExactGroups,
		job.SimilarGroups,
		job.Error,
		job.CreatedAt.Unix(),
		nullUnix(job.StartedAt),
		nullUnix(job.CompletedAt),
	)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to create job")
		return fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Debug().Str("job_id", job.ID).Str("type", string(job.Type)).Msg("Job created")
	return nil
}

// GetJob retrieves a job by ID
func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	row := s.db.db.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE id = ?", jobID)
	return scanJob(row)
}

// ListJobs lists jobs newest first
func (s *JobStorage) ListJobs(ctx context.Context, limit, offset int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.db.QueryContext(ctx,
		"SELECT "+jobColumns+" FROM jobs ORDER BY created_at DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateStatus moves a job to a new status. The current status is read
// and validated inside the same transaction so concurrent control
// requests cannot race past the status graph.
func (s *JobStorage) UpdateStatus(ctx context.Context, jobID string, to models.JobStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM jobs WHERE id = ?", jobID).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("job %s: %w", jobID, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read job status: %w", err)
	}

	from := models.JobStatus(current)
	if !models.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, to)
	}

	now := time.Now().UTC().Unix()
	query := "UPDATE jobs SET status = ?, error = ?"
	args := []interface{}{string(to), errMsg}

	if to == models.JobStatusRunning {
		query += ", started_at = COALESCE(started_at, ?)"
		args = append(args, now)
	}
	if to.IsTerminal() {
		query += ", completed_at = ?"
		args = append(args, now)
	}
	query += " WHERE id = ?"
	args = append(args, jobID)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit status update: %w", err)
	}

	s.logger.Info().
		Str("job_id", jobID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Job status updated")
	return nil
}

// IncrementProgress adds to the processed and error counters and
// records the filename most recently committed. Deltas are additive
// only so progress never moves backwards; an empty currentFile leaves
// the recorded filename alone.
func (s *JobStorage) IncrementProgress(ctx context.Context, jobID string, processed, errors int, currentFile string) error {
	if processed < 0 || errors < 0 {
		return fmt.Errorf("%w: progress deltas must be non-negative", models.ErrValidation)
	}

	result, err := s.db.db.ExecContext(ctx, `
		UPDATE jobs SET processed_files = processed_files + ?, error_count = error_count + ?,
			current_filename = CASE WHEN ? != '' THEN ? ELSE current_filename END
		WHERE id = ?`,
		processed, errors, currentFile, currentFile, jobID)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("job %s: %w", jobID, models.ErrNotFound)
	}
	return nil
}

// SetTotalFiles records the discovered file count for a job
func (s *JobStorage) SetTotalFiles(ctx context.Context, jobID string, total int) error {
	_, err := s.db.db.ExecContext(ctx,
		"UPDATE jobs SET total_files = ? WHERE id = ?", total, jobID)
	if err != nil {
		return fmt.Errorf("failed to set total files: %w", err)
	}
	return nil
}

// SetGroupCounts records duplicate detection results
func (s *JobStorage) SetGroupCounts(ctx context.Context, jobID string, exact, similar int) error {
	_, err := s.db.db.ExecContext(ctx,
		"UPDATE jobs SET exact_groups = ?, similar_groups = ? WHERE id = ?",
		exact, similar, jobID)
	if err != nil {
		return fmt.Errorf("failed to set group counts: %w", err)
	}
	return nil
}

// DeleteJob removes a job and, via cascade, its files and tags
func (s *JobStorage) DeleteJob(ctx context.Context, jobID string) error {
	result, err := s.db.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("job %s: %w", jobID, models.ErrNotFound)
	}
	s.logger.Info().Str("job_id", jobID).Msg("Job deleted")
	return nil
}

// DeleteTerminalJobsBefore removes terminal jobs that finished before
// the cutoff. Files and tags go with them via cascade.
func (s *JobStorage) DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.db.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE status IN (?, ?, ?, ?)
		AND completed_at IS NOT NULL AND completed_at < ?`,
		string(models.JobStatusCompleted),
		string(models.JobStatusFailed),
		string(models.JobStatusCancelled),
		string(models.JobStatusHalted),
		cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired jobs: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(affected), nil
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	var jobType, status string
	var createdAt int64
	var startedAt, completedAt sql.NullInt64

	err := row.Scan(
		&job.ID,
		&jobType,
		&job.SourceDir,
		&job.OutputDir,
		&job.SourceJobID,
		&status,
		&job.TotalFiles,
		&job.ProcessedFiles,
		&job.CurrentFile,
		&job.ErrorCount,
		&job.ExactGroups,
		&job.SimilarGroups,
		&job.Error,
		&createdAt,
		&startedAt,
		&completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	job.Type = models.JobType(jobType)
	job.Status = models.JobStatus(status)
	job.CreatedAt = time.Unix(createdAt, 0).UTC()
	job.StartedAt = timeFromNull(startedAt)
	job.CompletedAt = timeFromNull(completedAt)
	return &job, nil
}

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Valid: true, Int64: t.Unix()}
}

func timeFromNull(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0).UTC()
	return &t
}
