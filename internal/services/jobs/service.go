// Package jobs owns the job lifecycle: creating import and export
// jobs, queueing them for execution, and the pause/resume/cancel
// control surface. Execution itself lives in the executors, driven by
// the queue consumer.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mediaparser/internal/common"
	"github.com/ternarybob/mediaparser/internal/interfaces"
	"github.com/ternarybob/mediaparser/internal/models"
)

// Service creates jobs and controls their lifecycle
type Service struct {
	store  interfaces.StorageManager
	queue  interfaces.QueueService
	config *common.Config
	logger arbor.ILogger
}

// NewService creates a job service
func NewService(store interfaces.StorageManager, queue interfaces.QueueService, config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		store:  store,
		queue:  queue,
		config: config,
		logger: logger,
	}
}

// CreateImportJob creates a pending import job for a source directory
// and queues it for execution
func (s *Service) CreateImportJob(ctx context.Context, sourceDir string) (*models.Job, error) {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("%w: source directory: %v", models.ErrValidation, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", models.ErrValidation, sourceDir)
	}

	job := models.NewImportJob(sourceDir)
	if err := s.store.JobStorage().CreateJob(ctx, job); err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info().Str("job_id", job.ID).Str("source_dir", sourceDir).Msg("Import job created")
	return job, nil
}

// CreateUploadJob stages uploaded files into an owned working
// directory and creates an import job over it. The stage callback
// writes the files and returns how many landed; on failure or an empty
// upload the staging directory is removed again.
func (s *Service) CreateUploadJob(ctx context.Context, stage func(dir string) (int, error)) (*models.Job, error) {
	job := models.NewImportJob("")
	dir := filepath.Join(s.config.Workspace.Dir, "uploads", "job_"+job.ID)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	count, err := stage(dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	if count == 0 {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: upload contained no files", models.ErrValidation)
	}

	job.SourceDir = dir
	if err := s.store.JobStorage().CreateJob(ctx, job); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	if err := s.enqueue(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info().Str("job_id", job.ID).Int("files", count).Msg("Upload job created")
	return job, nil
}

// CreateExportJob creates a pending export job over the files of a
// completed import job and queues it
func (s *Service) CreateExportJob(ctx context.Context, sourceJobID, outputDir string) (*models.Job, error) {
	source, err := s.store.JobStorage().GetJob(ctx, sourceJobID)
	if err != nil {
		return nil, err
	}
	if source.Type != models.JobTypeImport {
		return nil, fmt.Errorf("%w: job %s is not an import job", models.ErrValidation, sourceJobID)
	}
	if source.Status != models.JobStatusCompleted {
		return nil, fmt.Errorf("%w: import job %s is %s, export requires completed",
			models.ErrValidation, sourceJobID, source.Status)
	}

	if outputDir == "" {
		outputDir = s.defaultOutputDir()
	}

	job := models.NewExportJob(sourceJobID, outputDir)
	if err := s.store.JobStorage().CreateJob(ctx, job); err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("source_job_id", sourceJobID).
		Str("output_dir", outputDir).
		Msg("Export job created")
	return job, nil
}

// Pause requests a graceful stop. The executor notices the status at
// its next checkpoint, commits in-flight work and yields.
func (s *Service) Pause(ctx context.Context, jobID string) error {
	return s.store.JobStorage().UpdateStatus(ctx, jobID, models.JobStatusPaused, "")
}

// Resume requeues a paused job. Already-processed files are skipped;
// the executor picks up from the first unprocessed file. Halted jobs
// are terminal and never come back through here.
func (s *Service) Resume(ctx context.Context, jobID string) error {
	job, err := s.store.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Status.IsResumable() {
		return fmt.Errorf("%w: job %s is %s, only paused jobs resume",
			models.ErrValidation, jobID, job.Status)
	}
	return s.enqueue(ctx, job)
}

// Cancel terminates a job. Files processed so far stay in the store.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	return s.store.JobStorage().UpdateStatus(ctx, jobID, models.JobStatusCancelled, "")
}

func (s *Service) enqueue(ctx context.Context, job *models.Job) error {
	body, err := json.Marshal(&models.QueueMessage{
		JobID: job.ID,
		Type:  string(job.Type),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	if _, err := s.queue.Enqueue(ctx, body, 0); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	return nil
}

func (s *Service) defaultOutputDir() string {
	if s.config.Workspace.OutputDir != "" {
		return s.config.Workspace.OutputDir
	}
	return filepath.Join(s.config.Workspace.Dir, "output")
}
