package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mediaparser/internal/common"
	"github.com/ternarybob/mediaparser/internal/interfaces"
	"github.com/ternarybob/mediaparser/internal/models"
	"github.com/ternarybob/mediaparser/internal/services/export"
)

// ExportExecutor runs export jobs: copy the kept files of an import
// job into the output tree, rewriting metadata along the way.
type ExportExecutor struct {
	store    interfaces.StorageManager
	exporter *export.Exporter
	config   *common.Config
	logger   arbor.ILogger
}

// NewExportExecutor creates an export executor
func NewExportExecutor(store interfaces.StorageManager, exporter *export.Exporter, config *common.Config, logger arbor.ILogger) *ExportExecutor {
	return &ExportExecutor{
		store:    store,
		exporter: exporter,
		config:   config,
		logger:   logger,
	}
}

// Handle executes one export job message. Files already exported by a
// previous delivery are skipped, so a crash mid-export resumes cleanly.
func (e *ExportExecutor) Handle(ctx context.Context, msg *models.QueueMessage) error {
	jobs := e.store.JobStorage()

	job, err := jobs.GetJob(ctx, msg.JobID)
	if errors.Is(err, models.ErrNotFound) {
		e.logger.Warn().Str("job_id", msg.JobID).Msg("Export message for unknown job, dropping")
		return nil
	}
	if err != nil {
		return err
	}

	if job.Status.IsTerminal() {
		return nil
	}
	if job.Status != models.JobStatusRunning {
		if err := jobs.UpdateStatus(ctx, job.ID, models.JobStatusRunning, ""); err != nil {
			if errors.Is(err, models.ErrInvalidTransition) {
				return nil
			}
			return err
		}
	}

	files, err := e.store.FileStorage().ExportableFiles(ctx, job.SourceJobID)
	if err != nil {
		return err
	}
	if err := jobs.SetTotalFiles(ctx, job.ID, len(files)); err != nil {
		return err
	}

	e.logger.Info().
		Str("job_id", job.ID).
		Str("source_job_id", job.SourceJobID).
		Int("files", len(files)).
		Msg("Export started")

	fileIDs := make([]string, len(files))
	for i, f := range files {
		fileIDs[i] = f.ID
	}
	tagsByFile, err := e.store.TagStorage().TagsForFiles(ctx, fileIDs)
	if err != nil {
		return err
	}

	checkEvery := e.config.Processing.BatchCommitSize
	for i, f := range files {
		if i%checkEvery == 0 {
			status, err := e.checkpoint(ctx, job.ID)
			if err != nil {
				return err
			}
			if status != models.JobStatusRunning {
				e.logger.Info().Str("job_id", job.ID).Str("status", string(status)).Msg("Export stopped early")
				return nil
			}
		}

		if f.OutputPath != "" {
			continue // exported by a previous delivery
		}

		outputPath, rewriteErr, err := e.exporter.Export(ctx, f, job.OutputDir, tagsByFile[f.ID])
		if err != nil {
			e.logger.Error().Err(err).Str("file_id", f.ID).Str("source", f.SourcePath).Msg("Export failed")
			if recErr := e.store.FileStorage().SetExportError(ctx, f.ID, err.Error()); recErr != nil {
				return recErr
			}
			if progErr := jobs.IncrementProgress(ctx, job.ID, 1, 1, f.FileName); progErr != nil {
				return progErr
			}
			continue
		}

		if err := e.store.FileStorage().SetExported(ctx, f.ID, outputPath); err != nil {
			return err
		}
		if rewriteErr != nil {
			// The copy exists but its metadata is stale; the file record
			// carries the problem for review.
			if err := e.store.FileStorage().SetExportError(ctx, f.ID, rewriteErr.Error()); err != nil {
				return err
			}
		}
		if err := jobs.IncrementProgress(ctx, job.ID, 1, 0, f.FileName); err != nil {
			return err
		}
	}

	if err := jobs.UpdateStatus(ctx, job.ID, models.JobStatusCompleted, ""); err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			return nil
		}
		return err
	}

	e.cleanupWorkingCopies(ctx, job)

	e.logger.Info().Str("job_id", job.ID).Int("files", len(files)).Msg("Export job completed")
	return nil
}

// checkpoint re-reads the job and halts on an excessive error rate
func (e *ExportExecutor) checkpoint(ctx context.Context, jobID string) (models.JobStatus, error) {
	job, err := e.store.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.Status != models.JobStatusRunning {
		return job.Status, nil
	}

	if job.ProcessedFiles >= e.config.Processing.MinSample && job.ErrorRate() > e.config.Processing.ErrorThreshold {
		msg := fmt.Sprintf("%v: %d of %d exports failed", models.ErrThresholdExceeded,
			job.ErrorCount, job.ProcessedFiles)
		if err := e.store.JobStorage().UpdateStatus(ctx, jobID, models.JobStatusHalted, msg); err != nil {
			return "", err
		}
		return models.JobStatusHalted, nil
	}
	return models.JobStatusRunning, nil
}

// cleanupWorkingCopies removes the upload directory of the source
// import job after a fully successful export. Only directories inside
// the owned workspace are ever removed.
func (e *ExportExecutor) cleanupWorkingCopies(ctx context.Context, job *models.Job) {
	if !e.config.Export.DeleteWorkingCopies || job.ErrorCount > 0 {
		return
	}

	source, err := e.store.JobStorage().GetJob(ctx, job.SourceJobID)
	if err != nil {
		e.logger.Warn().Err(err).Str("job_id", job.SourceJobID).Msg("Cannot resolve source job for cleanup")
		return
	}

	workspace, err := filepath.Abs(e.config.Workspace.Dir)
	if err != nil {
		return
	}
	sourceDir, err := filepath.Abs(source.SourceDir)
	if err != nil {
		return
	}
	if !strings.HasPrefix(sourceDir, workspace+string(filepath.Separator)) {
		e.logger.Debug().Str("source_dir", source.SourceDir).Msg("Source outside workspace, keeping files")
		return
	}

	if err := os.RemoveAll(sourceDir); err != nil {
		e.logger.Warn().Err(err).Str("source_dir", sourceDir).Msg("Failed to remove working copies")
		return
	}
	e.logger.Info().Str("source_dir", sourceDir).Msg("Working copies removed after export")
}
