package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mediaparser/internal/common"
	"github.com/ternarybob/mediaparser/internal/interfaces"
	"github.com/ternarybob/mediaparser/internal/models"
	"github.com/ternarybob/mediaparser/internal/services/duplicates"
	"github.com/ternarybob/mediaparser/internal/services/processor"
	"github.com/ternarybob/mediaparser/internal/services/tagging"
)

// ImportExecutor runs import jobs: discover files, process them
// through a worker pool with batched commits, then detect duplicates
// and apply automatic tags.
type ImportExecutor struct {
	store     interfaces.StorageManager
	processor *processor.Processor
	detector  *duplicates.Detector
	config    *common.Config
	logger    arbor.ILogger
}

// NewImportExecutor creates an import executor
func NewImportExecutor(store interfaces.StorageManager, proc *processor.Processor, detector *duplicates.Detector, config *common.Config, logger arbor.ILogger) *ImportExecutor {
	return &ImportExecutor{
		store:     store,
		processor: proc,
		detector:  detector,
		config:    config,
		logger:    logger,
	}
}

// Handle executes one import job message. A nil return acknowledges
// the message; an error schedules a redelivery, which resumes from the
// first unprocessed file.
func (e *ImportExecutor) Handle(ctx context.Context, msg *models.QueueMessage) error {
	jobs := e.store.JobStorage()

	job, err := jobs.GetJob(ctx, msg.JobID)
	if errors.Is(err, models.ErrNotFound) {
		e.logger.Warn().Str("job_id", msg.JobID).Msg("Import message for unknown job, dropping")
		return nil
	}
	if err != nil {
		return err
	}

	if job.Status.IsTerminal() {
		e.logger.Debug().Str("job_id", job.ID).Str("status", string(job.Status)).Msg("Job already terminal, dropping message")
		return nil
	}

	// A job still marked running was interrupted by a crash; the
	// redelivered message just picks it back up.
	if job.Status != models.JobStatusRunning {
		if err := jobs.UpdateStatus(ctx, job.ID, models.JobStatusRunning, ""); err != nil {
			if errors.Is(err, models.ErrInvalidTransition) {
				return nil
			}
			return err
		}
	}

	if job.TotalFiles == 0 {
		total, err := e.discover(ctx, job)
		if err != nil {
			e.logger.Error().Err(err).Str("job_id", job.ID).Msg("File discovery failed")
			if failErr := jobs.UpdateStatus(ctx, job.ID, models.JobStatusFailed, err.Error()); failErr != nil {
				return failErr
			}
			return nil
		}
		job.TotalFiles = total
	}

	pending, err := e.store.FileStorage().PendingFiles(ctx, job.ID)
	if err != nil {
		return err
	}

	e.logger.Info().
		Str("job_id", job.ID).
		Int("total_files", job.TotalFiles).
		Int("pending", len(pending)).
		Msg("Import processing started")

	status, err := e.processAll(ctx, job, pending)
	if err != nil {
		return err
	}

	switch status {
	case models.JobStatusPaused, models.JobStatusCancelled, models.JobStatusHalted:
		e.logger.Info().Str("job_id", job.ID).Str("status", string(status)).Msg("Import stopped early")
		return nil
	}

	return e.finalize(ctx, job)
}

// discover walks the source directory and records one row per media
// file. Insertion ignores duplicates so a redelivered message after a
// crash mid-discovery is harmless.
func (e *ImportExecutor) discover(ctx context.Context, job *models.Job) (int, error) {
	files, err := DiscoverFiles(job.ID, job.SourceDir, e.config.Processing.AllowedExtensions)
	if err != nil {
		return 0, fmt.Errorf("failed to scan %s: %w", job.SourceDir, err)
	}

	if err := e.store.FileStorage().InsertFiles(ctx, files); err != nil {
		return 0, err
	}
	if err := e.store.JobStorage().SetTotalFiles(ctx, job.ID, len(files)); err != nil {
		return 0, err
	}

	e.logger.Info().Str("job_id", job.ID).Int("files", len(files)).Msg("Files discovered")
	return len(files), nil
}

// processAll runs the pending files through a bounded worker pool.
// Results are committed in batches; the error threshold and the job
// status are checked after every result, so a halt lands on the exact
// file that tipped the rate and pause or cancel requests take effect
// within one file. Returns the status that stopped processing, or
// running when every file was processed.
func (e *ImportExecutor) processAll(ctx context.Context, job *models.Job, pending []*models.MediaFile) (models.JobStatus, error) {
	if len(pending) == 0 {
		return models.JobStatusRunning, nil
	}

	workers := e.config.Workers()
	if workers > len(pending) {
		workers = len(pending)
	}
	batchSize := e.config.Processing.BatchCommitSize

	nameByID := make(map[string]string, len(pending))
	for _, f := range pending {
		nameByID[f.ID] = f.FileName
	}

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := make(chan *models.MediaFile)
	results := make(chan *models.ProcessResult, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range work {
				results <- e.processor.Process(workCtx, f)
			}
		}()
	}

	go func() {
		defer close(work)
		for _, f := range pending {
			select {
			case work <- f:
			case <-workCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// drain releases the workers after an error so the goroutines above
	// cannot leak.
	drain := func() {
		cancel()
		for range results {
		}
	}

	// Counters carry on from earlier deliveries so the threshold sees
	// the whole job, not just this run.
	processed := job.ProcessedFiles
	failed := job.ErrorCount

	stopStatus := models.JobStatusRunning
	batch := make([]*models.ProcessResult, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		current := nameByID[batch[len(batch)-1].FileID]
		if err := e.commitBatch(ctx, job.ID, batch, current); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for r := range results {
		batch = append(batch, r)
		processed++
		if r.Failed() {
			failed++
		}

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				drain()
				return "", err
			}
		}

		if stopStatus != models.JobStatusRunning {
			continue // stop already requested, just landing in-flight work
		}

		if processed >= e.config.Processing.MinSample &&
			float64(failed)/float64(processed) > e.config.Processing.ErrorThreshold {
			// Commit up to and including the tipping file, then stop;
			// results past the halt point are discarded.
			if err := flush(); err != nil {
				drain()
				return "", err
			}
			msg := fmt.Sprintf("%v: %d of %d files failed (threshold %.0f%%)",
				models.ErrThresholdExceeded, failed, processed,
				e.config.Processing.ErrorThreshold*100)
			if err := e.store.JobStorage().UpdateStatus(ctx, job.ID, models.JobStatusHalted, msg); err != nil {
				drain()
				return "", err
			}
			e.logger.Warn().
				Str("job_id", job.ID).
				Int("errors", failed).
				Int("processed", processed).
				Msg("Job halted: error threshold exceeded")
			drain()
			return models.JobStatusHalted, nil
		}

		current, err := e.store.JobStorage().GetJob(ctx, job.ID)
		if err != nil {
			drain()
			return "", err
		}
		if current.Status != models.JobStatusRunning {
			stopStatus = current.Status
			cancel() // stop feeding workers; in-flight results still commit
		}
	}

	if err := flush(); err != nil {
		return "", err
	}
	return stopStatus, nil
}

// commitBatch lands one batch of results and advances the progress
// counters and current filename in step
func (e *ImportExecutor) commitBatch(ctx context.Context, jobID string, batch []*models.ProcessResult, currentFile string) error {
	if err := e.store.FileStorage().ApplyResults(ctx, batch); err != nil {
		return err
	}

	errorCount := 0
	for _, r := range batch {
		if r.Failed() {
			errorCount++
		}
	}
	return e.store.JobStorage().IncrementProgress(ctx, jobID, len(batch), errorCount, currentFile)
}

// finalize runs duplicate detection and automatic tagging, then marks
// the job completed
func (e *ImportExecutor) finalize(ctx context.Context, job *models.Job) error {
	exact, similar, err := e.detector.Run(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("duplicate detection failed: %w", err)
	}

	if err := e.applyAutoTags(ctx, job); err != nil {
		return fmt.Errorf("auto-tagging failed: %w", err)
	}

	if err := e.store.JobStorage().UpdateStatus(ctx, job.ID, models.JobStatusCompleted, ""); err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			// Cancelled between the last checkpoint and here.
			return nil
		}
		return err
	}

	e.logger.Info().
		Str("job_id", job.ID).
		Int("exact_groups", exact).
		Int("similar_groups", similar).
		Msg("Import job completed")
	return nil
}

// applyAutoTags derives tags from filename syntax and folder structure
// for every processed file
func (e *ImportExecutor) applyAutoTags(ctx context.Context, job *models.Job) error {
	files, err := e.store.FileStorage().ProcessedFiles(ctx, job.ID)
	if err != nil {
		return err
	}

	tags := e.store.TagStorage()
	for _, f := range files {
		if names := tagging.FilenameTags(f.FileName); len(names) > 0 {
			if err := tags.AddTags(ctx, f.ID, names, models.TagSourceFilename); err != nil {
				return err
			}
		}
		if names := tagging.FolderTags(f.SourcePath, job.SourceDir); len(names) > 0 {
			if err := tags.AddTags(ctx, f.ID, names, models.TagSourcePath); err != nil {
				return err
			}
		}
	}
	return nil
}
