// Package app wires configuration, storage, queue, services and
// handlers into one application handle the server and entrypoint share.
package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mediaparser/internal/common"
	"github.com/ternarybob/mediaparser/internal/handlers"
	"github.com/ternarybob/mediaparser/internal/interfaces"
	"github.com/ternarybob/mediaparser/internal/models"
	"github.com/ternarybob/mediaparser/internal/queue"
	"github.com/ternarybob/mediaparser/internal/services/duplicates"
	"github.com/ternarybob/mediaparser/internal/services/export"
	"github.com/ternarybob/mediaparser/internal/services/jobs"
	"github.com/ternarybob/mediaparser/internal/services/metadata"
	"github.com/ternarybob/mediaparser/internal/services/processor"
	"github.com/ternarybob/mediaparser/internal/services/scheduler"
	"github.com/ternarybob/mediaparser/internal/services/thumbnail"
	"github.com/ternarybob/mediaparser/internal/services/timestamp"
	badgerstore "github.com/ternarybob/mediaparser/internal/storage/badger"
	"github.com/ternarybob/mediaparser/internal/storage/sqlite"
)

// App holds every wired component
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Store    interfaces.StorageManager
	BadgerDB *badgerstore.BadgerDB
	Queue    interfaces.QueueService
	Consumer *queue.Consumer

	JobService *jobs.Service
	Scheduler  *scheduler.Service
	Probe      *metadata.Probe
	Thumbnails *thumbnail.Generator

	JobHandler       *handlers.JobHandler
	FileHandler      *handlers.FileHandler
	DuplicateHandler *handlers.DuplicateHandler
	TagHandler       *handlers.TagHandler
	SettingsHandler  *handlers.SettingsHandler
	APIHandler       *handlers.APIHandler
}

// New wires the application from configuration. Components that fail
// to initialize abort startup; nothing runs half-wired.
func New(config *common.Config) (*App, error) {
	logger := common.GetLogger()

	store, err := sqlite.NewManager(logger, &config.Storage.SQLite)
	if err != nil {
		return nil, fmt.Errorf("failed to open review store: %w", err)
	}

	badgerDB, err := badgerstore.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to open queue store: %w", err)
	}

	queueManager, err := queue.NewBadgerManager(
		badgerDB.Store().Badger(),
		config.Queue.Name,
		config.Queue.VisibilityTimeoutDuration(),
		config.Queue.MaxReceive,
	)
	if err != nil {
		badgerDB.Close()
		store.Close()
		return nil, fmt.Errorf("failed to create queue: %w", err)
	}

	probe := metadata.NewProbe(&config.Tools, logger)
	if !probe.Available() {
		logger.Warn().Str("path", config.Tools.ExifToolPath).
			Msg("Metadata tool not found, falling back to filesystem dates")
	}

	resolver := timestamp.NewResolver(config.Location(), config.Processing.MinValidYear, logger)

	thumbs, err := thumbnail.NewGenerator(&config.Workspace, &config.Tools, logger)
	if err != nil {
		badgerDB.Close()
		store.Close()
		return nil, fmt.Errorf("failed to create thumbnail generator: %w", err)
	}

	proc := processor.NewProcessor(probe, resolver, thumbs, logger)
	detector := duplicates.NewDetector(store.FileStorage(), store.JobStorage(), config.ClusterWindow(), logger)
	exporter := export.NewExporter(&config.Tools, logger)

	jobService := jobs.NewService(store, queueManager, config, logger)
	importExec := jobs.NewImportExecutor(store, proc, detector, config, logger)
	exportExec := jobs.NewExportExecutor(store, exporter, config, logger)

	// A message that exhausts its delivery budget fails its job; without
	// this the job would sit in running with no deliveries left.
	failJob := func(jobID, cause string) {
		err := store.JobStorage().UpdateStatus(context.Background(), jobID, models.JobStatusFailed, cause)
		if err != nil {
			logger.Warn().Err(err).Str("job_id", jobID).Msg("Could not mark job failed after final delivery")
			return
		}
		logger.Error().Str("job_id", jobID).Str("cause", cause).Msg("Job failed: delivery budget exhausted")
	}
	queueManager.SetDropHandler(func(body []byte) {
		var msg models.QueueMessage
		if err := json.Unmarshal(body, &msg); err != nil || msg.JobID == "" {
			return
		}
		failJob(msg.JobID, "job gave up after repeated crashes during processing")
	})

	consumer := queue.NewConsumer(queueManager, &config.Queue, logger)
	consumer.RegisterHandler(string(models.JobTypeImport), importExec.Handle)
	consumer.RegisterHandler(string(models.JobTypeExport), exportExec.Handle)
	consumer.SetFailureHandler(func(ctx context.Context, msg *models.QueueMessage, cause error) {
		failJob(msg.JobID, fmt.Sprintf("job failed after final delivery: %v", cause))
	})

	sched := scheduler.NewService(store, queueManager, probe, config, logger)

	app := &App{
		Config:     config,
		Logger:     logger,
		Store:      store,
		BadgerDB:   badgerDB,
		Queue:      queueManager,
		Consumer:   consumer,
		JobService: jobService,
		Scheduler:  sched,
		Probe:      probe,
		Thumbnails: thumbs,

		JobHandler:       handlers.NewJobHandler(jobService, store, logger),
		FileHandler:      handlers.NewFileHandler(store, logger),
		DuplicateHandler: handlers.NewDuplicateHandler(store, logger),
		TagHandler:       handlers.NewTagHandler(store, logger),
		SettingsHandler:  handlers.NewSettingsHandler(store, logger),
		APIHandler:       handlers.NewAPIHandler(config, store, queueManager, probe, logger),
	}

	return app, nil
}

// Start launches the background components
func (a *App) Start() error {
	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	a.Consumer.Start()
	return nil
}

// Close stops background work and releases storage in reverse
// dependency order
func (a *App) Close() error {
	a.Consumer.Stop()
	a.Scheduler.Stop()

	var firstErr error
	if err := a.Queue.Close(); err != nil {
		firstErr = err
	}
	if err := a.BadgerDB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
