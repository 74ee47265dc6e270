// Package scheduler runs the recurring background work: a health
// check over the external tools and the queue, and an optional
// retention sweep that removes expired terminal jobs.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mediaparser/internal/common"
	"github.com/ternarybob/mediaparser/internal/interfaces"
	"github.com/ternarybob/mediaparser/internal/services/metadata"
)

const taskTimeout = 30 * time.Second

// Service schedules recurring maintenance tasks
type Service struct {
	cron   *cron.Cron
	store  interfaces.StorageManager
	queue  interfaces.QueueService
	probe  *metadata.Probe
	config *common.Config
	logger arbor.ILogger
}

// NewService creates the scheduler. Nothing runs until Start.
func NewService(store interfaces.StorageManager, queue interfaces.QueueService, probe *metadata.Probe, config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		cron:   cron.New(cron.WithSeconds()),
		store:  store,
		queue:  queue,
		probe:  probe,
		config: config,
		logger: logger,
	}
}

// Start registers the scheduled tasks and starts the cron loop
func (s *Service) Start() error {
	if _, err := s.cron.AddFunc(s.config.Tools.HealthSchedule, s.healthCheck); err != nil {
		return err
	}

	if s.config.Retention.Enabled {
		if _, err := s.cron.AddFunc(s.config.Retention.Schedule, s.retentionSweep); err != nil {
			return err
		}
		s.logger.Info().
			Str("schedule", s.config.Retention.Schedule).
			Str("max_age", s.config.Retention.MaxAge).
			Msg("Retention sweep scheduled")
	}

	s.cron.Start()
	s.logger.Info().Str("health_schedule", s.config.Tools.HealthSchedule).Msg("Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for running tasks to finish
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// healthCheck verifies the metadata tool answers and reports queue
// depth. Failures are logged, not fatal: jobs degrade to filesystem
// metadata when the tool is gone.
func (s *Service) healthCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	if version, err := s.probe.Version(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Metadata tool health check failed")
	} else {
		s.logger.Debug().Str("version", version).Msg("Metadata tool healthy")
	}

	visible, inflight, err := s.queue.Depth(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Queue depth check failed")
		return
	}
	s.logger.Debug().Int("visible", visible).Int("inflight", inflight).Msg("Queue depth")
}

// retentionSweep deletes terminal jobs older than the configured age
func (s *Service) retentionSweep() {
	maxAge, err := time.ParseDuration(s.config.Retention.MaxAge)
	if err != nil || maxAge <= 0 {
		s.logger.Warn().Str("max_age", s.config.Retention.MaxAge).Msg("Invalid retention max_age, skipping sweep")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	cutoff := time.Now().UTC().Add(-maxAge)
	removed, err := s.store.JobStorage().DeleteTerminalJobsBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("Retention sweep failed")
		return
	}
	if removed > 0 {
		s.logger.Info().Int("jobs", removed).Str("cutoff", cutoff.Format(time.RFC3339)).Msg("Expired jobs removed")
	}
}
