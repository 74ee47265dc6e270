package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mediaparser/internal/common"
	"github.com/ternarybob/mediaparser/internal/interfaces"
	"github.com/ternarybob/mediaparser/internal/models"
)

// MessageHandler processes one decoded queue message. A returned error
// schedules a retry; nil acknowledges the message.
type MessageHandler func(ctx context.Context, msg *models.QueueMessage) error

// FailureHandler runs when a message has spent its delivery budget and
// is about to be dropped. The job behind the message gets no further
// deliveries, so this is the last chance to record the failure.
type FailureHandler func(ctx context.Context, msg *models.QueueMessage, cause error)

// Consumer polls the queue and routes messages to registered handlers
// by job type. Failed messages become visible again after the retry
// delay, up to the queue's delivery budget.
type Consumer struct {
	queue      interfaces.QueueService
	handlers   map[string]MessageHandler
	onFailure  FailureHandler
	logger     arbor.ILogger
	pollEvery  time.Duration
	retryDelay time.Duration
	visibility time.Duration
	maxReceive int
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewConsumer creates a queue consumer
func NewConsumer(queue interfaces.QueueService, config *common.QueueConfig, logger arbor.ILogger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())

	maxReceive := config.MaxReceive
	if maxReceive <= 0 {
		maxReceive = 3
	}

	return &Consumer{
		queue:      queue,
		handlers:   make(map[string]MessageHandler),
		logger:     logger,
		pollEvery:  config.PollIntervalDuration(),
		retryDelay: config.RetryDelayDuration(),
		visibility: config.VisibilityTimeoutDuration(),
		maxReceive: maxReceive,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// RegisterHandler registers a handler for a job type
func (c *Consumer) RegisterHandler(jobType string, handler MessageHandler) {
	c.handlers[jobType] = handler
	c.logger.Debug().Str("job_type", jobType).Msg("Queue handler registered")
}

// SetFailureHandler registers the callback for messages dropped after
// their final delivery. Call before Start.
func (c *Consumer) SetFailureHandler(fn FailureHandler) {
	c.onFailure = fn
}

// Start begins the polling loop
func (c *Consumer) Start() {
	c.logger.Info().Dur("poll_interval", c.pollEvery).Msg("Starting queue consumer")
	go c.loop()
}

// Stop cancels the loop and waits for the in-flight handler to return
func (c *Consumer) Stop() {
	c.logger.Info().Msg("Stopping queue consumer")
	c.cancel()
	<-c.done
}

func (c *Consumer) loop() {
	defer close(c.done)

	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.logger.Debug().Msg("Queue consumer stopped")
			return
		case <-ticker.C:
			// Drain everything visible before sleeping again.
			for {
				if err := c.processOne(); err != nil {
					if !errors.Is(err, models.ErrNoMessage) {
						c.logger.Warn().Err(err).Msg("Error processing queue message")
					}
					break
				}
				if c.ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// processOne receives, routes and acknowledges a single message
func (c *Consumer) processOne() error {
	envelope, err := c.queue.Receive(c.ctx)
	if err != nil {
		return err
	}

	var msg models.QueueMessage
	if err := json.Unmarshal(envelope.Body, &msg); err != nil {
		c.logger.Error().
			Err(err).
			Str("message_id", envelope.ID).
			Msg("Failed to decode message body, dropping")
		if delErr := c.queue.Delete(c.ctx, envelope.ID); delErr != nil {
			c.logger.Warn().Err(delErr).Msg("Failed to delete invalid message")
		}
		return nil
	}

	handler, ok := c.handlers[msg.Type]
	if !ok {
		c.logger.Error().
			Str("message_id", envelope.ID).
			Str("type", msg.Type).
			Msg("No handler for message type, dropping")
		if delErr := c.queue.Delete(c.ctx, envelope.ID); delErr != nil {
			c.logger.Warn().Err(delErr).Msg("Failed to delete unroutable message")
		}
		return nil
	}

	c.logger.Debug().
		Str("message_id", envelope.ID).
		Str("job_id", msg.JobID).
		Str("type", msg.Type).
		Int("attempt", envelope.Received).
		Msg("Processing message")

	// Long-running handlers outlive the visibility timeout, so keep
	// extending the claim until the handler returns.
	heartbeatDone := make(chan struct{})
	go c.heartbeat(envelope.ID, heartbeatDone)

	err = handler(c.ctx, &msg)
	close(heartbeatDone)

	if err != nil {
		if envelope.Received >= c.maxReceive {
			// Delivery budget spent. The job would otherwise sit in
			// running forever, so fail it before the message goes.
			c.logger.Error().
				Err(err).
				Str("message_id", envelope.ID).
				Str("job_id", msg.JobID).
				Int("attempt", envelope.Received).
				Msg("Handler failed on final delivery, dropping message")
			if c.onFailure != nil {
				c.onFailure(c.ctx, &msg, err)
			}
			if delErr := c.queue.Delete(c.ctx, envelope.ID); delErr != nil {
				c.logger.Warn().Err(delErr).Msg("Failed to delete exhausted message")
			}
			return nil
		}

		c.logger.Warn().
			Err(err).
			Str("message_id", envelope.ID).
			Str("job_id", msg.JobID).
			Int("attempt", envelope.Received).
			Msg("Handler failed, scheduling retry")
		if extErr := c.queue.Extend(c.ctx, envelope.ID, c.retryDelay); extErr != nil {
			c.logger.Warn().Err(extErr).Msg("Failed to schedule retry")
		}
		return nil
	}

	if err := c.queue.Delete(c.ctx, envelope.ID); err != nil {
		c.logger.Warn().Err(err).Str("message_id", envelope.ID).Msg("Failed to acknowledge message")
	}
	return nil
}

// heartbeat re-extends the message claim at half the visibility timeout
// until done closes
func (c *Consumer) heartbeat(messageID string, done <-chan struct{}) {
	interval := c.visibility / 2
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.queue.Extend(c.ctx, messageID, c.visibility); err != nil {
				c.logger.Warn().Err(err).Str("message_id", messageID).Msg("Failed to extend message claim")
			}
		}
	}
}
