package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mediaparser/internal/common"
	"github.com/ternarybob/mediaparser/internal/models"
)

func newTestConsumer(t *testing.T, q *BadgerManager, maxReceive int) *Consumer {
	t.Helper()
	cfg := &common.QueueConfig{
		PollInterval:      "10ms",
		VisibilityTimeout: "1m",
		RetryDelay:        "10ms",
		MaxReceive:        maxReceive,
	}
	c := NewConsumer(q, cfg, arbor.NewLogger())
	t.Cleanup(c.cancel)
	return c
}

func enqueueJobMessage(t *testing.T, q *BadgerManager, jobID, jobType string) {
	t.Helper()
	body, err := json.Marshal(&models.QueueMessage{JobID: jobID, Type: jobType})
	require.NoError(t, err)
	_, err = q.Enqueue(context.Background(), body, 0)
	require.NoError(t, err)
}

func TestConsumer_RetriesBeforeFinalDelivery(t *testing.T) {
	q := newTestQueue(t, time.Minute, 3)
	c := newTestConsumer(t, q, 3)

	attempts := 0
	c.RegisterHandler("import", func(ctx context.Context, msg *models.QueueMessage) error {
		attempts++
		return errors.New("boom")
	})

	var failures int
	c.SetFailureHandler(func(ctx context.Context, msg *models.QueueMessage, cause error) {
		failures++
	})

	enqueueJobMessage(t, q, "job-1", "import")

	// First two failed deliveries schedule retries, not failure.
	for i := 0; i < 2; i++ {
		require.NoError(t, c.processOne())
		time.Sleep(15 * time.Millisecond)
	}
	assert.Equal(t, 2, attempts)
	assert.Zero(t, failures)
}

func TestConsumer_FinalDeliveryFailsJobAndDropsMessage(t *testing.T) {
	q := newTestQueue(t, time.Minute, 2)
	c := newTestConsumer(t, q, 2)

	c.RegisterHandler("import", func(ctx context.Context, msg *models.QueueMessage) error {
		return errors.New("boom")
	})

	var failedJob string
	var failedCause error
	c.SetFailureHandler(func(ctx context.Context, msg *models.QueueMessage, cause error) {
		failedJob = msg.JobID
		failedCause = cause
	})

	enqueueJobMessage(t, q, "job-1", "import")

	require.NoError(t, c.processOne())
	time.Sleep(15 * time.Millisecond)
	require.NoError(t, c.processOne())

	// Budget spent on the second delivery: the job is reported failed
	// and the message is gone for good.
	assert.Equal(t, "job-1", failedJob)
	require.Error(t, failedCause)

	assert.ErrorIs(t, c.processOne(), models.ErrNoMessage)
	visible, inflight, err := q.Depth(context.Background())
	require.NoError(t, err)
	assert.Zero(t, visible)
	assert.Zero(t, inflight)
}

func TestConsumer_SuccessAcksMessage(t *testing.T) {
	q := newTestQueue(t, time.Minute, 3)
	c := newTestConsumer(t, q, 3)

	var handled []string
	c.RegisterHandler("import", func(ctx context.Context, msg *models.QueueMessage) error {
		handled = append(handled, msg.JobID)
		return nil
	})

	enqueueJobMessage(t, q, "job-1", "import")

	require.NoError(t, c.processOne())
	assert.Equal(t, []string{"job-1"}, handled)
	assert.ErrorIs(t, c.processOne(), models.ErrNoMessage)
}

func TestConsumer_UnroutableMessageDropped(t *testing.T) {
	q := newTestQueue(t, time.Minute, 3)
	c := newTestConsumer(t, q, 3)

	enqueueJobMessage(t, q, "job-1", "unknown-type")

	require.NoError(t, c.processOne())
	assert.ErrorIs(t, c.processOne(), models.ErrNoMessage)
}
