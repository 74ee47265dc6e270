package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to JobStatus }{
		{JobStatusPending, JobStatusRunning},
		{JobStatusPending, JobStatusCancelled},
		{JobStatusRunning, JobStatusPaused},
		{JobStatusRunning, JobStatusCompleted},
		{JobStatusRunning, JobStatusFailed},
		{JobStatusRunning, JobStatusCancelled},
		{JobStatusRunning, JobStatusHalted},
		{JobStatusPaused, JobStatusRunning},
		{JobStatusPaused, JobStatusCancelled},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct{ from, to JobStatus }{
		{JobStatusPending, JobStatusCompleted},
		{JobStatusPending, JobStatusPaused},
		{JobStatusCompleted, JobStatusRunning},
		{JobStatusFailed, JobStatusRunning},
		{JobStatusCancelled, JobStatusRunning},
		{JobStatusPaused, JobStatusCompleted},
		{JobStatusHalted, JobStatusRunning},
		{JobStatusHalted, JobStatusCancelled},
		{JobStatusHalted, JobStatusHalted},
	}
	for _, tc := range denied {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be denied", tc.from, tc.to)
	}
}

func TestJobTransition_Timestamps(t *testing.T) {
	job := NewImportJob("/photos")
	assert.Nil(t, job.StartedAt)

	require.NoError(t, job.Transition(JobStatusRunning))
	require.NotNil(t, job.StartedAt)
	started := *job.StartedAt

	// Pausing and resuming must not reset the start time.
	require.NoError(t, job.Transition(JobStatusPaused))
	require.NoError(t, job.Transition(JobStatusRunning))
	assert.True(t, job.StartedAt.Equal(started))

	require.NoError(t, job.Transition(JobStatusCompleted))
	assert.NotNil(t, job.CompletedAt)
}

func TestJobTransition_Invalid(t *testing.T) {
	job := NewImportJob("/photos")
	err := job.Transition(JobStatusCompleted)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, JobStatusPending, job.Status)
}

func TestMarkHalted_IsTerminal(t *testing.T) {
	job := NewImportJob("/photos")
	require.NoError(t, job.Transition(JobStatusRunning))
	require.NoError(t, job.MarkHalted("too many errors"))

	assert.Equal(t, JobStatusHalted, job.Status)
	assert.True(t, job.Status.IsTerminal())
	assert.False(t, job.Status.IsResumable())
	assert.NotNil(t, job.CompletedAt)
	// Recovering from a halt takes a fresh job; this one never runs again.
	assert.ErrorIs(t, job.Transition(JobStatusRunning), ErrInvalidTransition)
}

func TestErrorRate(t *testing.T) {
	job := NewImportJob("/photos")
	assert.Zero(t, job.ErrorRate())

	job.ProcessedFiles = 90
	job.ErrorCount = 9
	assert.InDelta(t, 0.1, job.ErrorRate(), 1e-9)

	job.ProcessedFiles = 10
	job.ErrorCount = 2
	assert.InDelta(t, 0.2, job.ErrorRate(), 1e-9)
}

func TestProgress(t *testing.T) {
	job := NewImportJob("/photos")
	assert.Zero(t, job.Progress())

	job.TotalFiles = 200
	job.ProcessedFiles = 50
	assert.InDelta(t, 0.25, job.Progress(), 1e-9)
}

func TestETASeconds(t *testing.T) {
	job := NewImportJob("/photos")
	assert.Zero(t, job.ETASeconds(), "not started")

	started := time.Now().UTC().Add(-10 * time.Second)
	job.StartedAt = &started
	job.TotalFiles = 100
	assert.Zero(t, job.ETASeconds(), "nothing processed yet")

	// 50 files in ~10s leaves ~10s for the remaining 50.
	job.ProcessedFiles = 50
	assert.InDelta(t, 10, job.ETASeconds(), 1)

	job.ProcessedFiles = 100
	assert.Zero(t, job.ETASeconds(), "done")
}

func TestJobJSONRoundTrip(t *testing.T) {
	job := NewExportJob("import-123", "/exports")
	data, err := job.ToJSON()
	require.NoError(t, err)

	got, err := JobFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, JobTypeExport, got.Type)
	assert.Equal(t, "import-123", got.SourceJobID)
}
