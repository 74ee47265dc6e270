package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mediaparser/internal/common"
	"github.com/ternarybob/mediaparser/internal/interfaces"
	"github.com/ternarybob/mediaparser/internal/models"
)

func newTestStore(t *testing.T) interfaces.StorageManager {
	t.Helper()
	cfg := &common.SQLiteConfig{
		Path:          filepath.Join(t.TempDir(), "test.db"),
		WALMode:       false,
		BusyTimeoutMS: 5000,
		CacheSizeMB:   4,
	}
	store, err := NewManager(arbor.NewLogger(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedJob(t *testing.T, store interfaces.StorageManager) *models.Job {
	t.Helper()
	job := models.NewImportJob("/photos")
	require.NoError(t, store.JobStorage().CreateJob(context.Background(), job))
	return job
}

func TestJobRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := models.NewExportJob("import-abc", "/exports")
	require.NoError(t, store.JobStorage().CreateJob(ctx, job))

	got, err := store.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobTypeExport, got.Type)
	assert.Equal(t, "import-abc", got.SourceJobID)
	assert.Equal(t, "/exports", got.OutputDir)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Nil(t, got.StartedAt)
}

func TestGetJob_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.JobStorage().GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	job := seedJob(t, store)

	require.NoError(t, store.JobStorage().UpdateStatus(ctx, job.ID, models.JobStatusRunning, ""))

	got, err := store.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, got.Status)
	require.NotNil(t, got.StartedAt)
	started := *got.StartedAt

	// Pause and resume must not move the original start time.
	require.NoError(t, store.JobStorage().UpdateStatus(ctx, job.ID, models.JobStatusPaused, ""))
	require.NoError(t, store.JobStorage().UpdateStatus(ctx, job.ID, models.JobStatusRunning, ""))
	got, err = store.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, got.StartedAt.Equal(started))

	require.NoError(t, store.JobStorage().UpdateStatus(ctx, job.ID, models.JobStatusCompleted, ""))
	got, err = store.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.CompletedAt)
}

func TestUpdateStatus_GuardsTransitions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	job := seedJob(t, store)

	err := store.JobStorage().UpdateStatus(ctx, job.ID, models.JobStatusCompleted, "")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	// The failed update must not have touched the row.
	got, err := store.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)

	err = store.JobStorage().UpdateStatus(ctx, "missing", models.JobStatusRunning, "")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestIncrementProgress(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	job := seedJob(t, store)

	require.NoError(t, store.JobStorage().IncrementProgress(ctx, job.ID, 10, 1, "img_010.jpg"))
	require.NoError(t, store.JobStorage().IncrementProgress(ctx, job.ID, 5, 0, "img_015.jpg"))

	got, err := store.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, got.ProcessedFiles)
	assert.Equal(t, 1, got.ErrorCount)
	assert.Equal(t, "img_015.jpg", got.CurrentFile)

	// An empty filename keeps the last recorded one.
	require.NoError(t, store.JobStorage().IncrementProgress(ctx, job.ID, 1, 0, ""))
	got, err = store.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "img_015.jpg", got.CurrentFile)

	assert.ErrorIs(t, store.JobStorage().IncrementProgress(ctx, job.ID, -1, 0, ""), models.ErrValidation)
	assert.ErrorIs(t, store.JobStorage().IncrementProgress(ctx, "missing", 1, 0, ""), models.ErrNotFound)
}

func TestDeleteTerminalJobsBefore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := seedJob(t, store)
	require.NoError(t, store.JobStorage().UpdateStatus(ctx, old.ID, models.JobStatusRunning, ""))
	require.NoError(t, store.JobStorage().UpdateStatus(ctx, old.ID, models.JobStatusCompleted, ""))

	halted := seedJob(t, store)
	require.NoError(t, store.JobStorage().UpdateStatus(ctx, halted.ID, models.JobStatusRunning, ""))
	require.NoError(t, store.JobStorage().UpdateStatus(ctx, halted.ID, models.JobStatusHalted, "too many errors"))

	active := seedJob(t, store)
	require.NoError(t, store.JobStorage().UpdateStatus(ctx, active.ID, models.JobStatusRunning, ""))

	// Cutoff in the future removes the terminal jobs, halted included,
	// but never a running one.
	deleted, err := store.JobStorage().DeleteTerminalJobsBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = store.JobStorage().GetJob(ctx, old.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = store.JobStorage().GetJob(ctx, halted.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = store.JobStorage().GetJob(ctx, active.ID)
	assert.NoError(t, err)

	// A cutoff in the past removes nothing further.
	deleted, err = store.JobStorage().DeleteTerminalJobsBefore(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestListJobs_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := models.NewImportJob("/a")
	first.CreatedAt = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, store.JobStorage().CreateJob(ctx, first))

	second := models.NewImportJob("/b")
	require.NoError(t, store.JobStorage().CreateJob(ctx, second))

	jobs, err := store.JobStorage().ListJobs(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
	assert.Equal(t, first.ID, jobs[1].ID)
}

func TestSettings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	settings := store.SettingsStorage()

	require.NoError(t, settings.Set(ctx, "cluster_window_secs", "5"))
	require.NoError(t, settings.Set(ctx, "cluster_window_secs", "8"))

	value, err := settings.Get(ctx, "cluster_window_secs")
	require.NoError(t, err)
	assert.Equal(t, "8", value)

	require.NoError(t, settings.Set(ctx, "error_threshold", "0.2"))
	all, err := settings.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, settings.Delete(ctx, "cluster_window_secs"))
	_, err = settings.Get(ctx, "cluster_window_secs")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDecisions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	decisions := store.DecisionStorage()

	first := &models.UserDecision{GroupID: "grp-1", FileID: "file-a", Action: models.ActionResolveGroup, Detail: "kept file-a"}
	require.NoError(t, decisions.Record(ctx, first))
	assert.NotZero(t, first.ID)

	second := &models.UserDecision{GroupID: "grp-1", Action: models.ActionKeepAll}
	require.NoError(t, decisions.Record(ctx, second))

	byGroup, err := decisions.ListByGroup(ctx, "grp-1")
	require.NoError(t, err)
	require.Len(t, byGroup, 2)
	assert.Equal(t, models.ActionResolveGroup, byGroup[0].Action)
	assert.Equal(t, models.ActionKeepAll, byGroup[1].Action)
	assert.False(t, byGroup[0].CreatedAt.IsZero())

	byFile, err := decisions.ListByFile(ctx, "file-a")
	require.NoError(t, err)
	require.Len(t, byFile, 1)
	assert.Equal(t, "kept file-a", byFile[0].Detail)
}
