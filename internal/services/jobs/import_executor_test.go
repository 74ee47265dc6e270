package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mediaparser/internal/common"
	"github.com/ternarybob/mediaparser/internal/interfaces"
	"github.com/ternarybob/mediaparser/internal/models"
	"github.com/ternarybob/mediaparser/internal/services/duplicates"
	"github.com/ternarybob/mediaparser/internal/services/metadata"
	"github.com/ternarybob/mediaparser/internal/services/processor"
	"github.com/ternarybob/mediaparser/internal/services/thumbnail"
	"github.com/ternarybob/mediaparser/internal/services/timestamp"
	"github.com/ternarybob/mediaparser/internal/storage/sqlite"
)

// newTestExecutor wires an import executor over a temp store with one
// worker, so results land in filename order and the stop points are
// deterministic. External tools are pointed at nothing; the processor
// falls back to filesystem dates.
func newTestExecutor(t *testing.T) (*ImportExecutor, interfaces.StorageManager, *common.Config) {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.Workspace.Dir = t.TempDir()
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Storage.SQLite.WALMode = false
	cfg.Processing.WorkerThreads = 1
	cfg.Processing.BatchCommitSize = 4
	cfg.Tools.ExifToolPath = "definitely-not-exiftool"
	cfg.Tools.FFmpegPath = "definitely-not-ffmpeg"

	logger := arbor.NewLogger()
	store, err := sqlite.NewManager(logger, &cfg.Storage.SQLite)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	probe := metadata.NewProbe(&cfg.Tools, logger)
	resolver := timestamp.NewResolver(cfg.Location(), cfg.Processing.MinValidYear, logger)
	thumbs, err := thumbnail.NewGenerator(&cfg.Workspace, &cfg.Tools, logger)
	require.NoError(t, err)

	proc := processor.NewProcessor(probe, resolver, thumbs, logger)
	detector := duplicates.NewDetector(store.FileStorage(), store.JobStorage(), cfg.ClusterWindow(), logger)
	return NewImportExecutor(store, proc, detector, cfg, logger), store, cfg
}

// seedImportFiles inserts count file rows for the job. Indices in
// broken get a source path that does not exist, so processing them
// fails at the content hash.
func seedImportFiles(t *testing.T, store interfaces.StorageManager, jobID, dir string, count int, broken map[int]bool) {
	t.Helper()
	files := make([]*models.MediaFile, count)
	for i := range files {
		name := fmt.Sprintf("img_%03d.jpg", i)
		path := filepath.Join(dir, name)
		if broken[i] {
			path = filepath.Join(dir, "gone", name)
		} else {
			require.NoError(t, os.WriteFile(path, []byte("media bytes "+name), 0644))
		}
		files[i] = &models.MediaFile{
			ID:         common.NewUnitID(),
			JobID:      jobID,
			SourcePath: path,
			FileName:   name,
			Extension:  ".jpg",
			FileSize:   int64(12 + len(name)),
			CreatedAt:  time.Now().UTC(),
		}
	}
	require.NoError(t, store.FileStorage().InsertFiles(context.Background(), files))
}

func startedJob(t *testing.T, store interfaces.StorageManager, dir string) *models.Job {
	t.Helper()
	ctx := context.Background()
	job := models.NewImportJob(dir)
	require.NoError(t, store.JobStorage().CreateJob(ctx, job))
	require.NoError(t, store.JobStorage().UpdateStatus(ctx, job.ID, models.JobStatusRunning, ""))
	job.Status = models.JobStatusRunning
	return job
}

func TestProcessAll_PauseStopsWithinOneFile(t *testing.T) {
	exec, store, _ := newTestExecutor(t)
	ctx := context.Background()
	dir := t.TempDir()

	job := startedJob(t, store, dir)
	seedImportFiles(t, store, job.ID, dir, 6, nil)

	// The pause request is already in place when processing starts; the
	// first status poll must honor it.
	require.NoError(t, store.JobStorage().UpdateStatus(ctx, job.ID, models.JobStatusPaused, ""))

	pending, err := store.FileStorage().PendingFiles(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, pending, 6)

	status, err := exec.processAll(ctx, job, pending)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPaused, status)

	got, err := store.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Greater(t, got.ProcessedFiles, 0, "in-flight work still lands")
	assert.Less(t, got.ProcessedFiles, 6, "pause must not run the job to completion")

	// Resume picks up from the first unprocessed file and finishes.
	require.NoError(t, store.JobStorage().UpdateStatus(ctx, job.ID, models.JobStatusRunning, ""))
	got, err = store.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)

	pending, err = store.FileStorage().PendingFiles(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, pending, 6-got.ProcessedFiles)

	status, err = exec.processAll(ctx, got, pending)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, status)

	got, err = store.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.ProcessedFiles)
	assert.Zero(t, got.ErrorCount)
}

func TestProcessAll_HaltsOnExactFileThatTipsErrorRate(t *testing.T) {
	exec, store, cfg := newTestExecutor(t)
	ctx := context.Background()
	dir := t.TempDir()

	require.Equal(t, 10, cfg.Processing.MinSample)
	require.InDelta(t, 0.10, cfg.Processing.ErrorThreshold, 1e-9)

	// Files 10 and up are unreadable. The rate first exceeds 10% at the
	// 12th result: 1/11 is under, 2/12 is over.
	broken := map[int]bool{}
	for i := 10; i < 20; i++ {
		broken[i] = true
	}
	job := startedJob(t, store, dir)
	seedImportFiles(t, store, job.ID, dir, 20, broken)

	pending, err := store.FileStorage().PendingFiles(ctx, job.ID)
	require.NoError(t, err)

	status, err := exec.processAll(ctx, job, pending)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusHalted, status)

	got, err := store.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusHalted, got.Status)
	assert.Equal(t, 12, got.ProcessedFiles, "progress stops at the tipping file")
	assert.Equal(t, 2, got.ErrorCount)
	assert.Equal(t, "img_011.jpg", got.CurrentFile)
	assert.Contains(t, got.Error, "error threshold exceeded")
	assert.NotNil(t, got.CompletedAt, "halted is terminal")
}

func TestProcessAll_EmptyPendingKeepsRunning(t *testing.T) {
	exec, store, _ := newTestExecutor(t)
	job := startedJob(t, store, t.TempDir())

	status, err := exec.processAll(context.Background(), job, nil)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, status)
}
