package processor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mediaparser/internal/common"
	"github.com/ternarybob/mediaparser/internal/models"
	"github.com/ternarybob/mediaparser/internal/services/metadata"
	"github.com/ternarybob/mediaparser/internal/services/thumbnail"
	"github.com/ternarybob/mediaparser/internal/services/timestamp"
)

// writeTestJPEG renders a small decodable image to disk
func writeTestJPEG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for x := 0; x < 32; x++ {
		for y := 0; y < 24; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 10), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func testTools() *common.ToolsConfig {
	return &common.ToolsConfig{
		ExifToolPath: "definitely-not-exiftool",
		FFmpegPath:   "definitely-not-ffmpeg",
		ProbeTimeout: "5s",
	}
}

func newTestProcessor(t *testing.T, thumbs *thumbnail.Generator) *Processor {
	t.Helper()
	logger := arbor.NewLogger()
	probe := metadata.NewProbe(testTools(), logger)
	loc, err := time.LoadLocation("UTC")
	require.NoError(t, err)
	resolver := timestamp.NewResolver(loc, 2000, logger)
	return NewProcessor(probe, resolver, thumbs, logger)
}

func TestProcess_ImageWithoutMetadataTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "IMG_0001.jpg")
	writeTestJPEG(t, path)

	thumbs, err := thumbnail.NewGenerator(&common.WorkspaceConfig{Dir: t.TempDir()}, testTools(), arbor.NewLogger())
	require.NoError(t, err)
	proc := newTestProcessor(t, thumbs)

	info, err := os.Stat(path)
	require.NoError(t, err)
	file := &models.MediaFile{
		ID:         common.NewUnitID(),
		SourcePath: path,
		FileName:   "IMG_0001.jpg",
		Extension:  ".jpg",
		FileSize:   info.Size(),
	}

	result := proc.Process(context.Background(), file)
	assert.False(t, result.Failed(), "degraded metadata must not fail the file: %s", result.Err)
	assert.NotEmpty(t, result.ContentHash)
	assert.NotEmpty(t, result.PerceptualHash)
	assert.Equal(t, 32, result.Width)
	assert.Equal(t, 24, result.Height)
	assert.NotEmpty(t, result.ThumbnailPath)

	// No EXIF and no tool leaves only the filesystem date.
	require.NotNil(t, result.Timestamp)
	assert.Equal(t, models.SourceFileModifyDate, result.Source)
	assert.Equal(t, models.ConfidenceLow, result.Confidence)
	require.NotEmpty(t, result.Candidates)
	assert.Equal(t, models.SourceFileModifyDate, result.Candidates[0].Source)
}

func TestProcess_UnreadableFileFails(t *testing.T) {
	thumbs, err := thumbnail.NewGenerator(&common.WorkspaceConfig{Dir: t.TempDir()}, testTools(), arbor.NewLogger())
	require.NoError(t, err)
	proc := newTestProcessor(t, thumbs)

	file := &models.MediaFile{
		ID:         common.NewUnitID(),
		SourcePath: filepath.Join(t.TempDir(), "gone.jpg"),
		FileName:   "gone.jpg",
		Extension:  ".jpg",
	}

	result := proc.Process(context.Background(), file)
	assert.True(t, result.Failed())
	assert.Contains(t, result.Err, "content hash")
}

func TestProcess_PanicBecomesFailedResult(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "IMG_0002.jpg")
	writeTestJPEG(t, path)

	// A nil thumbnail stage blows up mid-pipeline once the image
	// decodes; the failure must come back as a result, not unwind the
	// worker pool.
	proc := newTestProcessor(t, nil)

	file := &models.MediaFile{
		ID:         common.NewUnitID(),
		SourcePath: path,
		FileName:   "IMG_0002.jpg",
		Extension:  ".jpg",
	}

	var result *models.ProcessResult
	require.NotPanics(t, func() {
		result = proc.Process(context.Background(), file)
	})
	require.True(t, result.Failed())
	assert.Contains(t, result.Err, "panic")
}
