package jobs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))
}

func TestDiscoverFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.jpg"))
	writeFile(t, filepath.Join(root, "a.JPG"))
	writeFile(t, filepath.Join(root, "notes.txt"))
	writeFile(t, filepath.Join(root, "sub", "clip.mp4"))
	writeFile(t, filepath.Join(root, ".thumbnails", "hidden.jpg"))

	files, err := DiscoverFiles("job-1", root, []string{".jpg", ".mp4"})
	require.NoError(t, err)
	require.Len(t, files, 3)

	// Lexicographic by source path, extensions matched case-insensitively.
	assert.Equal(t, filepath.Join(root, "a.JPG"), files[0].SourcePath)
	assert.Equal(t, filepath.Join(root, "b.jpg"), files[1].SourcePath)
	assert.Equal(t, filepath.Join(root, "sub", "clip.mp4"), files[2].SourcePath)

	assert.Equal(t, ".jpg", files[0].Extension)
	assert.False(t, files[0].IsVideo)
	assert.True(t, files[2].IsVideo)

	for _, f := range files {
		assert.Equal(t, "job-1", f.JobID)
		assert.NotEmpty(t, f.ID)
		assert.Equal(t, int64(4), f.FileSize)
	}
}

func TestDiscoverFiles_EmptyDir(t *testing.T) {
	files, err := DiscoverFiles("job-1", t.TempDir(), []string{".jpg"})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscoverFiles_MissingDir(t *testing.T) {
	files, err := DiscoverFiles("job-1", filepath.Join(t.TempDir(), "gone"), []string{".jpg"})
	// The walk callback tolerates the root error, so discovery returns
	// an empty set rather than failing.
	require.NoError(t, err)
	assert.Empty(t, files)
}
