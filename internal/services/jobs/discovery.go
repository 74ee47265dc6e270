package jobs

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/mediaparser/internal/common"
	"github.com/ternarybob/mediaparser/internal/models"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true,
	".webm": true, ".m4v": true, ".3gp": true, ".mts": true,
}

// DiscoverFiles walks a source directory and returns a file record for
// every media file found, in lexicographic source path order.
// Unreadable subtrees are skipped rather than failing the walk.
func DiscoverFiles(jobID, sourceDir string, allowedExtensions []string) ([]*models.MediaFile, error) {
	allowed := make(map[string]bool, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}

	var files []*models.MediaFile
	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			// Hidden directories hold no user media.
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !allowed[ext] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		files = append(files, &models.MediaFile{
			ID:         common.NewUnitID(),
			JobID:      jobID,
			SourcePath: path,
			FileName:   d.Name(),
			Extension:  ext,
			FileSize:   info.Size(),
			IsVideo:    videoExtensions[ext],
			Confidence: models.ConfidenceNone,
			CreatedAt:  time.Now().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].SourcePath < files[j].SourcePath
	})
	return files, nil
}
