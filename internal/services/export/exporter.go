// Package export copies reviewed files into a timestamp-organized
// output tree and rewrites their metadata to match the resolved
// timestamp and tags.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mediaparser/internal/common"
	"github.com/ternarybob/mediaparser/internal/models"
)

const maxCollisionSuffix = 999

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Exporter writes files into the output tree
type Exporter struct {
	toolPath string
	timeout  time.Duration
	logger   arbor.ILogger
}

// NewExporter creates an exporter using the configured exiftool path
// for metadata rewriting
func NewExporter(tools *common.ToolsConfig, logger arbor.ILogger) *Exporter {
	timeout, err := time.ParseDuration(tools.ProbeTimeout)
	if err != nil || timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Exporter{
		toolPath: tools.ExifToolPath,
		timeout:  timeout,
		logger:   logger,
	}
}

// PlanPath computes where a file belongs in the output tree. Files
// with a timestamp land at {base}/{YYYY}/{YYYYMMDD_HHMMSS}{.ext};
// files without one keep their sanitized name under {base}/unknown/.
func PlanPath(outputBase string, file *models.MediaFile) string {
	if file.FinalTimestamp != nil {
		ts := file.FinalTimestamp.UTC()
		ext := strings.ToLower(filepath.Ext(file.FileName))
		name := ts.Format("20060102_150405") + ext
		return filepath.Join(outputBase, fmt.Sprintf("%04d", ts.Year()), name)
	}
	return filepath.Join(outputBase, "unknown", SanitizeFilename(file.FileName))
}

// SanitizeFilename strips path separators and shell-hostile characters
// from a filename destined for the unknown folder
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "unnamed"
	}
	return name
}

// ResolveCollision returns the first free variant of a path, appending
// _001 through _999 before the extension.
func ResolveCollision(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, nil
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)

	for counter := 1; counter <= maxCollisionSuffix; counter++ {
		candidate := fmt.Sprintf("%s_%03d%s", stem, counter, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("collision resolution failed: more than %d files with same timestamp at %s",
		maxCollisionSuffix, path)
}

// Export copies one file to its planned location. The copy is written
// to a temporary sibling first, size-verified, metadata-rewritten and
// only then renamed into place, so a crash never leaves a half-written
// file at the final path. A failed metadata rewrite does not fail the
// export; the copy still lands and rewriteErr reports the problem so
// callers can record it against the file.
func (e *Exporter) Export(ctx context.Context, file *models.MediaFile, outputBase string, tags []string) (outputPath string, rewriteErr error, err error) {
	if _, err := os.Stat(file.SourcePath); err != nil {
		return "", nil, fmt.Errorf("source file missing: %w", err)
	}

	planned := PlanPath(outputBase, file)
	if err := os.MkdirAll(filepath.Dir(planned), 0755); err != nil {
		return "", nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	finalPath, err := ResolveCollision(planned)
	if err != nil {
		return "", nil, err
	}

	tempPath := finalPath + ".tmp"
	if err := copyVerified(file.SourcePath, tempPath); err != nil {
		os.Remove(tempPath)
		return "", nil, err
	}

	if werr := e.writeMetadata(ctx, tempPath, file, tags); werr != nil {
		e.logger.Warn().Err(werr).Str("path", finalPath).Msg("Metadata rewrite failed, exporting copy as-is")
		rewriteErr = werr
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return "", nil, fmt.Errorf("failed to finalize export: %w", err)
	}

	e.logger.Debug().Str("source", file.SourcePath).Str("output", finalPath).Msg("File exported")
	return finalPath, rewriteErr, nil
}

// copyVerified copies source to dest and confirms the sizes match
func copyVerified(source, dest string) error {
	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}

	written, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("copy failed: %w", err)
	}

	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}
	if written != info.Size() {
		return fmt.Errorf("copy verification failed: size mismatch (source: %d, output: %d)",
			info.Size(), written)
	}

	return nil
}

// writeMetadata stamps the resolved timestamp and tags into the copy
// so downstream tools sort the file correctly without this database.
func (e *Exporter) writeMetadata(ctx context.Context, path string, file *models.MediaFile, tags []string) error {
	if file.FinalTimestamp == nil && len(tags) == 0 {
		return nil
	}
	if _, err := exec.LookPath(e.toolPath); err != nil {
		return fmt.Errorf("%w: %v", models.ErrProbeUnavailable, err)
	}

	args := []string{"-overwrite_original"}

	if file.FinalTimestamp != nil {
		stamp := file.FinalTimestamp.UTC().Format("2006:01:02 15:04:05")
		args = append(args,
			"-EXIF:DateTimeOriginal="+stamp,
			"-EXIF:CreateDate="+stamp,
		)
		if file.IsVideo {
			args = append(args,
				"-QuickTime:CreateDate="+stamp,
				"-QuickTime:ModifyDate="+stamp,
			)
		}
	}

	for _, tag := range tags {
		args = append(args,
			"-IPTC:Keywords+="+tag,
			"-XMP:Subject+="+tag,
		)
	}

	args = append(args, path)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if out, err := exec.CommandContext(ctx, e.toolPath, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("exiftool write failed: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
