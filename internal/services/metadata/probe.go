// Package metadata wraps the external exiftool binary for consistent
// metadata extraction across media types, with a native EXIF decoder
// as fallback when the tool is not installed.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mediaparser/internal/common"
	"github.com/ternarybob/mediaparser/internal/models"
)

// Datetime tags checked in priority order
var datetimeTags = []string{
	models.SourceExifDateTimeOriginal,
	models.SourceExifCreateDate,
	models.SourceQuickTimeCreateDate,
	models.SourceExifModifyDate,
	models.SourceFileModifyDate,
	models.SourceFileCreateDate,
}

// DatetimeTags returns the metadata tags carrying capture times, in
// priority order.
func DatetimeTags() []string {
	return datetimeTags
}

// Probe extracts raw metadata from media files
type Probe struct {
	toolPath string
	timeout  time.Duration
	logger   arbor.ILogger
}

// NewProbe creates a metadata probe using the configured exiftool path
func NewProbe(config *common.ToolsConfig, logger arbor.ILogger) *Probe {
	timeout, err := time.ParseDuration(config.ProbeTimeout)
	if err != nil || timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Probe{
		toolPath: config.ExifToolPath,
		timeout:  timeout,
		logger:   logger,
	}
}

// Available reports whether the exiftool binary can be executed
func (p *Probe) Available() bool {
	_, err := exec.LookPath(p.toolPath)
	return err == nil
}

// Version returns the exiftool version string, used by the health check
func (p *Probe) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, p.toolPath, "-ver").Output()
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrProbeUnavailable, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Extract returns the file's metadata as group-prefixed tag values
// (e.g. "EXIF:DateTimeOriginal"). Falls back to the native EXIF
// decoder when exiftool is missing; non-string values are stringified.
func (p *Probe) Extract(ctx context.Context, path string) (map[string]string, error) {
	if !p.Available() {
		return p.extractNative(path)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// -j JSON output, -G group-prefixed tag names, -n numeric values
	out, err := exec.CommandContext(ctx, p.toolPath, "-j", "-G", "-n", path).Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("metadata probe timed out after %s: %s", p.timeout, path)
		}
		return nil, fmt.Errorf("metadata probe failed for %s: %w", path, err)
	}

	var records []map[string]interface{}
	if err := json.Unmarshal(out, &records); err != nil {
		return nil, fmt.Errorf("failed to parse probe output for %s: %w", path, err)
	}
	if len(records) == 0 {
		return map[string]string{}, nil
	}

	tags := make(map[string]string, len(records[0]))
	for key, value := range records[0] {
		switch v := value.(type) {
		case string:
			tags[key] = v
		case float64:
			if v == float64(int64(v)) {
				tags[key] = fmt.Sprintf("%d", int64(v))
			} else {
				tags[key] = fmt.Sprintf("%v", v)
			}
		default:
			tags[key] = fmt.Sprintf("%v", v)
		}
	}
	return tags, nil
}

// extractNative decodes EXIF directly for JPEG/HEIC/TIFF files. Video
// containers need the external tool; for those only filesystem tags
// are returned.
func (p *Probe) extractNative(path string) (map[string]string, error) {
	tags := make(map[string]string)

	// Filesystem times are always available.
	if info, err := os.Stat(path); err == nil {
		tags[models.SourceFileModifyDate] = info.ModTime().UTC().Format("2006:01:02 15:04:05+00:00")
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jpg", ".jpeg", ".heic", ".heif", ".tif", ".tiff":
	default:
		p.logger.Debug().Str("path", path).Msg("Native EXIF fallback skipped for non-EXIF container")
		return tags, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return tags, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		// No EXIF segment is a normal condition, not a probe failure.
		return tags, nil
	}

	fields := []struct {
		name exif.FieldName
		tag  string
	}{
		{exif.DateTimeOriginal, models.SourceExifDateTimeOriginal},
		{exif.DateTimeDigitized, models.SourceExifCreateDate},
		{exif.DateTime, models.SourceExifModifyDate},
	}

	for _, field := range fields {
		if t, err := x.Get(field.name); err == nil {
			if s, err := t.StringVal(); err == nil && s != "" {
				tags[field.tag] = s
			}
		}
	}

	if w, err := x.Get(exif.PixelXDimension); err == nil {
		if v, err := w.Int(0); err == nil {
			tags["EXIF:ImageWidth"] = fmt.Sprintf("%d", v)
		}
	}
	if h, err := x.Get(exif.PixelYDimension); err == nil {
		if v, err := h.Int(0); err == nil {
			tags["EXIF:ImageHeight"] = fmt.Sprintf("%d", v)
		}
	}

	return tags, nil
}

// Dimensions pulls image width and height out of extracted tags
func Dimensions(tags map[string]string) (int, int) {
	width := firstTag(tags, "EXIF:ImageWidth", "File:ImageWidth", "QuickTime:ImageWidth")
	height := firstTag(tags, "EXIF:ImageHeight", "File:ImageHeight", "QuickTime:ImageHeight")

	var w, h int
	fmt.Sscanf(width, "%d", &w)
	fmt.Sscanf(height, "%d", &h)
	return w, h
}

// MIMEType returns the probed MIME type, if present
func MIMEType(tags map[string]string) string {
	return tags["File:MIMEType"]
}

func firstTag(tags map[string]string, keys ...string) string {
	for _, key := range keys {
		if v, ok := tags[key]; ok && v != "" {
			return v
		}
	}
	return ""
}
