// Package processor runs the per-file pipeline: content hash,
// metadata probe, timestamp resolution, perceptual hash and thumbnail.
package processor

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mediaparser/internal/models"
	"github.com/ternarybob/mediaparser/internal/services/hashing"
	"github.com/ternarybob/mediaparser/internal/services/metadata"
	"github.com/ternarybob/mediaparser/internal/services/thumbnail"
	"github.com/ternarybob/mediaparser/internal/services/timestamp"
)

// videoFrameOffset is where the representative frame is sampled.
// Frame zero is often black or a fade-in.
const videoFrameOffset = time.Second

// Processor executes the per-file pipeline. Safe for concurrent use;
// each Process call touches only its own file.
type Processor struct {
	probe    *metadata.Probe
	resolver *timestamp.Resolver
	thumbs   *thumbnail.Generator
	logger   arbor.ILogger
}

// NewProcessor wires the pipeline stages together
func NewProcessor(probe *metadata.Probe, resolver *timestamp.Resolver, thumbs *thumbnail.Generator, logger arbor.ILogger) *Processor {
	return &Processor{
		probe:    probe,
		resolver: resolver,
		thumbs:   thumbs,
		logger:   logger,
	}
}

// Process runs the full pipeline for one file. Failures that leave the
// file unusable set Err on the result; degraded metadata (no EXIF, no
// decodable image) is tolerated and the file still gets a content hash.
// Panics anywhere in the pipeline, a corrupt file blowing up a decoder
// included, are converted into a failed result rather than propagated.
func (p *Processor) Process(ctx context.Context, file *models.MediaFile) (result *models.ProcessResult) {
	result = &models.ProcessResult{
		FileID:     file.ID,
		Confidence: models.ConfidenceNone,
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Str("path", file.SourcePath).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Processing panicked")
			result.Err = fmt.Sprintf("processing panic: %v", r)
		}
	}()

	contentHash, err := hashing.ContentHash(file.SourcePath)
	if err != nil {
		result.Err = fmt.Sprintf("content hash: %v", err)
		return result
	}
	result.ContentHash = contentHash

	// Magic-byte MIME detection catches files with lying extensions.
	if mt, err := mimetype.DetectFile(file.SourcePath); err == nil {
		result.MimeType = mt.String()
		if !extensionMatchesMime(file.Extension, mt) {
			p.logger.Warn().
				Str("path", file.SourcePath).
				Str("extension", file.Extension).
				Str("detected", mt.String()).
				Msg("Extension does not match detected type")
		}
	}

	tags, err := p.probe.Extract(ctx, file.SourcePath)
	if err != nil {
		p.logger.Warn().Err(err).Str("path", file.SourcePath).Msg("Metadata probe failed, falling back to filename and filesystem")
		tags = map[string]string{}
	}
	ensureFilesystemTags(tags, file.SourcePath)

	candidates := p.resolver.Candidates(tags, file.FileName)
	resolved := p.resolver.Resolve(candidates)
	result.Timestamp = resolved.Time
	result.Source = resolved.Source
	result.Confidence = resolved.Confidence
	result.Candidates = resolved.Candidates

	result.Width, result.Height = metadata.Dimensions(tags)

	if img := p.decode(ctx, file); img != nil {
		result.PerceptualHash = hashing.PerceptualHashImage(img)

		if result.Width == 0 || result.Height == 0 {
			bounds := img.Bounds()
			result.Width, result.Height = bounds.Dx(), bounds.Dy()
		}

		if thumbPath, err := p.thumbs.FromImage(file.ID, img); err == nil {
			result.ThumbnailPath = thumbPath
		} else {
			p.logger.Warn().Err(err).Str("path", file.SourcePath).Msg("Thumbnail generation failed")
		}
	}

	result.QualityScore = qualityScore(result.Width, result.Height, file.FileSize)
	return result
}

// decode returns a representative image: the image itself for photos,
// a sampled frame for videos. Nil when no image can be produced; the
// file then has no perceptual hash and never enters similarity
// comparison.
func (p *Processor) decode(ctx context.Context, file *models.MediaFile) image.Image {
	if file.IsVideo {
		img, err := p.thumbs.VideoFrame(ctx, file.SourcePath, videoFrameOffset)
		if err != nil {
			p.logger.Debug().Err(err).Str("path", file.SourcePath).Msg("Video frame extraction unavailable")
			return nil
		}
		return img
	}

	f, err := os.Open(file.SourcePath)
	if err != nil {
		return nil
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		p.logger.Debug().Err(err).Str("path", file.SourcePath).Msg("Image decode failed, skipping perceptual hash")
		return nil
	}
	return img
}

// qualityScore ranks group members for the keeper recommendation.
// Resolution dominates; size breaks ties between equal resolutions.
func qualityScore(width, height int, size int64) float64 {
	megapixels := float64(width*height) / 1e6
	return megapixels*10 + float64(size)/1e8
}

// ensureFilesystemTags guarantees a filesystem timestamp candidate
// even when the external probe is unavailable.
func ensureFilesystemTags(tags map[string]string, path string) {
	if _, ok := tags[models.SourceFileModifyDate]; ok {
		return
	}
	if info, err := os.Stat(path); err == nil {
		tags[models.SourceFileModifyDate] = info.ModTime().UTC().Format("2006:01:02 15:04:05+00:00")
	}
}

// extensionMatchesMime checks the file extension against the detected
// MIME type, walking the detection hierarchy for aliases.
func extensionMatchesMime(extension string, mt *mimetype.MIME) bool {
	ext := strings.ToLower(extension)
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	for m := mt; m != nil; m = m.Parent() {
		if strings.EqualFold(m.Extension(), ext) {
			return true
		}
	}
	// jpg/jpeg and similar alias pairs
	return strings.TrimPrefix(ext, ".") == strings.TrimPrefix(strings.ToLower(mt.Extension()), ".")
}
