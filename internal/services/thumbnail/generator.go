// Package thumbnail renders preview images for the review UI and
// supplies decoded frames for perceptual hashing of videos.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/image/draw"

	"github.com/ternarybob/mediaparser/internal/common"
)

const (
	maxEdge     = 320
	jpegQuality = 80
)

// Generator renders thumbnails into the workspace thumbnails directory
type Generator struct {
	dir        string
	ffmpegPath string
	timeout    time.Duration
	logger     arbor.ILogger
}

// NewGenerator creates a thumbnail generator. Thumbnails land under
// {workspace}/thumbnails/.
func NewGenerator(workspace *common.WorkspaceConfig, tools *common.ToolsConfig, logger arbor.ILogger) (*Generator, error) {
	dir := filepath.Join(workspace.Dir, "thumbnails")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create thumbnails directory: %w", err)
	}

	timeout, err := time.ParseDuration(tools.ProbeTimeout)
	if err != nil || timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Generator{
		dir:        dir,
		ffmpegPath: tools.FFmpegPath,
		timeout:    timeout,
		logger:     logger,
	}, nil
}

// Dir returns the thumbnails directory, served statically by the API
func (g *Generator) Dir() string {
	return g.dir
}

// FromImage writes a thumbnail for a decoded image and returns the
// thumbnail path relative to the thumbnails directory.
func (g *Generator) FromImage(fileID string, img image.Image) (string, error) {
	scaled := scaleDown(img)

	name := fileID + ".jpg"
	out, err := os.Create(filepath.Join(g.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create thumbnail: %w", err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, scaled, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return name, nil
}

// VideoFrame decodes one frame from a video at the given offset using
// ffmpeg. The frame is used both for the thumbnail and the perceptual
// hash.
func (g *Generator) VideoFrame(ctx context.Context, path string, offset time.Duration) (image.Image, error) {
	if _, err := exec.LookPath(g.ffmpegPath); err != nil {
		return nil, fmt.Errorf("ffmpeg not available: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	seconds := fmt.Sprintf("%.2f", offset.Seconds())
	cmd := exec.CommandContext(ctx, g.ffmpegPath,
		"-ss", seconds,
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-v", "quiet",
		"pipe:1")

	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("frame extraction failed for %s: %w", path, err)
	}

	img, _, err := image.Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode extracted frame: %w", err)
	}
	return img, nil
}

// scaleDown fits an image within maxEdge on its longest side,
// preserving aspect ratio. Images already small enough pass through.
func scaleDown(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxEdge && h <= maxEdge {
		return img
	}

	var nw, nh int
	if w > h {
		nw = maxEdge
		nh = h * maxEdge / w
	} else {
		nh = maxEdge
		nw = w * maxEdge / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}
