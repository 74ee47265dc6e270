// -----------------------------------------------------------------------
// ProcessResult - outcome of processing a single file, batched into
// transactional commits by the job engine
// -----------------------------------------------------------------------

package models

import "time"

// ProcessResult carries everything a worker learned about one file.
// The job engine collects these and commits them in batches.
type ProcessResult struct {
	FileID string `json:"file_id"`

	ContentHash    string `json:"content_hash,omitempty"`
	PerceptualHash string `json:"perceptual_hash,omitempty"`

	Timestamp  *time.Time           `json:"timestamp,omitempty"`
	Source     string               `json:"source,omitempty"`
	Confidence ConfidenceLevel      `json:"confidence"`
	Candidates []TimestampCandidate `json:"candidates,omitempty"`

	MimeType string `json:"mime_type,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`

	QualityScore  float64 `json:"quality_score,omitempty"`
	ThumbnailPath string  `json:"thumbnail_path,omitempty"`

	// Err is set when processing failed. The file still counts as
	// processed so the job can make progress past bad inputs.
	Err string `json:"error,omitempty"`
}

// Failed reports whether processing this file errored.
func (r *ProcessResult) Failed() bool {
	return r.Err != ""
}
