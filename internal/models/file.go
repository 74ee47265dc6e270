// -----------------------------------------------------------------------
// MediaFile - per-file record: identity, hashes, timestamp, review state
// -----------------------------------------------------------------------

package models

import "time"

// GroupKind classifies a similarity group by the spacing of its members
type GroupKind string

const (
	GroupKindBurst    GroupKind = "burst"    // rapid fire, max adjacent gap < 2s
	GroupKindPanorama GroupKind = "panorama" // sweep, max adjacent gap < 30s
	GroupKindSimilar  GroupKind = "similar"  // anything slower
)

// MediaFile is the per-file record produced by an import job. One row
// per discovered file; processing fills in hashes and the timestamp,
// duplicate detection fills in group assignments, review endpoints
// flip the review flags.
type MediaFile struct {
	ID    string `json:"id"`
	JobID string `json:"job_id"`

	SourcePath string `json:"source_path"`
	FileName   string `json:"file_name"`
	Extension  string `json:"extension"`
	FileSize   int64  `json:"file_size"`
	MimeType   string `json:"mime_type,omitempty"`
	IsVideo    bool   `json:"is_video"`

	// Hashes. ContentHash empty means the file has not been processed
	// yet; resume scans for exactly that.
	ContentHash    string `json:"content_hash,omitempty"`
	PerceptualHash string `json:"perceptual_hash,omitempty"`

	// Authoritative timestamp, always UTC, plus the full candidate set
	// it was chosen from.
	FinalTimestamp  *time.Time           `json:"final_timestamp,omitempty"`
	Confidence      ConfidenceLevel      `json:"confidence"`
	TimestampSource string               `json:"timestamp_source,omitempty"`
	Candidates      []TimestampCandidate `json:"candidates,omitempty"`

	// Duplicate detection. ExactGroupID is the shared content hash for
	// byte-identical files, or an opaque token when a near-exact pair
	// (Hamming distance <= 5) is merged in. SimilarGroupID is always an
	// opaque token.
	ExactGroupID      string          `json:"exact_group_id,omitempty"`
	SimilarGroupID    string          `json:"similar_group_id,omitempty"`
	SimilarKind       GroupKind       `json:"similar_kind,omitempty"`
	SimilarConfidence ConfidenceLevel `json:"similar_confidence,omitempty"`

	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	// Keeper score within a group: resolution and size weighted,
	// highest wins the recommendation.
	QualityScore float64 `json:"quality_score,omitempty"`

	Reviewed  bool `json:"reviewed"`
	Discarded bool `json:"discarded"`

	ThumbnailPath string `json:"thumbnail_path,omitempty"`

	// Export results. ExportError records a non-fatal problem with the
	// exported copy, such as a failed metadata rewrite.
	OutputPath  string     `json:"output_path,omitempty"`
	ExportedAt  *time.Time `json:"exported_at,omitempty"`
	ExportError string     `json:"export_error,omitempty"`

	ProcessError string     `json:"process_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

// Processed reports whether the file made it through hashing. Files
// that errored still count as processed; only a missing content hash
// marks work left to do.
func (f *MediaFile) Processed() bool {
	return f.ContentHash != "" || f.ProcessError != ""
}

// HasTimestamp reports whether any timestamp source produced a value.
func (f *MediaFile) HasTimestamp() bool {
	return f.FinalTimestamp != nil && f.Confidence != ConfidenceNone
}

// InExactGroup reports membership in an exact duplicate group.
func (f *MediaFile) InExactGroup() bool {
	return f.ExactGroupID != ""
}

// InSimilarGroup reports membership in a similarity group.
func (f *MediaFile) InSimilarGroup() bool {
	return f.SimilarGroupID != ""
}
