// -----------------------------------------------------------------------
// Summary - aggregate counts for the review dashboard
// -----------------------------------------------------------------------

package models

// Summary aggregates library state for a job: confidence distribution,
// duplicate group counts and review progress.
type Summary struct {
	JobID string `json:"job_id"`

	TotalFiles     int `json:"total_files"`
	ProcessedFiles int `json:"processed_files"`
	ErrorFiles     int `json:"error_files"`

	ByConfidence map[ConfidenceLevel]int `json:"by_confidence"`

	ExactGroups   int `json:"exact_groups"`
	ExactFiles    int `json:"exact_files"`
	SimilarGroups int `json:"similar_groups"`
	SimilarFiles  int `json:"similar_files"`

	Reviewed  int `json:"reviewed"`
	Discarded int `json:"discarded"`

	Exported int `json:"exported"`
}

// ExactGroup is one exact duplicate group with its members.
type ExactGroup struct {
	GroupID     string      `json:"group_id"`
	Files       []MediaFile `json:"files"`
	RecommendID string      `json:"recommend_id,omitempty"`
}

// SimilarGroup is one similarity group with its members.
type SimilarGroup struct {
	GroupID     string          `json:"group_id"`
	Kind        GroupKind       `json:"kind"`
	Confidence  ConfidenceLevel `json:"confidence"`
	Files       []MediaFile     `json:"files"`
	RecommendID string          `json:"recommend_id,omitempty"`
}
