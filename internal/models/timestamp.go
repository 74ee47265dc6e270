// -----------------------------------------------------------------------
// Timestamp candidates and confidence tiers
// -----------------------------------------------------------------------

package models

import "time"

// ConfidenceLevel grades how trustworthy a file's final timestamp is
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceNone   ConfidenceLevel = "none"
)

// Timestamp source labels. Weights rank reliability: camera-written
// capture fields outrank encode dates, which outrank filename parses,
// which outrank filesystem times.
const (
	SourceExifDateTimeOriginal = "EXIF:DateTimeOriginal"
	SourceExifCreateDate       = "EXIF:CreateDate"
	SourceQuickTimeCreateDate  = "QuickTime:CreateDate"
	SourceExifModifyDate       = "EXIF:ModifyDate"
	SourceFilenameDatetime     = "filename_datetime"
	SourceFilenameDate         = "filename_date"
	SourceFileModifyDate       = "File:FileModifyDate"
	SourceFileCreateDate       = "File:FileCreateDate"

	// SourceUserOverride marks a timestamp set during review. It
	// bypasses scoring entirely, so it carries no weight entry.
	SourceUserOverride = "user"
)

// SourceWeights maps each timestamp source to its reliability weight.
var SourceWeights = map[string]int{
	SourceExifDateTimeOriginal: 10,
	SourceExifCreateDate:       8,
	SourceQuickTimeCreateDate:  7,
	SourceExifModifyDate:       5,
	SourceFilenameDatetime:     3,
	SourceFilenameDate:         3,
	SourceFileModifyDate:       2,
	SourceFileCreateDate:       1,
}

// TimestampCandidate is one possible capture time for a file, drawn
// from metadata, the filename or the filesystem.
type TimestampCandidate struct {
	Source string    `json:"source"`
	Weight int       `json:"weight"`
	Time   time.Time `json:"time"` // always UTC
}

// TimestampResult is the outcome of timestamp resolution for one file.
// Candidates carries the full extracted set, winners and losers alike,
// so review can show where the chosen value came from.
type TimestampResult struct {
	Time       *time.Time           `json:"time,omitempty"`
	Source     string               `json:"source,omitempty"`
	Confidence ConfidenceLevel      `json:"confidence"`
	Candidates []TimestampCandidate `json:"candidates,omitempty"`
}
