// -----------------------------------------------------------------------
// UserDecision - audit trail of review actions
// -----------------------------------------------------------------------

package models

import "time"

// DecisionAction enumerates review actions worth auditing
type DecisionAction string

const (
	ActionReview       DecisionAction = "review"
	ActionUnreview     DecisionAction = "unreview"
	ActionDiscard      DecisionAction = "discard"
	ActionUndiscard    DecisionAction = "undiscard"
	ActionResolveGroup DecisionAction = "resolve_group"
	ActionKeepAll      DecisionAction = "keep_all"
	ActionUngroup      DecisionAction = "ungroup"
)

// UserDecision records one review action so group resolutions can be
// audited and, if needed, reconstructed.
type UserDecision struct {
	ID        int64          `json:"id"`
	FileID    string         `json:"file_id,omitempty"`
	GroupID   string         `json:"group_id,omitempty"`
	Action    DecisionAction `json:"action"`
	Detail    string         `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
