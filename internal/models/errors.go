package models

import "errors"

// Sentinel errors shared across storage, services and handlers.
// Callers match with errors.Is and map to HTTP status codes at the edge.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when a request or record fails validation.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when a job status change is not
	// permitted from the job's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrThresholdExceeded is returned when a job halts because its error
	// rate crossed the configured threshold.
	ErrThresholdExceeded = errors.New("error threshold exceeded")

	// ErrProbeUnavailable is returned when the external metadata tool is
	// missing or cannot be executed.
	ErrProbeUnavailable = errors.New("metadata probe unavailable")

	// ErrNoMessage is returned when the queue has no visible messages.
	ErrNoMessage = errors.New("no messages in queue")
)
