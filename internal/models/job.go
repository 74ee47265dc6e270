// -----------------------------------------------------------------------
// Job - import/export job record with guarded status transitions
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusHalted    JobStatus = "halted"
)

// JobType distinguishes the work a job performs
type JobType string

const (
	JobTypeImport JobType = "import"
	JobTypeExport JobType = "export"
)

// validTransitions is the authoritative status graph. A transition absent
// from this map is rejected with ErrInvalidTransition.
var validTransitions = map[JobStatus][]JobStatus{
	JobStatusPending: {JobStatusRunning, JobStatusCancelled},
	JobStatusRunning: {JobStatusPaused, JobStatusCompleted, JobStatusFailed, JobStatusCancelled, JobStatusHalted},
	JobStatusPaused:  {JobStatusRunning, JobStatusCancelled},
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to JobStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
// Halted counts: recovering from an error-threshold halt takes a fresh
// job, not a resume.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed ||
		s == JobStatusCancelled || s == JobStatusHalted
}

// IsResumable reports whether the job can be restarted from where it
// stopped. Only paused jobs resume.
func (s JobStatus) IsResumable() bool {
	return s == JobStatusPaused
}

// Job represents an import or export run over a source directory.
type Job struct {
	ID        string  `json:"id"`
	Type      JobType `json:"type"`
	SourceDir string  `json:"source_dir"`
	OutputDir string  `json:"output_dir,omitempty"`

	// SourceJobID links an export job to the import job whose files it
	// exports. Empty for import jobs.
	SourceJobID string `json:"source_job_id,omitempty"`

	Status JobStatus `json:"status"`

	// Progress counters. ProcessedFiles and ErrorCount only ever grow;
	// the storage layer enforces monotonicity on update. CurrentFile is
	// the filename most recently committed.
	TotalFiles     int    `json:"total_files"`
	ProcessedFiles int    `json:"processed_files"`
	ErrorCount     int    `json:"error_count"`
	CurrentFile    string `json:"current_filename,omitempty"`

	// Duplicate detection results, populated when the job completes.
	ExactGroups   int `json:"exact_groups"`
	SimilarGroups int `json:"similar_groups"`

	Error string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewImportJob creates a pending import job for a source directory.
func NewImportJob(sourceDir string) *Job {
	return &Job{
		ID:        uuid.New().String(),
		Type:      JobTypeImport,
		SourceDir: sourceDir,
		Status:    JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// NewExportJob creates a pending export job for the files of an import
// job, targeting an output directory.
func NewExportJob(sourceJobID, outputDir string) *Job {
	return &Job{
		ID:          uuid.New().String(),
		Type:        JobTypeExport,
		SourceJobID: sourceJobID,
		OutputDir:   outputDir,
		Status:      JobStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

// Transition moves the job to a new status, validating against the
// status graph and stamping lifecycle timestamps.
func (j *Job) Transition(to JobStatus) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}
	now := time.Now().UTC()
	switch to {
	case JobStatusRunning:
		if j.StartedAt == nil {
			j.StartedAt = &now
		}
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled, JobStatusHalted:
		j.CompletedAt = &now
	}
	j.Status = to
	return nil
}

// MarkFailed transitions to failed and records the error message.
func (j *Job) MarkFailed(errMsg string) error {
	if err := j.Transition(JobStatusFailed); err != nil {
		return err
	}
	j.Error = errMsg
	return nil
}

// MarkHalted transitions to halted and records the threshold message.
func (j *Job) MarkHalted(errMsg string) error {
	if err := j.Transition(JobStatusHalted); err != nil {
		return err
	}
	j.Error = errMsg
	return nil
}

// Progress returns the completion fraction in [0, 1].
func (j *Job) Progress() float64 {
	if j.TotalFiles == 0 {
		return 0
	}
	return float64(j.ProcessedFiles) / float64(j.TotalFiles)
}

// ETASeconds estimates the remaining runtime from throughput so far.
// Zero when the job has not started, has processed nothing, or is done.
func (j *Job) ETASeconds() float64 {
	if j.StartedAt == nil || j.ProcessedFiles == 0 || j.TotalFiles <= j.ProcessedFiles {
		return 0
	}
	elapsed := time.Since(*j.StartedAt).Seconds()
	perFile := elapsed / float64(j.ProcessedFiles)
	return perFile * float64(j.TotalFiles-j.ProcessedFiles)
}

// ErrorRate returns errors per processed file. Zero when nothing has
// been processed yet.
func (j *Job) ErrorRate() float64 {
	if j.ProcessedFiles == 0 {
		return 0
	}
	return float64(j.ErrorCount) / float64(j.ProcessedFiles)
}

// ToJSON serializes the job for queue payloads
func (j *Job) ToJSON() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return data, nil
}

// JobFromJSON deserializes a job from a queue payload
func JobFromJSON(data []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}
