package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/mediaparser/internal/models"
)

// ReviewMode selects which slice of a job's files a listing returns
type ReviewMode string

const (
	ReviewModeAll        ReviewMode = "all"
	ReviewModeDuplicates ReviewMode = "duplicates"
	ReviewModeSimilar    ReviewMode = "similar"
	ReviewModeUnreviewed ReviewMode = "unreviewed"
	ReviewModeReviewed   ReviewMode = "reviewed"
	ReviewModeDiscarded  ReviewMode = "discarded"
	ReviewModeFailed     ReviewMode = "failed"
)

// ListFilesOptions controls file listing filters, sorting and paging.
type ListFilesOptions struct {
	Mode       ReviewMode
	Confidence models.ConfidenceLevel // optional filter, empty = all
	SortBy     string                 // timestamp | file_name | file_size | confidence
	SortDesc   bool
	Limit      int
	Offset     int
}

// JobStorage - interface for job persistence
type JobStorage interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context, limit, offset int) ([]*models.Job, error)

	// UpdateStatus validates the transition against the status graph
	// before writing. Returns models.ErrInvalidTransition otherwise.
	UpdateStatus(ctx context.Context, jobID string, to models.JobStatus, errMsg string) error

	// IncrementProgress adds to the processed and error counters and
	// records the filename most recently committed. Counters only grow;
	// negative deltas are rejected. An empty currentFile keeps the
	// previous filename.
	IncrementProgress(ctx context.Context, jobID string, processed, errors int, currentFile string) error

	SetTotalFiles(ctx context.Context, jobID string, total int) error
	SetGroupCounts(ctx context.Context, jobID string, exact, similar int) error
	DeleteJob(ctx context.Context, jobID string) error

	// DeleteTerminalJobsBefore removes completed, failed, cancelled and
	// halted jobs that finished before the cutoff, cascading to their
	// files.
	DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// FileStorage - interface for per-file records
type FileStorage interface {
	InsertFiles(ctx context.Context, files []*models.MediaFile) error
	GetFile(ctx context.Context, fileID string) (*models.MediaFile, error)
	ListFiles(ctx context.Context, jobID string, opts *ListFilesOptions) ([]*models.MediaFile, int, error)

	// PendingFiles returns files processing never reached, in
	// lexicographic filename order. Resume starts here. Failed files
	// carry their error and do not come back as pending.
	PendingFiles(ctx context.Context, jobID string) ([]*models.MediaFile, error)

	// ProcessedFiles returns every successfully hashed, non-discarded
	// file of a job, the input set for duplicate detection.
	ProcessedFiles(ctx context.Context, jobID string) ([]*models.MediaFile, error)

	// ApplyResults commits a batch of processing results in one
	// transaction. All rows land or none do.
	ApplyResults(ctx context.Context, results []*models.ProcessResult) error

	// Duplicate detection writes.
	SetExactGroup(ctx context.Context, fileIDs []string, groupID string) error
	SetSimilarGroup(ctx context.Context, fileIDs []string, groupID string, kind models.GroupKind, confidence models.ConfidenceLevel) error
	ClearGroups(ctx context.Context, jobID string) error

	// Review operations.
	MarkReviewed(ctx context.Context, fileID string) error
	Unreview(ctx context.Context, fileID string) error
	Discard(ctx context.Context, fileID string) error
	Undiscard(ctx context.Context, fileID string) error

	// OverrideTimestamp records a reviewer-supplied capture time. The
	// file becomes reviewed with high confidence and a user source.
	OverrideTimestamp(ctx context.Context, fileID string, ts time.Time) error

	// Group resolution.
	ExactGroups(ctx context.Context, jobID string) ([]*models.ExactGroup, error)
	SimilarGroups(ctx context.Context, jobID string) ([]*models.SimilarGroup, error)
	ResolveGroup(ctx context.Context, groupID, keepFileID string) error
	KeepAllSimilar(ctx context.Context, groupID string) error
	RemoveFromSimilarGroup(ctx context.Context, fileID string) error

	// Export writes.
	ExportableFiles(ctx context.Context, jobID string) ([]*models.MediaFile, error)
	SetExported(ctx context.Context, fileID, outputPath string) error

	// SetExportError records a non-fatal problem with a file's exported
	// copy, such as a failed metadata rewrite.
	SetExportError(ctx context.Context, fileID, message string) error

	Summary(ctx context.Context, jobID string) (*models.Summary, error)
}

// TagStorage - interface for file tags
type TagStorage interface {
	AddTags(ctx context.Context, fileID string, names []string, source models.TagSource) error
	GetTags(ctx context.Context, fileID string) ([]*models.Tag, error)
	TagsForFiles(ctx context.Context, fileIDs []string) (map[string][]string, error)
	RemoveTag(ctx context.Context, fileID, name string) error

	// TagUsage returns a job's tag names ranked by how many files carry
	// them.
	TagUsage(ctx context.Context, jobID string) ([]*models.TagUsage, error)
}

// SettingsStorage - interface for persisted settings overrides
type SettingsStorage interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
	All(ctx context.Context) (map[string]string, error)
	Delete(ctx context.Context, key string) error
}

// DecisionStorage - interface for the review audit trail
type DecisionStorage interface {
	Record(ctx context.Context, decision *models.UserDecision) error
	ListByGroup(ctx context.Context, groupID string) ([]*models.UserDecision, error)
	ListByFile(ctx context.Context, fileID string) ([]*models.UserDecision, error)
}

// StorageManager aggregates the storage interfaces behind one handle
type StorageManager interface {
	JobStorage() JobStorage
	FileStorage() FileStorage
	TagStorage() TagStorage
	SettingsStorage() SettingsStorage
	DecisionStorage() DecisionStorage
	Close() error
}
