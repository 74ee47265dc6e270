package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mediaparser/internal/interfaces"
	"github.com/ternarybob/mediaparser/internal/models"
)

// FileHandler serves file listings and per-file review actions
type FileHandler struct {
	store  interfaces.StorageManager
	logger arbor.ILogger
}

// NewFileHandler creates a file handler
func NewFileHandler(store interfaces.StorageManager, logger arbor.ILogger) *FileHandler {
	return &FileHandler{
		store:  store,
		logger: logger,
	}
}

// ListFilesHandler returns a filtered, sorted page of a job's files.
// GET /api/jobs/{id}/files?mode=&confidence=&sort=&order=&limit=&offset=
func (h *FileHandler) ListFilesHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit, offset := GetPaginationParams(r)
	q := r.URL.Query()

	opts := &interfaces.ListFilesOptions{
		Mode:       interfaces.ReviewMode(q.Get("mode")),
		Confidence: models.ConfidenceLevel(q.Get("confidence")),
		SortBy:     q.Get("sort"),
		SortDesc:   q.Get("order") == "desc",
		Limit:      limit,
		Offset:     offset,
	}
	if opts.Mode == "" {
		opts.Mode = interfaces.ReviewModeAll
	}

	files, total, err := h.store.FileStorage().ListFiles(r.Context(), jobID, opts)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if files == nil {
		files = []*models.MediaFile{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"files":  files,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetFileHandler returns one file with its tags.
// GET /api/files/{id}
func (h *FileHandler) GetFileHandler(w http.ResponseWriter, r *http.Request, fileID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	file, err := h.store.FileStorage().GetFile(r.Context(), fileID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	tags, err := h.store.TagStorage().GetTags(r.Context(), fileID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if tags == nil {
		tags = []*models.Tag{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"file": file,
		"tags": tags,
	})
}

// ReviewRequest optionally overrides the detected capture time while
// marking the file reviewed.
type ReviewRequest struct {
	FinalTimestamp string `json:"final_timestamp"` // RFC 3339, optional
}

// ReviewHandler marks a file as reviewed, optionally overriding its
// capture time with a reviewer-supplied value.
// POST /api/files/{id}/review
func (h *FileHandler) ReviewHandler(w http.ResponseWriter, r *http.Request, fileID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req ReviewRequest
	if r.ContentLength > 0 {
		if !DecodeAndValidate(w, r, &req) {
			return
		}
	}

	if req.FinalTimestamp == "" {
		h.reviewAction(w, r, fileID, models.ActionReview, h.store.FileStorage().MarkReviewed)
		return
	}

	ts, err := time.Parse(time.RFC3339, req.FinalTimestamp)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "final_timestamp must be RFC 3339: "+err.Error())
		return
	}

	if err := h.store.FileStorage().OverrideTimestamp(r.Context(), fileID, ts); err != nil {
		WriteServiceError(w, err)
		return
	}

	decision := &models.UserDecision{
		FileID:    fileID,
		Action:    models.ActionReview,
		Detail:    "timestamp set to " + ts.UTC().Format(time.RFC3339),
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.DecisionStorage().Record(r.Context(), decision); err != nil {
		h.logger.Warn().Err(err).Str("file_id", fileID).Msg("Failed to record review decision")
	}

	WriteSuccess(w, "Timestamp overridden")
}

// UnreviewHandler clears the reviewed flag.
// POST /api/files/{id}/unreview
func (h *FileHandler) UnreviewHandler(w http.ResponseWriter, r *http.Request, fileID string) {
	h.reviewAction(w, r, fileID, models.ActionUnreview, h.store.FileStorage().Unreview)
}

// DiscardHandler excludes a file from export and drops it from its
// duplicate groups.
// POST /api/files/{id}/discard
func (h *FileHandler) DiscardHandler(w http.ResponseWriter, r *http.Request, fileID string) {
	h.reviewAction(w, r, fileID, models.ActionDiscard, h.store.FileStorage().Discard)
}

// UndiscardHandler restores a discarded file. Group membership is not
// restored; re-run detection for that.
// POST /api/files/{id}/undiscard
func (h *FileHandler) UndiscardHandler(w http.ResponseWriter, r *http.Request, fileID string) {
	h.reviewAction(w, r, fileID, models.ActionUndiscard, h.store.FileStorage().Undiscard)
}

// BulkFileRequest names the files a bulk review action applies to
type BulkFileRequest struct {
	FileIDs []string `json:"file_ids" validate:"required,min=1,dive,required"`
}

// BulkDiscardHandler discards a set of files in one request.
// POST /api/files/discard
func (h *FileHandler) BulkDiscardHandler(w http.ResponseWriter, r *http.Request) {
	h.bulkReviewAction(w, r, models.ActionDiscard, h.store.FileStorage().Discard)
}

// BulkUndiscardHandler restores a set of discarded files.
// POST /api/files/undiscard
func (h *FileHandler) BulkUndiscardHandler(w http.ResponseWriter, r *http.Request) {
	h.bulkReviewAction(w, r, models.ActionUndiscard, h.store.FileStorage().Undiscard)
}

// bulkReviewAction applies one review operation to every named file,
// recording each in the audit trail. Stops at the first failure; the
// operations are idempotent, so a retried request is harmless.
func (h *FileHandler) bulkReviewAction(w http.ResponseWriter, r *http.Request, action models.DecisionAction, apply func(context.Context, string) error) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req BulkFileRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	for _, fileID := range req.FileIDs {
		if err := apply(r.Context(), fileID); err != nil {
			WriteServiceError(w, err)
			return
		}
		decision := &models.UserDecision{
			FileID:    fileID,
			Action:    action,
			Detail:    "bulk",
			CreatedAt: time.Now().UTC(),
		}
		if err := h.store.DecisionStorage().Record(r.Context(), decision); err != nil {
			h.logger.Warn().Err(err).Str("file_id", fileID).Msg("Failed to record review decision")
		}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": string(action) + " applied",
		"count":   len(req.FileIDs),
	})
}

// reviewAction applies one review operation and records it in the
// audit trail
func (h *FileHandler) reviewAction(w http.ResponseWriter, r *http.Request, fileID string, action models.DecisionAction, apply func(context.Context, string) error) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := apply(r.Context(), fileID); err != nil {
		WriteServiceError(w, err)
		return
	}

	decision := &models.UserDecision{
		FileID:    fileID,
		Action:    action,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.DecisionStorage().Record(r.Context(), decision); err != nil {
		h.logger.Warn().Err(err).Str("file_id", fileID).Msg("Failed to record review decision")
	}

	WriteSuccess(w, string(action)+" applied")
}
