package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mediaparser/internal/interfaces"
	"github.com/ternarybob/mediaparser/internal/models"
)

// TagHandler serves tag reads and user tag edits
type TagHandler struct {
	store  interfaces.StorageManager
	logger arbor.ILogger
}

// NewTagHandler creates a tag handler
func NewTagHandler(store interfaces.StorageManager, logger arbor.ILogger) *TagHandler {
	return &TagHandler{
		store:  store,
		logger: logger,
	}
}

// AddTagsRequest is the body for POST /api/files/{id}/tags
type AddTagsRequest struct {
	Names []string `json:"names" validate:"required,min=1,dive,required"`
}

// ListTagsHandler lists one file's tags.
// GET /api/files/{id}/tags
func (h *TagHandler) ListTagsHandler(w http.ResponseWriter, r *http.Request, fileID string) {
	if !RequireMethod(w, r, http.MethodGet) {
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
	WriteJSON(w, http.StatusOK, map[string]interface{}{"tags": tags})
}

// AddTagsHandler attaches user tags to a file. Names are lowercased;
// duplicates are ignored.
// POST /api/files/{id}/tags
func (h *TagHandler) AddTagsHandler(w http.ResponseWriter, r *http.Request, fileID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req AddTagsRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	names := make([]string, 0, len(req.Names))
	for _, name := range req.Names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		WriteError(w, http.StatusBadRequest, "No usable tag names in request")
		return
	}

	if err := h.store.TagStorage().AddTags(r.Context(), fileID, names, models.TagSourceUser); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, "Tags added")
}

// BulkAddTagsRequest is the body for POST /api/files/tags/bulk
type BulkAddTagsRequest struct {
	FileIDs []string `json:"file_ids" validate:"required,min=1,dive,required"`
	Names   []string `json:"names" validate:"required,min=1,dive,required"`
}

// BulkAddTagsHandler attaches the same user tags to a set of files.
// POST /api/files/tags/bulk
func (h *TagHandler) BulkAddTagsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req BulkAddTagsRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	names := make([]string, 0, len(req.Names))
	for _, name := range req.Names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		WriteError(w, http.StatusBadRequest, "No usable tag names in request")
		return
	}

	for _, fileID := range req.FileIDs {
		if err := h.store.TagStorage().AddTags(r.Context(), fileID, names, models.TagSourceUser); err != nil {
			WriteServiceError(w, err)
			return
		}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Tags added",
		"count":   len(req.FileIDs),
	})
}

// RemoveTagHandler detaches one tag from a file.
// DELETE /api/files/{id}/tags/{name}
func (h *TagHandler) RemoveTagHandler(w http.ResponseWriter, r *http.Request, fileID, name string) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	if err := h.store.TagStorage().RemoveTag(r.Context(), fileID, name); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, "Tag removed")
}

// TagUsageHandler lists a job's tags ranked by how many files carry
// them.
// GET /api/jobs/{id}/tags
func (h *TagHandler) TagUsageHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	usage, err := h.store.TagStorage().TagUsage(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if usage == nil {
		usage = []*models.TagUsage{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"tags": usage})
}
