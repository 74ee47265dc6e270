package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mediaparser/internal/interfaces"
	"github.com/ternarybob/mediaparser/internal/models"
)

// DuplicateHandler serves duplicate group listings and resolutions
type DuplicateHandler struct {
	store  interfaces.StorageManager
	logger arbor.ILogger
}

// NewDuplicateHandler creates a duplicate handler
func NewDuplicateHandler(store interfaces.StorageManager, logger arbor.ILogger) *DuplicateHandler {
	return &DuplicateHandler{
		store:  store,
		logger: logger,
	}
}

// ResolveGroupRequest is the body for POST /api/groups/{id}/resolve
type ResolveGroupRequest struct {
	KeepFileID string `json:"keep_file_id" validate:"required"`
}

// ExactGroupsHandler lists a job's exact duplicate groups with keeper
// recommendations.
// GET /api/jobs/{id}/duplicates
func (h *DuplicateHandler) ExactGroupsHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	groups, err := h.store.FileStorage().ExactGroups(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if groups == nil {
		groups = []*models.ExactGroup{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"groups": groups})
}

// SimilarGroupsHandler lists a job's similarity groups.
// GET /api/jobs/{id}/similar
func (h *DuplicateHandler) SimilarGroupsHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	groups, err := h.store.FileStorage().SimilarGroups(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if groups == nil {
		groups = []*models.SimilarGroup{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"groups": groups})
}

// ResolveGroupHandler keeps one member of a group and discards the
// rest.
// POST /api/groups/{id}/resolve
func (h *DuplicateHandler) ResolveGroupHandler(w http.ResponseWriter, r *http.Request, groupID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req ResolveGroupRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.store.FileStorage().ResolveGroup(r.Context(), groupID, req.KeepFileID); err != nil {
		WriteServiceError(w, err)
		return
	}

	h.record(r, &models.UserDecision{
		GroupID: groupID,
		FileID:  req.KeepFileID,
		Action:  models.ActionResolveGroup,
		Detail:  "kept " + req.KeepFileID,
	})
	WriteSuccess(w, "Group resolved")
}

// KeepAllHandler marks every member of a similarity group reviewed
// without discarding any.
// POST /api/groups/{id}/keep-all
func (h *DuplicateHandler) KeepAllHandler(w http.ResponseWriter, r *http.Request, groupID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := h.store.FileStorage().KeepAllSimilar(r.Context(), groupID); err != nil {
		WriteServiceError(w, err)
		return
	}

	h.record(r, &models.UserDecision{
		GroupID: groupID,
		Action:  models.ActionKeepAll,
	})
	WriteSuccess(w, "All members kept")
}

// UngroupHandler removes one file from its similarity group.
// POST /api/files/{id}/ungroup
func (h *DuplicateHandler) UngroupHandler(w http.ResponseWriter, r *http.Request, fileID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := h.store.FileStorage().RemoveFromSimilarGroup(r.Context(), fileID); err != nil {
		WriteServiceError(w, err)
		return
	}

	h.record(r, &models.UserDecision{
		FileID: fileID,
		Action: models.ActionUngroup,
	})
	WriteSuccess(w, "File removed from group")
}

// DecisionsHandler lists the audit trail for a group.
// GET /api/groups/{id}/decisions
func (h *DuplicateHandler) DecisionsHandler(w http.ResponseWriter, r *http.Request, groupID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	decisions, err := h.store.DecisionStorage().ListByGroup(r.Context(), groupID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if decisions == nil {
		decisions = []*models.UserDecision{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"decisions": decisions})
}

func (h *DuplicateHandler) record(r *http.Request, decision *models.UserDecision) {
	decision.CreatedAt = time.Now().UTC()
	if err := h.store.DecisionStorage().Record(r.Context(), decision); err != nil {
		h.logger.Warn().Err(err).Str("group_id", decision.GroupID).Msg("Failed to record decision")
	}
}
