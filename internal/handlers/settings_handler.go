package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mediaparser/internal/interfaces"
)

// SettingsHandler serves persisted settings overrides
type SettingsHandler struct {
	store  interfaces.StorageManager
	logger arbor.ILogger
}

// NewSettingsHandler creates a settings handler
func NewSettingsHandler(store interfaces.StorageManager, logger arbor.ILogger) *SettingsHandler {
	return &SettingsHandler{
		store:  store,
		logger: logger,
	}
}

// SetSettingRequest is the body for PUT /api/settings/{key}
type SetSettingRequest struct {
	Value string `json:"value" validate:"required"`
}

// ListSettingsHandler returns every stored override.
// GET /api/settings
func (h *SettingsHandler) ListSettingsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	settings, err := h.store.SettingsStorage().All(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"settings": settings})
}

// SettingHandler serves one setting: GET reads, PUT upserts, DELETE
// removes.
// /api/settings/{key}
func (h *SettingsHandler) SettingHandler(w http.ResponseWriter, r *http.Request, key string) {
	switch r.Method {
	case http.MethodGet:
		value, err := h.store.SettingsStorage().Get(r.Context(), key)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})

	case http.MethodPut:
		var req SetSettingRequest
		if !DecodeAndValidate(w, r, &req) {
			return
		}
		if err := h.store.SettingsStorage().Set(r.Context(), key, req.Value); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteSuccess(w, "Setting saved")

	case http.MethodDelete:
		if err := h.store.SettingsStorage().Delete(r.Context(), key); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteSuccess(w, "Setting deleted")

	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
