package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mediaparser/internal/common"
	"github.com/ternarybob/mediaparser/internal/interfaces"
	"github.com/ternarybob/mediaparser/internal/services/metadata"
)

// APIHandler serves version, health, admin and fallback endpoints
type APIHandler struct {
	config *common.Config
	store  interfaces.StorageManager
	queue  interfaces.QueueService
	probe  *metadata.Probe
	logger arbor.ILogger
}

// NewAPIHandler creates an API handler
func NewAPIHandler(config *common.Config, store interfaces.StorageManager, queue interfaces.QueueService, probe *metadata.Probe, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		config: config,
		store:  store,
		queue:  queue,
		probe:  probe,
		logger: logger,
	}
}

// VersionHandler returns build information.
// GET /api/version
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetFullVersion(),
	})
}

// HealthHandler reports component health. The service stays "degraded"
// rather than unhealthy when the metadata tool is missing: processing
// falls back to filesystem dates.
// GET /api/health
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	status := "healthy"
	components := map[string]interface{}{}

	if h.probe.Available() {
		components["metadata_tool"] = "available"
	} else {
		components["metadata_tool"] = "unavailable"
		status = "degraded"
	}

	visible, inflight, err := h.queue.Depth(r.Context())
	if err != nil {
		components["queue"] = "error: " + err.Error()
		status = "degraded"
	} else {
		components["queue"] = map[string]int{"visible": visible, "inflight": inflight}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":     status,
		"components": components,
	})
}

// ResetHandler wipes every job with its files and clears the owned
// workspace directories. Development convenience; refused in
// production.
// POST /api/admin/reset
func (h *APIHandler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if h.config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Workspace reset is disabled in production")
		return
	}

	deleted := 0
	for {
		list, err := h.store.JobStorage().ListJobs(r.Context(), 500, 0)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		if len(list) == 0 {
			break
		}
		for _, job := range list {
			if err := h.store.JobStorage().DeleteJob(r.Context(), job.ID); err != nil {
				WriteServiceError(w, err)
				return
			}
			deleted++
		}
	}

	for _, sub := range []string{"uploads", "thumbnails", "output"} {
		dir := filepath.Join(h.config.Workspace.Dir, sub)
		if err := os.RemoveAll(dir); err != nil {
			h.logger.Warn().Err(err).Str("dir", dir).Msg("Failed to clear workspace directory")
		}
	}

	h.logger.Warn().Int("jobs_deleted", deleted).Msg("Workspace reset")
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "reset",
		"jobs_deleted": deleted,
	})
}

// NotFoundHandler is the fallback for unmatched API routes
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "Unknown API route: "+r.URL.Path)
}
