package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Jobs. The exact /upload match wins over the prefix
	// route.
	mux.HandleFunc("/api/jobs", s.handleJobsRoute) // GET (list), POST (create)
	mux.HandleFunc("/api/jobs/upload", s.app.JobHandler.UploadJobHandler)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes) // /{id} and subpaths

	// API routes - Files. Exact bulk routes win over the per-file
	// prefix dispatcher.
	mux.HandleFunc("/api/files/discard", s.app.FileHandler.BulkDiscardHandler)
	mux.HandleFunc("/api/files/undiscard", s.app.FileHandler.BulkUndiscardHandler)
	mux.HandleFunc("/api/files/tags/bulk", s.app.TagHandler.BulkAddTagsHandler)
	mux.HandleFunc("/api/files/", s.handleFileRoutes) // /{id} and subpaths

	// API routes - Duplicate groups
	mux.HandleFunc("/api/groups/", s.handleGroupRoutes) // /{id}/resolve, /{id}/keep-all, /{id}/decisions

	// API routes - Settings
	mux.HandleFunc("/api/settings", s.app.SettingsHandler.ListSettingsHandler)
	mux.HandleFunc("/api/settings/", s.handleSettingRoutes)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/admin/reset", s.app.APIHandler.ResetHandler)

	// Thumbnails rendered during processing
	mux.Handle("/thumbnails/", http.StripPrefix("/thumbnails/",
		http.FileServer(http.Dir(s.app.Thumbnails.Dir()))))

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleJobsRoute serves the job collection endpoint
func (s *Server) handleJobsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.app.JobHandler.ListJobsHandler(w, r)
	case http.MethodPost:
		s.app.JobHandler.CreateJobHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobRoutes dispatches /api/jobs/{id} and its subpaths
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	jobID, action := splitResourcePath(r.URL.Path, "/api/jobs/")
	if jobID == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	switch action {
	case "":
		if r.Method == http.MethodDelete {
			s.app.JobHandler.DeleteJobHandler(w, r, jobID)
			return
		}
		s.app.JobHandler.GetJobHandler(w, r, jobID)
	case "pause":
		s.app.JobHandler.PauseJobHandler(w, r, jobID)
	case "resume":
		s.app.JobHandler.ResumeJobHandler(w, r, jobID)
	case "cancel":
		s.app.JobHandler.CancelJobHandler(w, r, jobID)
	case "export":
		s.app.JobHandler.ExportJobHandler(w, r, jobID)
	case "summary":
		s.app.JobHandler.SummaryHandler(w, r, jobID)
	case "files":
		s.app.FileHandler.ListFilesHandler(w, r, jobID)
	case "duplicates":
		s.app.DuplicateHandler.ExactGroupsHandler(w, r, jobID)
	case "similar":
		s.app.DuplicateHandler.SimilarGroupsHandler(w, r, jobID)
	case "tags":
		s.app.TagHandler.TagUsageHandler(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleFileRoutes dispatches /api/files/{id} and its subpaths
func (s *Server) handleFileRoutes(w http.ResponseWriter, r *http.Request) {
	fileID, action := splitResourcePath(r.URL.Path, "/api/files/")
	if fileID == "" {
		http.Error(w, "File ID required", http.StatusBadRequest)
		return
	}

	// DELETE /api/files/{id}/tags/{name}
	if strings.HasPrefix(action, "tags/") {
		s.app.TagHandler.RemoveTagHandler(w, r, fileID, strings.TrimPrefix(action, "tags/"))
		return
	}

	switch action {
	case "":
		s.app.FileHandler.GetFileHandler(w, r, fileID)
	case "review":
		s.app.FileHandler.ReviewHandler(w, r, fileID)
	case "unreview":
		s.app.FileHandler.UnreviewHandler(w, r, fileID)
	case "discard":
		s.app.FileHandler.DiscardHandler(w, r, fileID)
	case "undiscard":
		s.app.FileHandler.UndiscardHandler(w, r, fileID)
	case "ungroup":
		s.app.DuplicateHandler.UngroupHandler(w, r, fileID)
	case "tags":
		if r.Method == http.MethodPost {
			s.app.TagHandler.AddTagsHandler(w, r, fileID)
			return
		}
		s.app.TagHandler.ListTagsHandler(w, r, fileID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleGroupRoutes dispatches /api/groups/{id} subpaths
func (s *Server) handleGroupRoutes(w http.ResponseWriter, r *http.Request) {
	groupID, action := splitResourcePath(r.URL.Path, "/api/groups/")
	if groupID == "" {
		http.Error(w, "Group ID required", http.StatusBadRequest)
		return
	}

	switch action {
	case "resolve":
		s.app.DuplicateHandler.ResolveGroupHandler(w, r, groupID)
	case "keep-all":
		s.app.DuplicateHandler.KeepAllHandler(w, r, groupID)
	case "decisions":
		s.app.DuplicateHandler.DecisionsHandler(w, r, groupID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleSettingRoutes dispatches /api/settings/{key}
func (s *Server) handleSettingRoutes(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/api/settings/")
	if key == "" || strings.Contains(key, "/") {
		http.Error(w, "Setting key required", http.StatusBadRequest)
		return
	}
	s.app.SettingsHandler.SettingHandler(w, r, key)
}

// splitResourcePath splits "{prefix}{id}/{action...}" into id and
// action. The action may itself contain slashes.
func splitResourcePath(path, prefix string) (id, action string) {
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" {
		return "", ""
	}
	if idx := strings.Index(rest, "/"); idx >= 0 {
		return rest[:idx], rest[idx+1:]
	}
	return rest, ""
}
