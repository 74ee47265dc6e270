package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mediaparser/internal/interfaces"
	"github.com/ternarybob/mediaparser/internal/models"
	"github.com/ternarybob/mediaparser/internal/services/jobs"
)

// JobHandler serves job creation, inspection and lifecycle control
type JobHandler struct {
	jobService *jobs.Service
	store      interfaces.StorageManager
	logger     arbor.ILogger
}

// NewJobHandler creates a job handler
func NewJobHandler(jobService *jobs.Service, store interfaces.StorageManager, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		jobService: jobService,
		store:      store,
		logger:     logger,
	}
}

// CreateJobRequest is the body for POST /api/jobs
type CreateJobRequest struct {
	SourceDir string `json:"source_dir" validate:"required"`
}

// ExportRequest is the body for POST /api/jobs/{id}/export
type ExportRequest struct {
	OutputDir string `json:"output_dir"`
}

// CreateJobHandler creates an import job and queues it.
// POST /api/jobs
func (h *JobHandler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req CreateJobRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	job, err := h.jobService.CreateImportJob(r.Context(), req.SourceDir)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, job)
}

// UploadJobHandler accepts a multipart upload, stages the files into
// the workspace and queues an import job over the staged copy. Only
// staged copies are ever deleted after export; user originals outside
// the workspace are never touched.
// POST /api/jobs/upload
func (h *JobHandler) UploadJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	reader, err := r.MultipartReader()
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Multipart body required: "+err.Error())
		return
	}

	job, err := h.jobService.CreateUploadJob(r.Context(), func(dir string) (int, error) {
		count := 0
		for {
			part, err := reader.NextPart()
			if err == io.EOF {
				return count, nil
			}
			if err != nil {
				return count, fmt.Errorf("%w: malformed multipart body: %v", models.ErrValidation, err)
			}

			name := filepath.Base(part.FileName())
			if name == "" || name == "." || name == string(filepath.Separator) {
				part.Close()
				continue
			}

			dst, err := os.Create(filepath.Join(dir, name))
			if err != nil {
				part.Close()
				return count, fmt.Errorf("failed to stage %s: %w", name, err)
			}
			_, err = io.Copy(dst, part)
			dst.Close()
			part.Close()
			if err != nil {
				return count, fmt.Errorf("failed to stage %s: %w", name, err)
			}
			count++
		}
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, job)
}

// ListJobsHandler lists jobs newest first.
// GET /api/jobs
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit, offset := GetPaginationParams(r)
	list, err := h.store.JobStorage().ListJobs(r.Context(), limit, offset)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if list == nil {
		list = []*models.Job{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"jobs": list})
}

// GetJobHandler returns one job with its computed progress.
// GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	job, err := h.store.JobStorage().GetJob(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job":         job,
		"progress":    job.Progress(),
		"eta_seconds": job.ETASeconds(),
	})
}

// PauseJobHandler requests a graceful pause.
// POST /api/jobs/{id}/pause
func (h *JobHandler) PauseJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if err := h.jobService.Pause(r.Context(), jobID); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, "Pause requested")
}

// ResumeJobHandler requeues a paused or halted job.
// POST /api/jobs/{id}/resume
func (h *JobHandler) ResumeJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if err := h.jobService.Resume(r.Context(), jobID); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, "Resume requested")
}

// CancelJobHandler terminates a job.
// POST /api/jobs/{id}/cancel
func (h *JobHandler) CancelJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if err := h.jobService.Cancel(r.Context(), jobID); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, "Cancel requested")
}

// DeleteJobHandler removes a job and all of its file records.
// DELETE /api/jobs/{id}
func (h *JobHandler) DeleteJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	job, err := h.store.JobStorage().GetJob(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if !job.Status.IsTerminal() && !job.Status.IsResumable() {
		WriteError(w, http.StatusConflict, "Cannot delete a job that is pending or running")
		return
	}

	if err := h.store.JobStorage().DeleteJob(r.Context(), jobID); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, "Job deleted")
}

// ExportJobHandler creates an export job over a completed import job.
// POST /api/jobs/{id}/export
func (h *JobHandler) ExportJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req ExportRequest
	if r.ContentLength > 0 {
		if !DecodeAndValidate(w, r, &req) {
			return
		}
	}

	job, err := h.jobService.CreateExportJob(r.Context(), jobID, req.OutputDir)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, job)
}

// SummaryHandler returns aggregate counts for the review dashboard.
// GET /api/jobs/{id}/summary
func (h *JobHandler) SummaryHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if _, err := h.store.JobStorage().GetJob(r.Context(), jobID); err != nil {
		WriteServiceError(w, err)
		return
	}

	summary, err := h.store.FileStorage().Summary(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, summary)
}
