package handlers

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvest/internal/interfaces"
	"github.com/ternarybob/harvest/internal/models"
	"github.com/ternarybob/harvest/internal/services/manager"
	"github.com/ternarybob/harvest/internal/services/report"
)

// DownloadHandler exposes download run management over HTTP
type DownloadHandler struct {
	downloadService interfaces.DownloadService
	reportService   *report.Service
	logger          arbor.ILogger
}

func NewDownloadHandler(downloadService interfaces.DownloadService, reportService *report.Service, logger arbor.ILogger) *DownloadHandler {
	return &DownloadHandler{
		downloadService: downloadService,
		reportService:   reportService,
		logger:          logger,
	}
}

// StartHandler handles POST /api/downloads
func (h *DownloadHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	var req models.StartDownloadRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	job, err := h.downloadService.Start(req)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info().
		Str("download_id", job.ID).
		Str("job_id", job.JobID).
		Msg("Download run started via API")

	WriteJSON(w, http.StatusAccepted, job)
}

// ListHandler handles GET /api/downloads
func (h *DownloadHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"downloads": h.downloadService.List(),
	})
}

// GetHandler handles GET /api/downloads/{id}
func (h *DownloadHandler) GetHandler(w http.ResponseWriter, r *http.Request, downloadID string) {
	job := h.downloadService.Get(downloadID)
	if job == nil {
		WriteError(w, http.StatusNotFound, "Download not found: "+downloadID)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// CancelHandler handles DELETE /api/downloads/{id}
func (h *DownloadHandler) CancelHandler(w http.ResponseWriter, r *http.Request, downloadID string) {
	job, err := h.downloadService.Cancel(downloadID)
	if err != nil {
		if errors.Is(err, manager.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Download not found: "+downloadID)
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// AuthenticateHandler handles POST /api/downloads/{id}/authenticate
func (h *DownloadHandler) AuthenticateHandler(w http.ResponseWriter, r *http.Request, downloadID string) {
	var req models.AuthenticateRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Cookies) == 0 {
		WriteError(w, http.StatusBadRequest, "At least one session cookie is required")
		return
	}

	job, err := h.downloadService.Authenticate(downloadID, req.Cookies)
	if err != nil {
		switch {
		case errors.Is(err, manager.ErrNotFound):
			WriteError(w, http.StatusNotFound, "Download not found: "+downloadID)
		case errors.Is(err, manager.ErrNotAwaitingLogin):
			WriteError(w, http.StatusConflict, "Download is not awaiting login")
		default:
			WriteError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	h.logger.Info().
		Str("download_id", downloadID).
		Int("cookies", len(req.Cookies)).
		Msg("Session cookies accepted via API")

	WriteJSON(w, http.StatusOK, job)
}

// FilesHandler handles GET /api/downloads/{id}/files
func (h *DownloadHandler) FilesHandler(w http.ResponseWriter, r *http.Request, downloadID string) {
	job := h.downloadService.Get(downloadID)
	if job == nil {
		WriteError(w, http.StatusNotFound, "Download not found: "+downloadID)
		return
	}

	fileReport, err := h.reportService.Build(job.OutputDir)
	if err != nil {
		if os.IsNotExist(err) {
			WriteError(w, http.StatusNotFound, "Output directory does not exist yet")
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, fileReport)
}

// SplitDownloadPath splits "/api/downloads/{id}[/suffix]" into its parts.
// Returns empty strings when the path has no ID segment.
func SplitDownloadPath(path string) (downloadID, suffix string) {
	const prefix = "/api/downloads/"
	if !strings.HasPrefix(path, prefix) {
		return "", ""
	}
	rest := strings.Trim(path[len(prefix):], "/")
	if rest == "" {
		return "", ""
	}
	if idx := strings.Index(rest, "/"); idx > 0 {
		return rest[:idx], rest[idx+1:]
	}
	return rest, ""
}
