package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvest/internal/jazzhr"
)

// JazzHRHandler exposes the JazzHR REST API to clients so they can pick a
// job before starting a download run. Nil client means no API key was
// configured and every endpoint reports that.
type JazzHRHandler struct {
	client     *jazzhr.Client
	downloader *jazzhr.Downloader
	outputDir  string
	logger     arbor.ILogger
}

func NewJazzHRHandler(client *jazzhr.Client, outputDir string, logger arbor.ILogger) *JazzHRHandler {
	h := &JazzHRHandler{
		client:    client,
		outputDir: outputDir,
		logger:    logger,
	}
	if client != nil {
		h.downloader = jazzhr.NewDownloader(client, logger)
	}
	return h
}

func (h *JazzHRHandler) requireClient(w http.ResponseWriter) bool {
	if h.client == nil {
		WriteError(w, http.StatusServiceUnavailable, "JazzHR API key is not configured")
		return false
	}
	return true
}

// ListJobsHandler handles GET /api/jobs?status={status}
func (h *JazzHRHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if !h.requireClient(w) {
		return
	}

	status := r.URL.Query().Get("status")
	if status == "" {
		status = "open"
	}

	jobs, err := h.client.GetJobs(r.Context(), status)
	if err != nil {
		h.writeAPIError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
		"count":  len(jobs),
		"jobs":   jobs,
	})
}

// GetJobHandler handles GET /api/jobs/{id}
func (h *JazzHRHandler) GetJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !h.requireClient(w) {
		return
	}

	job, err := h.client.GetJob(r.Context(), jobID)
	if err != nil {
		h.writeAPIError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// DescriptionHandler handles GET /api/jobs/{id}/description
func (h *JazzHRHandler) DescriptionHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !h.requireClient(w) {
		return
	}

	description, err := h.client.GetJobDescription(r.Context(), jobID)
	if err != nil {
		h.writeAPIError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, description)
}

// APIDownloadHandler handles POST /api/jobs/{id}/download. This is the
// browser-free path: resumes come straight from the REST API file endpoints
// instead of a live session.
func (h *JazzHRHandler) APIDownloadHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !h.requireClient(w) {
		return
	}

	result, err := h.downloader.DownloadJobResumes(r.Context(), jobID, h.outputDir)
	if err != nil {
		h.writeAPIError(w, err)
		return
	}

	h.logger.Info().
		Str("job_id", jobID).
		Int("downloaded", result.Downloaded).
		Int("failed", result.Failed).
		Msg("API resume download finished")

	WriteJSON(w, http.StatusOK, result)
}

// writeAPIError maps JazzHR API failures onto HTTP responses
func (h *JazzHRHandler) writeAPIError(w http.ResponseWriter, err error) {
	var apiErr *jazzhr.APIError
	if errors.As(err, &apiErr) {
		status := http.StatusBadGateway
		if apiErr.StatusCode == http.StatusNotFound {
			status = http.StatusNotFound
		}
		WriteError(w, status, err.Error())
		return
	}
	WriteError(w, http.StatusInternalServerError, err.Error())
}

// SplitJobPath splits "/api/jobs/{id}[/suffix]" into its parts
func SplitJobPath(path string) (jobID, suffix string) {
	const prefix = "/api/jobs/"
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
