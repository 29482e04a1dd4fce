package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvest/internal/models"
	"github.com/ternarybob/harvest/internal/services/manager"
	"github.com/ternarybob/harvest/internal/services/report"
)

// stubDownloadService implements interfaces.DownloadService with canned runs
type stubDownloadService struct {
	jobs     map[string]*models.DownloadJob
	startErr error
}

func newStubDownloadService(jobs ...*models.DownloadJob) *stubDownloadService {
	s := &stubDownloadService{jobs: make(map[string]*models.DownloadJob)}
	for _, job := range jobs {
		s.jobs[job.ID] = job
	}
	return s
}

func (s *stubDownloadService) Start(req models.StartDownloadRequest) (*models.DownloadJob, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	job := &models.DownloadJob{
		ID:        "dl_test",
		JobID:     req.JobID,
		Status:    models.DownloadStatusInProgress,
		OutputDir: req.OutputDir,
		CreatedAt: time.Now(),
	}
	s.jobs[job.ID] = job
	return job, nil
}

func (s *stubDownloadService) Get(downloadID string) *models.DownloadJob {
	return s.jobs[downloadID]
}

func (s *stubDownloadService) List() []*models.DownloadJob {
	out := make([]*models.DownloadJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	return out
}

func (s *stubDownloadService) Cancel(downloadID string) (*models.DownloadJob, error) {
	job, ok := s.jobs[downloadID]
	if !ok {
		return nil, manager.ErrNotFound
	}
	if !job.Status.IsTerminal() {
		job.Status = models.DownloadStatusCancelled
	}
	return job, nil
}

func (s *stubDownloadService) Authenticate(downloadID string, cookies []models.Cookie) (*models.DownloadJob, error) {
	job, ok := s.jobs[downloadID]
	if !ok {
		return nil, manager.ErrNotFound
	}
	if job.Status != models.DownloadStatusLoginRequired {
		return nil, manager.ErrNotAwaitingLogin
	}
	job.Status = models.DownloadStatusInProgress
	return job, nil
}

func (s *stubDownloadService) Stop() {}

func newDownloadHandler(service *stubDownloadService) *DownloadHandler {
	logger := arbor.NewLogger()
	return NewDownloadHandler(service, report.NewService(logger), logger)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	return body
}

func TestStartHandlerAcceptsRequest(t *testing.T) {
	service := newStubDownloadService()
	h := newDownloadHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/api/downloads", strings.NewReader(`{"job_id":"1234"}`))
	rec := httptest.NewRecorder()
	h.StartHandler(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["download_id"] != "dl_test" || body["job_id"] != "1234" {
		t.Errorf("unexpected response: %v", body)
	}
}

func TestStartHandlerRejectsBadBody(t *testing.T) {
	h := newDownloadHandler(newStubDownloadService())

	req := httptest.NewRequest(http.MethodPost, "/api/downloads", strings.NewReader(`{"job_id":`))
	rec := httptest.NewRecorder()
	h.StartHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetHandlerUnknownID(t *testing.T) {
	h := newDownloadHandler(newStubDownloadService())

	req := httptest.NewRequest(http.MethodGet, "/api/downloads/dl_missing", nil)
	rec := httptest.NewRecorder()
	h.GetHandler(rec, req, "dl_missing")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCancelHandler(t *testing.T) {
	job := &models.DownloadJob{ID: "dl_1", JobID: "1234", Status: models.DownloadStatusInProgress}
	h := newDownloadHandler(newStubDownloadService(job))

	req := httptest.NewRequest(http.MethodDelete, "/api/downloads/dl_1", nil)
	rec := httptest.NewRecorder()
	h.CancelHandler(rec, req, "dl_1")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != string(models.DownloadStatusCancelled) {
		t.Errorf("expected cancelled status, got %v", body["status"])
	}
}

func TestAuthenticateHandlerConflict(t *testing.T) {
	job := &models.DownloadJob{ID: "dl_1", Status: models.DownloadStatusInProgress}
	h := newDownloadHandler(newStubDownloadService(job))

	req := httptest.NewRequest(http.MethodPost, "/api/downloads/dl_1/authenticate",
		strings.NewReader(`{"cookies":[{"name":"session","value":"abc"}]}`))
	rec := httptest.NewRecorder()
	h.AuthenticateHandler(rec, req, "dl_1")

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a run not awaiting login, got %d", rec.Code)
	}
}

func TestAuthenticateHandlerRequiresCookies(t *testing.T) {
	job := &models.DownloadJob{ID: "dl_1", Status: models.DownloadStatusLoginRequired}
	h := newDownloadHandler(newStubDownloadService(job))

	req := httptest.NewRequest(http.MethodPost, "/api/downloads/dl_1/authenticate",
		strings.NewReader(`{"cookies":[]}`))
	rec := httptest.NewRecorder()
	h.AuthenticateHandler(rec, req, "dl_1")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty cookies, got %d", rec.Code)
	}
}

func TestAuthenticateHandlerResumes(t *testing.T) {
	job := &models.DownloadJob{ID: "dl_1", Status: models.DownloadStatusLoginRequired}
	h := newDownloadHandler(newStubDownloadService(job))

	req := httptest.NewRequest(http.MethodPost, "/api/downloads/dl_1/authenticate",
		strings.NewReader(`{"cookies":[{"name":"session","value":"abc"}]}`))
	rec := httptest.NewRecorder()
	h.AuthenticateHandler(rec, req, "dl_1")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != string(models.DownloadStatusInProgress) {
		t.Errorf("expected in_progress after authenticate, got %v", body["status"])
	}
}

func TestFilesHandlerReportsOutputDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "101.pdf"), []byte("%PDF-1.4 resume"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	job := &models.DownloadJob{ID: "dl_1", Status: models.DownloadStatusCompleted, OutputDir: dir}
	h := newDownloadHandler(newStubDownloadService(job))

	req := httptest.NewRequest(http.MethodGet, "/api/downloads/dl_1/files", nil)
	rec := httptest.NewRecorder()
	h.FilesHandler(rec, req, "dl_1")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["file_count"] != float64(1) {
		t.Errorf("expected 1 file in report, got %v", body["file_count"])
	}
}

func TestSplitDownloadPath(t *testing.T) {
	tests := []struct {
		path   string
		id     string
		suffix string
	}{
		{"/api/downloads/dl_1", "dl_1", ""},
		{"/api/downloads/dl_1/", "dl_1", ""},
		{"/api/downloads/dl_1/progress", "dl_1", "progress"},
		{"/api/downloads/dl_1/authenticate", "dl_1", "authenticate"},
		{"/api/downloads/", "", ""},
		{"/api/other", "", ""},
	}
	for _, tt := range tests {
		id, suffix := SplitDownloadPath(tt.path)
		if id != tt.id || suffix != tt.suffix {
			t.Errorf("SplitDownloadPath(%q) = (%q, %q), want (%q, %q)", tt.path, id, suffix, tt.id, tt.suffix)
		}
	}
}
