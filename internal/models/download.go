package models

import (
	"time"
)

// DownloadStatus represents the state of a resume download run
type DownloadStatus string

const (
	DownloadStatusPending       DownloadStatus = "pending"
	DownloadStatusInProgress    DownloadStatus = "in_progress"
	DownloadStatusCompleted     DownloadStatus = "completed"
	DownloadStatusFailed        DownloadStatus = "failed"
	DownloadStatusCancelled     DownloadStatus = "cancelled"
	DownloadStatusLoginRequired DownloadStatus = "login_required"
)

// IsTerminal reports whether the run has finished and will make no further
// progress. login_required is not terminal: the run is paused waiting for
// credentials and can be resumed.
func (s DownloadStatus) IsTerminal() bool {
	switch s {
	case DownloadStatusCompleted, DownloadStatusFailed, DownloadStatusCancelled:
		return true
	}
	return false
}

// DownloadProgress tracks how far through the candidate list a run is.
// EstimatedRemaining is only populated once at least one candidate has been
// processed.
type DownloadProgress struct {
	Processed          int     `json:"processed"`
	Total              int     `json:"total"`
	Percentage         float64 `json:"percentage"`
	EstimatedRemaining string  `json:"estimated_time_remaining,omitempty"`
}

// DownloadSummary is the final accounting for a run. MissingIDs is the set of
// candidate IDs that were found during enumeration but never produced a file
// on disk.
type DownloadSummary struct {
	Found            int      `json:"found"`
	UniqueFound      int      `json:"unique_found"`
	Downloaded       int      `json:"downloaded"`
	UniqueDownloaded int      `json:"unique_downloaded"`
	Failed           int      `json:"failed"`
	MissingIDs       []string `json:"missing_ids,omitempty"`
}

// DownloadLogEntry represents a single log entry for a download run
type DownloadLogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// DownloadJob represents a resume download run tracked by the service layer.
// All run state lives here (no globals); the manager keeps a registry of
// these keyed by ID.
type DownloadJob struct {
	ID          string             `json:"download_id"`
	JobID       string             `json:"job_id"`
	Status      DownloadStatus     `json:"status"`
	OutputDir   string             `json:"output_dir"`
	Progress    DownloadProgress   `json:"progress"`
	Logs        []DownloadLogEntry `json:"logs,omitempty"`
	Summary     *DownloadSummary   `json:"summary,omitempty"`
	Error       string             `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// Duration returns the wall-clock duration of the run so far, or the final
// duration once the run has completed.
func (j *DownloadJob) Duration() time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	if j.CompletedAt != nil {
		return j.CompletedAt.Sub(*j.StartedAt)
	}
	return time.Since(*j.StartedAt)
}

// StartDownloadRequest is the payload for starting a download run
type StartDownloadRequest struct {
	JobID     string   `json:"job_id" validate:"required"`
	OutputDir string   `json:"output_dir,omitempty"`
	Cookies   []Cookie `json:"cookies,omitempty"`
	Headless  *bool    `json:"headless,omitempty"`
}

// AuthenticateRequest supplies session cookies to a run paused in the
// login_required state
type AuthenticateRequest struct {
	Cookies []Cookie `json:"cookies" validate:"required,min=1"`
}
