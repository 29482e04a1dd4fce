package interfaces

import (
	"github.com/ternarybob/harvest/internal/models"
)

// DownloadService manages resume download runs. Each run is identified by a
// download ID and owns its state; the service keeps the registry.
type DownloadService interface {
	// Start begins a new download run for a job posting and returns its record
	Start(req models.StartDownloadRequest) (*models.DownloadJob, error)

	// Get returns a snapshot of a run, or nil if unknown
	Get(downloadID string) *models.DownloadJob

	// List returns snapshots of all known runs, newest first
	List() []*models.DownloadJob

	// Cancel requests cancellation of a run. Cancelling a run that already
	// reached a terminal state is a no-op and returns the final record.
	Cancel(downloadID string) (*models.DownloadJob, error)

	// Authenticate supplies session cookies to a run paused in the
	// login_required state and resumes it.
	Authenticate(downloadID string, cookies []models.Cookie) (*models.DownloadJob, error)

	// Stop cancels all active runs and waits for them to wind down
	Stop()
}
