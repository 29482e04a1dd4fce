// Package manager tracks resume download runs. Each run owns its state and
// cancellation token; the service is only a registry plus lifecycle
// transitions, so nothing about a run lives in package globals.
package manager

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvest/internal/common"
	"github.com/ternarybob/harvest/internal/interfaces"
	"github.com/ternarybob/harvest/internal/models"
	"github.com/ternarybob/harvest/internal/services/browser"
	"github.com/ternarybob/harvest/internal/services/progress"
)

// maxRunLogs bounds the per-run log buffer clients can page through
const maxRunLogs = 50

// ErrNotFound is returned for unknown download IDs
var ErrNotFound = errors.New("download not found")

// ErrNotAwaitingLogin is returned when cookies are supplied to a run that is
// not paused in the login_required state.
var ErrNotAwaitingLogin = errors.New("download is not awaiting login")

// LogEvent is the payload published with EventDownloadLog
type LogEvent struct {
	DownloadID string                  `json:"download_id"`
	Entry      models.DownloadLogEntry `json:"entry"`
}

// ProgressEvent is the payload published with EventDownloadProgress and
// EventDownloadStatus.
type ProgressEvent struct {
	DownloadID string                  `json:"download_id"`
	JobID      string                  `json:"job_id"`
	Status     models.DownloadStatus   `json:"status"`
	Progress   models.DownloadProgress `json:"progress"`
}

// run is the full state of one download run
type run struct {
	job     *models.DownloadJob
	opts    browser.RunOptions
	token   *browser.Token
	tracker *progress.Tracker
	cancel  context.CancelFunc
}

// Service implements interfaces.DownloadService
type Service struct {
	config       *common.Config
	eventService interfaces.EventService
	logger       arbor.ILogger
	factory      browser.SessionFactory

	mu   sync.RWMutex
	runs map[string]*run

	wg       sync.WaitGroup
	janitor  *cron.Cron
	validate *validator.Validate
}

// NewService creates a download manager using real browser sessions
func NewService(config *common.Config, eventService interfaces.EventService, logger arbor.ILogger) *Service {
	return NewServiceWithFactory(config, eventService, browser.NewChromeSession, logger)
}

// NewServiceWithFactory creates a download manager with a custom browser
// session factory. Tests inject a scripted page through this.
func NewServiceWithFactory(config *common.Config, eventService interfaces.EventService, factory browser.SessionFactory, logger arbor.ILogger) *Service {
	return &Service{
		config:       config,
		eventService: eventService,
		logger:       logger,
		factory:      factory,
		runs:         make(map[string]*run),
		validate:     validator.New(),
	}
}

// Start begins a new download run and returns its record
func (s *Service) Start(req models.StartDownloadRequest) (*models.DownloadJob, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid download request: %w", err)
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(s.config.Downloads.OutputDir, "job_"+req.JobID)
	}
	headless := s.config.Browser.Headless
	if req.Headless != nil {
		headless = *req.Headless
	}

	job := &models.DownloadJob{
		ID:        common.NewDownloadID(),
		JobID:     req.JobID,
		Status:    models.DownloadStatusPending,
		OutputDir: outputDir,
		CreatedAt: time.Now(),
	}

	r := &run{
		job:   job,
		token: browser.NewToken(),
		opts: browser.RunOptions{
			JobID:     req.JobID,
			OutputDir: outputDir,
			Cookies:   req.Cookies,
			Headless:  headless,
			UserAgent: s.config.Browser.UserAgent,
		},
	}

	s.mu.Lock()
	s.runs[job.ID] = r
	s.mu.Unlock()

	s.logger.Info().
		Str("download_id", job.ID).
		Str("job_id", req.JobID).
		Str("output_dir", outputDir).
		Bool("headless", headless).
		Msg("Download run registered")

	s.launch(r)
	return s.Get(job.ID), nil
}

// launch starts (or restarts) the run goroutine
func (s *Service) launch(r *run) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	r.cancel = cancel
	now := time.Now()
	r.job.Status = models.DownloadStatusInProgress
	r.job.StartedAt = &now
	r.job.Error = ""
	r.tracker = progress.NewTracker(now)
	s.mu.Unlock()

	s.publishStatus(r)

	s.wg.Add(1)
	common.SafeGo(s.logger, "download:"+r.job.ID, func() {
		defer s.wg.Done()
		defer cancel()
		s.execute(ctx, r)
	})
}

// execute drives the browser engine for one run and records the outcome
func (s *Service) execute(ctx context.Context, r *run) {
	sink := func(level, message string) {
		s.recordLog(r, level, message)
	}

	downloader := browser.NewDownloaderWithFactory(s.config.Browser, s.factory, s.logger, sink)
	summary, err := downloader.Run(ctx, r.token, r.opts)

	s.mu.Lock()
	r.job.Summary = summary

	switch {
	case err == nil:
		r.job.Status = models.DownloadStatusCompleted
	case errors.Is(err, browser.ErrCancelled), errors.Is(err, context.Canceled):
		r.job.Status = models.DownloadStatusCancelled
	case errors.Is(err, browser.ErrCredentialsRequired):
		// Paused, not finished: the run resumes when cookies arrive
		r.job.Status = models.DownloadStatusLoginRequired
		r.job.Error = err.Error()
	default:
		r.job.Status = models.DownloadStatusFailed
		r.job.Error = err.Error()
	}

	if r.job.Status.IsTerminal() {
		now := time.Now()
		r.job.CompletedAt = &now
	}
	status := r.job.Status
	s.mu.Unlock()

	s.logger.Info().
		Str("download_id", r.job.ID).
		Str("status", string(status)).
		Err(err).
		Msg("Download run finished")
	s.publishStatus(r)
}

// Get returns a snapshot of a run, or nil if unknown
func (s *Service) Get(downloadID string) *models.DownloadJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[downloadID]
	if !ok {
		return nil
	}
	return s.snapshotLocked(r)
}

// List returns snapshots of all known runs, newest first
func (s *Service) List() []*models.DownloadJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*models.DownloadJob, 0, len(s.runs))
	for _, r := range s.runs {
		jobs = append(jobs, s.snapshotLocked(r))
	}
	for i := 0; i < len(jobs); i++ {
		for j := i + 1; j < len(jobs); j++ {
			if jobs[j].CreatedAt.After(jobs[i].CreatedAt) {
				jobs[i], jobs[j] = jobs[j], jobs[i]
			}
		}
	}
	return jobs
}

// Cancel requests cancellation of a run. Cancelling a run that already
// reached a terminal state is a no-op.
func (s *Service) Cancel(downloadID string) (*models.DownloadJob, error) {
	s.mu.Lock()
	r, ok := s.runs[downloadID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	if r.job.Status.IsTerminal() {
		snapshot := s.snapshotLocked(r)
		s.mu.Unlock()
		return snapshot, nil
	}

	r.token.Cancel()

	// A paused or not-yet-started run has no goroutine to notice the token
	if r.job.Status == models.DownloadStatusPending || r.job.Status == models.DownloadStatusLoginRequired {
		r.job.Status = models.DownloadStatusCancelled
		now := time.Now()
		r.job.CompletedAt = &now
	}
	snapshot := s.snapshotLocked(r)
	s.mu.Unlock()

	s.logger.Info().Str("download_id", downloadID).Msg("Cancellation requested")
	s.recordLog(r, "warn", "Cancellation requested")
	s.publishStatus(r)
	return snapshot, nil
}

// Authenticate supplies session cookies to a run paused in login_required
// and restarts it under the same download ID.
func (s *Service) Authenticate(downloadID string, cookies []models.Cookie) (*models.DownloadJob, error) {
	s.mu.Lock()
	r, ok := s.runs[downloadID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if r.job.Status != models.DownloadStatusLoginRequired {
		s.mu.Unlock()
		return nil, ErrNotAwaitingLogin
	}

	r.opts.Cookies = cookies
	r.token = browser.NewToken()
	s.mu.Unlock()

	s.logger.Info().
		Str("download_id", downloadID).
		Int("cookies", len(cookies)).
		Msg("Session cookies supplied, resuming download run")

	s.launch(r)
	return s.Get(downloadID), nil
}

// StartJanitor begins pruning terminal runs past the configured retention
func (s *Service) StartJanitor() error {
	if s.config.Downloads.PruneSchedule == "" || s.config.Downloads.Retention <= 0 {
		return nil
	}

	s.janitor = cron.New()
	if _, err := s.janitor.AddFunc(s.config.Downloads.PruneSchedule, s.prune); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", s.config.Downloads.PruneSchedule, err)
	}
	s.janitor.Start()

	s.logger.Info().
		Str("schedule", s.config.Downloads.PruneSchedule).
		Str("retention", s.config.Downloads.Retention.String()).
		Msg("Download registry janitor started")
	return nil
}

// prune drops terminal runs whose completion is older than the retention
func (s *Service) prune() {
	cutoff := time.Now().Add(-s.config.Downloads.Retention)

	s.mu.Lock()
	removed := 0
	for id, r := range s.runs {
		if r.job.Status.IsTerminal() && r.job.CompletedAt != nil && r.job.CompletedAt.Before(cutoff) {
			delete(s.runs, id)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Pruned expired download runs")
	}
}

// Stop cancels all active runs and waits for them to wind down
func (s *Service) Stop() {
	if s.janitor != nil {
		s.janitor.Stop()
	}

	s.mu.Lock()
	for _, r := range s.runs {
		if !r.job.Status.IsTerminal() {
			r.token.Cancel()
			if r.cancel != nil {
				r.cancel()
			}
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("Download manager stopped")
}

// recordLog appends a run log line, updates progress, and publishes events
func (s *Service) recordLog(r *run, level, message string) {
	entry := models.DownloadLogEntry{
		Timestamp: time.Now().Format("15:04:05"),
		Level:     level,
		Message:   message,
	}

	s.mu.Lock()
	r.job.Logs = append(r.job.Logs, entry)
	if len(r.job.Logs) > maxRunLogs {
		r.job.Logs = r.job.Logs[len(r.job.Logs)-maxRunLogs:]
	}
	progressed := false
	if r.tracker != nil && r.tracker.Observe(message) {
		r.job.Progress = r.tracker.Snapshot()
		progressed = true
	}
	s.mu.Unlock()

	s.eventService.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventDownloadLog,
		Payload: LogEvent{DownloadID: r.job.ID, Entry: entry},
	})
	if progressed {
		s.publishProgress(r)
	}
}

func (s *Service) publishProgress(r *run) {
	s.eventService.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventDownloadProgress,
		Payload: s.progressEvent(r),
	})
}

func (s *Service) publishStatus(r *run) {
	s.eventService.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventDownloadStatus,
		Payload: s.progressEvent(r),
	})
}

func (s *Service) progressEvent(r *run) ProgressEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ProgressEvent{
		DownloadID: r.job.ID,
		JobID:      r.job.JobID,
		Status:     r.job.Status,
		Progress:   r.job.Progress,
	}
}

// snapshotLocked copies a run's job record. Callers hold at least a read
// lock.
func (s *Service) snapshotLocked(r *run) *models.DownloadJob {
	snapshot := *r.job
	snapshot.Logs = append([]models.DownloadLogEntry(nil), r.job.Logs...)
	if r.job.Summary != nil {
		summary := *r.job.Summary
		snapshot.Summary = &summary
	}
	return &snapshot
}
