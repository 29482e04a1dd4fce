package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvest/internal/common"
	"github.com/ternarybob/harvest/internal/models"
)

// SessionFactory opens a live browser page for a run. Swapped for a fake in
// tests.
type SessionFactory func(ctx context.Context, opts SessionOptions, logger arbor.ILogger) (Page, error)

// ProgressSink receives the run's progress log lines as they are emitted.
// The service layer derives progress percentages from these lines, so their
// wording is part of the contract.
type ProgressSink func(level, message string)

// RunOptions configures one download run
type RunOptions struct {
	JobID     string
	OutputDir string
	Cookies   []models.Cookie
	Headless  bool
	UserAgent string
}

// Downloader orchestrates a full run: session, enumeration, per-candidate
// fetching, pacing, cancellation, and the final summary. All state is scoped
// to the Run call; a Downloader can be reused across runs.
type Downloader struct {
	config     common.BrowserConfig
	newSession SessionFactory
	logger     arbor.ILogger
	sink       ProgressSink
}

// NewDownloader creates a downloader using real browser sessions
func NewDownloader(config common.BrowserConfig, logger arbor.ILogger, sink ProgressSink) *Downloader {
	return NewDownloaderWithFactory(config, NewChromeSession, logger, sink)
}

// NewDownloaderWithFactory creates a downloader with a custom session factory
func NewDownloaderWithFactory(config common.BrowserConfig, factory SessionFactory, logger arbor.ILogger, sink ProgressSink) *Downloader {
	return &Downloader{
		config:     config,
		newSession: factory,
		logger:     logger,
		sink:       sink,
	}
}

// Run executes a download run to completion. It always returns a summary
// when any candidates were enumerated, even alongside an error: a cancelled
// run reports the work it finished before the token fired.
func (d *Downloader) Run(ctx context.Context, token *Token, opts RunOptions) (*models.DownloadSummary, error) {
	// An interactive login is impossible without a visible browser, so a
	// cookie-less headless run can never get past the login wall.
	if opts.Headless && len(opts.Cookies) == 0 {
		return nil, ErrCredentialsRequired
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	page, err := d.newSession(ctx, SessionOptions{
		Headless:    opts.Headless,
		UserAgent:   opts.UserAgent,
		DownloadDir: opts.OutputDir,
	}, d.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	defer page.Close()

	navigator := NewNavigator(page, opts.JobID, d.config, opts.Headless, d.logger)

	if err := navigator.InjectCookies(ctx, opts.Cookies); err != nil {
		return nil, err
	}
	if err := navigator.OpenCandidateList(ctx, token, len(opts.Cookies) > 0); err != nil {
		return nil, err
	}

	listURL := navigator.CandidateListURL()

	result, err := d.enumerate(ctx, token, page, opts.JobID, listURL)
	if err != nil {
		return nil, err
	}

	candidates := result.Records
	total := len(candidates)
	d.emit("info", fmt.Sprintf("Total Candidates Found: %d", total))

	fetcher := NewFetcher(page, opts.OutputDir, d.config, d.logger)

	downloaded := make(map[string]bool)
	failed := 0
	cancelled := false

	for i, candidate := range candidates {
		if token.Cancelled() {
			d.emit("warn", fmt.Sprintf("Cancellation requested, stopping after %d of %d candidates", i, total))
			cancelled = true
			break
		}

		d.emit("info", fmt.Sprintf("Processing candidate %d/%d", i+1, total))

		path, err := fetcher.FetchResume(ctx, candidate)
		if err != nil {
			if ctx.Err() != nil {
				return d.summarize(result, downloaded, failed), ctx.Err()
			}
			failed++
			d.emit("warn", fmt.Sprintf("Failed to download resume for candidate %s: %v", candidate.ID, err))

			// Recover to a known page before the next candidate
			if navErr := page.Navigate(ctx, listURL); navErr != nil {
				d.logger.Warn().Err(navErr).Msg("Recovery navigation failed")
			}
			if sleepErr := page.Sleep(ctx, d.config.CandidateDelay); sleepErr != nil {
				return d.summarize(result, downloaded, failed), sleepErr
			}
			continue
		}

		downloaded[candidate.ID] = true
		d.emit("info", fmt.Sprintf("Successfully downloaded resume %d/%d", i+1, total))
		d.logger.Debug().Str("candidate", candidate.ID).Str("file", path).Msg("Resume stored")

		// Visiting a profile leaves the list context; go back before the
		// next candidate. The settle doubles as a pacing delay so the app
		// doesn't rate-limit the session.
		if navErr := page.Navigate(ctx, listURL); navErr != nil {
			d.logger.Warn().Err(navErr).Msg("Return navigation failed")
		}
		if err := page.Sleep(ctx, d.config.CandidateDelay); err != nil {
			return d.summarize(result, downloaded, failed), err
		}
	}

	summary := d.summarize(result, downloaded, failed)
	d.emit("info", fmt.Sprintf("Successfully Downloaded: %d", summary.Downloaded))
	if summary.Failed > 0 {
		d.emit("warn", fmt.Sprintf("Failed downloads: %d", summary.Failed))
	}
	if len(summary.MissingIDs) > 0 {
		d.emit("warn", fmt.Sprintf("Missing candidate IDs: %v", summary.MissingIDs))
	}

	if cancelled {
		return summary, ErrCancelled
	}
	return summary, nil
}

// enumerate lists candidates, retrying exactly once after a delay when the
// first pass comes back empty. The list often needs one more page load
// before rows appear.
func (d *Downloader) enumerate(ctx context.Context, token *Token, page Page, jobID, listURL string) (*EnumerationResult, error) {
	enumerator := NewEnumerator(page, jobID, d.config, d.logger)

	result, err := enumerator.ListCandidates(ctx)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, ErrEnumerationEmpty) {
		return nil, err
	}

	d.emit("warn", fmt.Sprintf("No candidates found, retrying in %s", d.config.EmptyRetryDelay))
	// A fresh page load, not just a pause: the empty list is usually the
	// page having rendered before its rows arrived.
	if err := page.Navigate(ctx, listURL); err != nil {
		return nil, fmt.Errorf("failed to reload candidate list: %w", err)
	}
	if err := page.Sleep(ctx, d.config.EmptyRetryDelay); err != nil {
		return nil, err
	}
	if token.Cancelled() {
		return nil, ErrCancelled
	}

	return enumerator.ListCandidates(ctx)
}

// summarize builds the final accounting. MissingIDs is the sorted set of
// enumerated candidates that never produced a file.
func (d *Downloader) summarize(result *EnumerationResult, downloaded map[string]bool, failed int) *models.DownloadSummary {
	var missing []string
	for _, candidate := range result.Records {
		if !downloaded[candidate.ID] {
			missing = append(missing, candidate.ID)
		}
	}
	sort.Strings(missing)

	return &models.DownloadSummary{
		Found:            result.Found,
		UniqueFound:      len(result.Records),
		Downloaded:       len(downloaded),
		UniqueDownloaded: len(downloaded),
		Failed:           failed,
		MissingIDs:       missing,
	}
}

// emit sends a progress line to both the logger and the run's sink
func (d *Downloader) emit(level, message string) {
	switch level {
	case "warn":
		d.logger.Warn().Msg(message)
	default:
		d.logger.Info().Msg(message)
	}
	if d.sink != nil {
		d.sink(level, message)
	}
}
