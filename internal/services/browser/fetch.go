package browser

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvest/internal/common"
	"github.com/ternarybob/harvest/internal/models"
)

// Fetcher downloads one candidate's resume: locate the document link on the
// profile page, trigger it, and verify the file landed.
type Fetcher struct {
	page     Page
	verifier *verifier
	config   common.BrowserConfig
	logger   arbor.ILogger
}

// NewFetcher creates a fetcher writing into outputDir
func NewFetcher(page Page, outputDir string, config common.BrowserConfig, logger arbor.ILogger) *Fetcher {
	return &Fetcher{
		page:     page,
		verifier: newVerifier(outputDir, config, logger),
		config:   config,
		logger:   logger,
	}
}

// FetchResume visits the candidate's profile and downloads their resume,
// returning the path of the verified file. Failures are candidate-scoped:
// the caller counts them and moves on.
func (f *Fetcher) FetchResume(ctx context.Context, candidate models.CandidateRecord) (string, error) {
	if err := f.page.Navigate(ctx, candidate.ProfileURL); err != nil {
		return "", &CandidateError{CandidateID: candidate.ID, Err: fmt.Errorf("%w: %v", ErrDocumentNotFound, err)}
	}
	if err := f.page.Sleep(ctx, f.config.PageSettle); err != nil {
		return "", err
	}

	html, err := f.page.HTML(ctx)
	if err != nil {
		return "", &CandidateError{CandidateID: candidate.ID, Err: fmt.Errorf("%w: %v", ErrDocumentNotFound, err)}
	}

	strategy, target, err := locateDocument(html)
	if err != nil {
		return "", &CandidateError{CandidateID: candidate.ID, Err: err}
	}
	f.logger.Debug().
		Str("candidate", candidate.ID).
		Str("strategy", strategy).
		Msg("Located resume document link")

	before := f.verifier.snapshot()

	if err := f.trigger(ctx, target); err != nil {
		return "", &CandidateError{CandidateID: candidate.ID, Err: err}
	}

	path, err := f.verifier.awaitDownload(ctx, before)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &CandidateError{CandidateID: candidate.ID, Err: err}
	}
	return path, nil
}

// trigger activates the document link: native click first, scripted click as
// the fallback for links hidden behind overlays.
func (f *Fetcher) trigger(ctx context.Context, target ClickTarget) error {
	clickErr := f.page.Click(ctx, target)
	if clickErr == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	f.logger.Debug().
		Err(clickErr).
		Str("target", target.Query).
		Msg("Native click failed, falling back to scripted click")

	if err := f.page.ClickScript(ctx, target); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: click: %v, script click: %v", ErrTriggerFailed, clickErr, err)
	}
	return nil
}
