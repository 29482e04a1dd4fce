package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvest/internal/common"
	"github.com/ternarybob/harvest/internal/models"
)

// Navigator owns session establishment for one run: cookie injection, the
// candidate list navigation, and login detection with a bounded interactive
// wait.
type Navigator struct {
	page     Page
	jobID    string
	config   common.BrowserConfig
	headless bool
	logger   arbor.ILogger
}

// NewNavigator creates a navigator for a single run
func NewNavigator(page Page, jobID string, config common.BrowserConfig, headless bool, logger arbor.ILogger) *Navigator {
	return &Navigator{
		page:     page,
		jobID:    jobID,
		config:   config,
		headless: headless,
		logger:   logger,
	}
}

// CandidateListURL returns the workflow view listing all candidates for the
// job posting
func (n *Navigator) CandidateListURL() string {
	return fmt.Sprintf("%s/app/v2/job/%s/candidate?workflowStep=1", strings.TrimRight(n.config.BaseURL, "/"), n.jobID)
}

// InjectCookies navigates to the app origin and installs the supplied
// session cookies. Cookies must be set against the live origin or the
// browser silently drops them.
func (n *Navigator) InjectCookies(ctx context.Context, cookies []models.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}

	if err := n.page.Navigate(ctx, n.config.BaseURL); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	if err := n.page.Sleep(ctx, n.config.PageSettle); err != nil {
		return err
	}

	applied, err := n.page.SetCookies(ctx, cookies)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	n.logger.Info().
		Int("applied", applied).
		Int("supplied", len(cookies)).
		Msg("Session cookies injected")
	return nil
}

// OpenCandidateList navigates to the candidate list and ensures the session
// is authenticated, waiting for an interactive login when one is possible.
// hasCookies indicates whether session cookies were supplied for this run.
func (n *Navigator) OpenCandidateList(ctx context.Context, token *Token, hasCookies bool) error {
	url := n.CandidateListURL()
	n.logger.Info().Str("url", url).Msg("Opening candidate list")

	if err := n.page.Navigate(ctx, url); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	if err := n.page.Sleep(ctx, n.config.PageSettle); err != nil {
		return err
	}

	required, err := n.loginRequired(ctx)
	if err != nil {
		return err
	}
	if !required {
		n.logger.Info().Msg("Session authenticated")
		return nil
	}

	// Supplied cookies that still leave us on a login page are invalid or
	// expired. Reload once before concluding that; cookie auth sometimes
	// needs a second page load to take effect.
	if hasCookies {
		if err := n.page.Navigate(ctx, url); err != nil {
			return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
		}
		if err := n.page.Sleep(ctx, n.config.PageSettle); err != nil {
			return err
		}
		required, err = n.loginRequired(ctx)
		if err != nil {
			return err
		}
		if required {
			return fmt.Errorf("%w: invalid or expired cookies", ErrAuthenticationFailed)
		}
		n.logger.Info().Msg("Session authenticated after reload")
		return nil
	}

	// A headless run with no cookies can never complete a login form
	if n.headless {
		return ErrCredentialsRequired
	}

	if err := n.awaitLogin(ctx, token); err != nil {
		return err
	}

	// The wall may have cleared on the dashboard rather than the candidate
	// list; put the session back on the list and confirm the login stuck.
	if err := n.page.Navigate(ctx, url); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	if err := n.page.Sleep(ctx, n.config.PageSettle); err != nil {
		return err
	}
	required, err = n.loginRequired(ctx)
	if err != nil {
		return err
	}
	if required {
		return fmt.Errorf("%w: still on login page after sign-in", ErrAuthenticationFailed)
	}
	n.logger.Info().Msg("Session authenticated")
	return nil
}

// loginRequired applies the ordered login checks. The first conclusive check
// wins; anything inconclusive falls through to the assumption that the
// session is authenticated.
func (n *Navigator) loginRequired(ctx context.Context) (bool, error) {
	loc, err := n.page.Location(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	if strings.Contains(loc, fmt.Sprintf("/job/%s/candidate", n.jobID)) {
		return false, nil
	}

	lower := strings.ToLower(loc)
	if strings.Contains(lower, "login") || strings.Contains(lower, "signin") {
		return true, nil
	}

	hasForm, err := n.page.HasVisibleLoginForm(ctx)
	if err != nil {
		// The DOM probe is a heuristic; treat failure as inconclusive
		n.logger.Warn().Err(err).Msg("Login form probe failed, assuming authenticated")
		return false, nil
	}
	return hasForm, nil
}

// awaitLogin polls until the login wall clears, the token fires, or the
// configured wait expires.
func (n *Navigator) awaitLogin(ctx context.Context, token *Token) error {
	n.logger.Info().
		Str("wait", n.config.LoginWait.String()).
		Msg("Login required - waiting for user to sign in")

	deadline := time.Now().Add(n.config.LoginWait)
	lastLog := time.Now()

	for time.Now().Before(deadline) {
		if token.Cancelled() {
			return ErrCancelled
		}

		required, err := n.loginRequired(ctx)
		if err != nil {
			return err
		}
		if !required {
			n.logger.Info().Msg("Login detected, continuing")
			return nil
		}

		if time.Since(lastLog) >= n.config.LoginLogInterval {
			remaining := time.Until(deadline).Round(time.Second)
			n.logger.Info().
				Str("remaining", remaining.String()).
				Msg("Still waiting for login")
			lastLog = time.Now()
		}

		if err := n.page.Sleep(ctx, n.config.LoginPollInterval); err != nil {
			return err
		}
	}

	return ErrAuthenticationTimeout
}
