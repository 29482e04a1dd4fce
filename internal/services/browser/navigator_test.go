package browser

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvest/internal/common"
	"github.com/ternarybob/harvest/internal/models"
)

func testBrowserConfig() common.BrowserConfig {
	return common.BrowserConfig{
		BaseURL:             "https://app.jazz.co",
		PageSettle:          time.Millisecond,
		ScrollSettle:        time.Millisecond,
		ScrollMaxIterations: 50,
		ScrollStableSamples: 3,
		LoginWait:           50 * time.Millisecond,
		LoginPollInterval:   5 * time.Millisecond,
		LoginLogInterval:    20 * time.Millisecond,
		DownloadWait:        200 * time.Millisecond,
		DownloadPoll:        10 * time.Millisecond,
		FallbackScanWindow:  2 * time.Minute,
		CandidateDelay:      time.Millisecond,
		EmptyRetryDelay:     5 * time.Millisecond,
	}
}

func TestOpenCandidateListAuthenticated(t *testing.T) {
	page := &fakePage{}
	nav := NewNavigator(page, "1234", testBrowserConfig(), false, arbor.NewLogger())

	if err := nav.OpenCandidateList(context.Background(), NewToken(), true); err != nil {
		t.Fatalf("expected authenticated session, got error: %v", err)
	}
}

func TestLoginDetectionOrder(t *testing.T) {
	cfg := testBrowserConfig()
	logger := arbor.NewLogger()

	// Candidate URL wins even when a login form is visible on the page
	page := &fakePage{
		loginFormAt: func(string) bool { return true },
	}
	nav := NewNavigator(page, "1234", cfg, false, logger)
	page.Navigate(context.Background(), nav.CandidateListURL())
	required, err := nav.loginRequired(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if required {
		t.Error("candidate URL should short-circuit the login form check")
	}

	// A login URL means login required regardless of page content
	page = &fakePage{
		onNavigate: func(string) string { return "https://app.jazz.co/users/login" },
	}
	nav = NewNavigator(page, "1234", cfg, false, logger)
	page.Navigate(context.Background(), "anything")
	required, err = nav.loginRequired(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !required {
		t.Error("login URL should report login required")
	}

	// Neutral URL with a visible login form
	page = &fakePage{
		onNavigate:  func(string) string { return "https://app.jazz.co/dashboard" },
		loginFormAt: func(string) bool { return true },
	}
	nav = NewNavigator(page, "1234", cfg, false, logger)
	page.Navigate(context.Background(), "anything")
	required, err = nav.loginRequired(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !required {
		t.Error("visible login form should report login required")
	}

	// Nothing conclusive: assume authenticated
	page = &fakePage{
		onNavigate: func(string) string { return "https://app.jazz.co/dashboard" },
	}
	nav = NewNavigator(page, "1234", cfg, false, logger)
	page.Navigate(context.Background(), "anything")
	required, err = nav.loginRequired(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if required {
		t.Error("inconclusive checks should assume authenticated")
	}
}

func TestAwaitLoginSucceedsWhenWallClears(t *testing.T) {
	// Until the user signs in every navigation redirects to the login
	// page; afterwards navigation lands where it was pointed.
	var loggedIn atomic.Bool
	page := &fakePage{}
	page.onNavigate = func(url string) string {
		if loggedIn.Load() {
			return url
		}
		return "https://app.jazz.co/users/login"
	}

	cfg := testBrowserConfig()
	nav := NewNavigator(page, "1234", cfg, false, arbor.NewLogger())

	// Sign in shortly after the wait starts, landing on the dashboard
	// rather than the candidate list
	go func() {
		time.Sleep(10 * time.Millisecond)
		loggedIn.Store(true)
		page.mu.Lock()
		page.location = "https://app.jazz.co/dashboard"
		page.mu.Unlock()
	}()

	if err := nav.OpenCandidateList(context.Background(), NewToken(), false); err != nil {
		t.Fatalf("expected login wait to succeed, got: %v", err)
	}

	// The session must end up back on the candidate list, not wherever
	// the login flow dropped the user
	page.mu.Lock()
	last := page.navigations[len(page.navigations)-1]
	finalLoc := page.location
	page.mu.Unlock()
	if last != nav.CandidateListURL() {
		t.Errorf("expected a post-login return to the candidate list, last navigation was %s", last)
	}
	if finalLoc != nav.CandidateListURL() {
		t.Errorf("expected session on the candidate list, got %s", finalLoc)
	}
}

func TestRejectedCookiesFailAuthentication(t *testing.T) {
	// Cookies were supplied but the session still lands on the login page
	// after a reload: the credentials are invalid or expired, and the run
	// must not fall into the interactive wait.
	page := &fakePage{
		onNavigate: func(string) string { return "https://app.jazz.co/users/login" },
	}
	nav := NewNavigator(page, "1234", testBrowserConfig(), true, arbor.NewLogger())

	err := nav.OpenCandidateList(context.Background(), NewToken(), true)
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got: %v", err)
	}
	// One initial navigation plus exactly one reload
	if page.navigationCount() != 2 {
		t.Errorf("expected 2 navigations, got %d", page.navigationCount())
	}
}

func TestAwaitLoginTimesOut(t *testing.T) {
	page := &fakePage{
		onNavigate: func(string) string { return "https://app.jazz.co/users/login" },
	}
	nav := NewNavigator(page, "1234", testBrowserConfig(), false, arbor.NewLogger())

	err := nav.OpenCandidateList(context.Background(), NewToken(), false)
	if !errors.Is(err, ErrAuthenticationTimeout) {
		t.Fatalf("expected ErrAuthenticationTimeout, got: %v", err)
	}
}

func TestAwaitLoginHonorsCancellation(t *testing.T) {
	page := &fakePage{
		onNavigate: func(string) string { return "https://app.jazz.co/users/login" },
	}
	cfg := testBrowserConfig()
	cfg.LoginWait = time.Minute
	nav := NewNavigator(page, "1234", cfg, false, arbor.NewLogger())

	token := NewToken()
	token.Cancel()

	err := nav.OpenCandidateList(context.Background(), token, false)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got: %v", err)
	}
}

func TestHeadlessWithoutCookiesFailsFast(t *testing.T) {
	page := &fakePage{
		onNavigate: func(string) string { return "https://app.jazz.co/users/login" },
	}
	nav := NewNavigator(page, "1234", testBrowserConfig(), true, arbor.NewLogger())

	err := nav.OpenCandidateList(context.Background(), NewToken(), false)
	if !errors.Is(err, ErrCredentialsRequired) {
		t.Fatalf("expected ErrCredentialsRequired, got: %v", err)
	}
}

func TestInjectCookiesNavigatesToOriginFirst(t *testing.T) {
	page := &fakePage{}
	nav := NewNavigator(page, "1234", testBrowserConfig(), false, arbor.NewLogger())

	cookies := []models.Cookie{{Name: "session", Value: "abc"}}
	if err := nav.InjectCookies(context.Background(), cookies); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(page.navigations) == 0 || !strings.HasPrefix(page.navigations[0], "https://app.jazz.co") {
		t.Errorf("cookies must be installed against the app origin, navigations: %v", page.navigations)
	}
	if page.cookiesSet != 1 {
		t.Errorf("expected 1 cookie set, got %d", page.cookiesSet)
	}
}
