package browser

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvest/internal/models"
)

// SessionOptions configures a live browser session
type SessionOptions struct {
	Headless    bool
	UserAgent   string
	DownloadDir string
}

// chromeSession implements Page on top of a dedicated chromedp browser
// instance. Each run gets its own session so downloads route to the run's
// output directory.
type chromeSession struct {
	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      arbor.ILogger
}

// NewChromeSession launches a browser and returns a Page bound to one tab.
// Downloads are routed to opts.DownloadDir via CDP.
func NewChromeSession(ctx context.Context, opts SessionOptions, logger arbor.ILogger) (Page, error) {
	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,

		// Stealth flags - the app blocks sessions that advertise automation
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("excludeSwitches", "enable-automation"),
		chromedp.Flag("useAutomationExtension", false),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("no-sandbox", true),

		chromedp.WindowSize(1920, 1080),
	}

	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
		allocOpts = append(allocOpts, chromedp.Flag("disable-gpu", true))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		ctx:         browserCtx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
		logger:      logger,
	}

	// Start the browser and enable the network domain for cookie injection
	if err := chromedp.Run(browserCtx, network.Enable()); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	if opts.DownloadDir != "" {
		absDir, err := filepath.Abs(opts.DownloadDir)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to resolve download directory: %w", err)
		}
		err = chromedp.Run(browserCtx,
			cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
				WithDownloadPath(absDir).
				WithEventsEnabled(true),
		)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to set download directory: %w", err)
		}
		logger.Debug().Str("dir", absDir).Msg("Browser downloads routed to output directory")
	}

	return s, nil
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (s *chromeSession) Location(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read page location: %w", err)
	}
	return loc, nil
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to snapshot page HTML: %w", err)
	}
	return html, nil
}

func (s *chromeSession) ScrollHeight(ctx context.Context) (int64, error) {
	var height int64
	if err := s.run(ctx, chromedp.Evaluate(`document.body.scrollHeight`, &height)); err != nil {
		return 0, fmt.Errorf("failed to read scroll height: %w", err)
	}
	return height, nil
}

func (s *chromeSession) ScrollToBottom(ctx context.Context) error {
	return s.run(ctx, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil))
}

func (s *chromeSession) ScrollToTop(ctx context.Context) error {
	return s.run(ctx, chromedp.Evaluate(`window.scrollTo(0, 0)`, nil))
}

// visibleLoginFormJS detects credential inputs or sign-in controls that are
// actually rendered (offsetParent is null for hidden elements).
const visibleLoginFormJS = `(() => {
	const visible = el => el && el.offsetParent !== null;
	const inputs = document.querySelectorAll(
		"input[type='email'], input[type='password'], input[name='email'], input[name='username']");
	for (const el of inputs) {
		if (visible(el)) return true;
	}
	const controls = document.querySelectorAll("button, a, input[type='submit']");
	for (const el of controls) {
		const text = (el.textContent || el.value || "").trim().toLowerCase();
		if ((text.includes("sign in") || text.includes("log in")) && visible(el)) return true;
	}
	return false;
})()`

func (s *chromeSession) HasVisibleLoginForm(ctx context.Context) (bool, error) {
	var found bool
	if err := s.run(ctx, chromedp.Evaluate(visibleLoginFormJS, &found)); err != nil {
		return false, fmt.Errorf("failed to inspect page for login form: %w", err)
	}
	return found, nil
}

func (s *chromeSession) Click(ctx context.Context, target ClickTarget) error {
	var action chromedp.Action
	switch target.Kind {
	case TargetXPath:
		action = chromedp.Click(target.Query, chromedp.BySearch)
	default:
		action = chromedp.Click(target.Query, chromedp.ByQuery, chromedp.NodeVisible)
	}
	if err := s.run(ctx, chromedp.ScrollIntoView(targetSelector(target), targetBy(target)), action); err != nil {
		return fmt.Errorf("click failed for %s target %q: %w", target.Kind, target.Query, err)
	}
	return nil
}

func (s *chromeSession) ClickScript(ctx context.Context, target ClickTarget) error {
	var script string
	switch target.Kind {
	case TargetXPath:
		script = fmt.Sprintf(
			`(() => { const n = document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue; if (!n) return false; n.click(); return true; })()`,
			strconv.Quote(target.Query))
	default:
		script = fmt.Sprintf(
			`(() => { const n = document.querySelector(%s); if (!n) return false; n.click(); return true; })()`,
			strconv.Quote(target.Query))
	}

	var clicked bool
	if err := s.run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return fmt.Errorf("script click failed for %s target %q: %w", target.Kind, target.Query, err)
	}
	if !clicked {
		return fmt.Errorf("script click found no element for %s target %q", target.Kind, target.Query)
	}
	return nil
}

func (s *chromeSession) SetCookies(ctx context.Context, cookies []models.Cookie) (int, error) {
	applied := 0
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, raw := range cookies {
			cookie := raw.Normalize()
			param := network.SetCookie(cookie.Name, cookie.Value).
				WithDomain(cookie.Domain).
				WithPath(cookie.Path).
				WithSecure(cookie.Secure).
				WithHTTPOnly(cookie.HTTPOnly)
			if cookie.Expires > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(int64(cookie.Expires), 0))
				param = param.WithExpires(&expires)
			}
			if err := param.Do(ctx); err != nil {
				s.logger.Warn().
					Err(err).
					Str("cookie", cookie.Name).
					Str("domain", cookie.Domain).
					Msg("Failed to inject cookie, continuing with remaining cookies")
				continue
			}
			applied++
		}
		return nil
	}))
	if err != nil {
		return applied, fmt.Errorf("failed to inject cookies: %w", err)
	}
	return applied, nil
}

func (s *chromeSession) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *chromeSession) Close() error {
	if s.cancelCtx != nil {
		s.cancelCtx()
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
	}
	return nil
}

// run executes chromedp actions on the session's browser context while
// honoring the caller's context for cancellation.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(s.ctx, actions...)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func targetSelector(t ClickTarget) string {
	return t.Query
}

func targetBy(t ClickTarget) chromedp.QueryOption {
	if t.Kind == TargetXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}
