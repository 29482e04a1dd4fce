package browser

import (
	"context"
	"time"

	"github.com/ternarybob/harvest/internal/models"
)

// TargetKind distinguishes how a click target is addressed in the live DOM
type TargetKind string

const (
	// TargetCSS addresses the first element matching a CSS selector
	TargetCSS TargetKind = "css"
	// TargetXPath addresses the first node matching an XPath expression
	TargetXPath TargetKind = "xpath"
)

// ClickTarget identifies an element to click in the live page
type ClickTarget struct {
	Kind  TargetKind
	Query string
}

// Page abstracts one live browser tab. The chromedp-backed implementation is
// in chrome.go; tests use a scripted fake. Every blocking operation takes a
// context and returns an error.
type Page interface {
	// Navigate loads a URL and waits for the load event
	Navigate(ctx context.Context, url string) error

	// Location returns the current page URL
	Location(ctx context.Context) (string, error)

	// HTML returns a snapshot of the current document's outer HTML
	HTML(ctx context.Context) (string, error)

	// ScrollHeight returns document.body.scrollHeight
	ScrollHeight(ctx context.Context) (int64, error)

	// ScrollToBottom scrolls the window to the bottom of the document
	ScrollToBottom(ctx context.Context) error

	// ScrollToTop scrolls the window back to the top of the document
	ScrollToTop(ctx context.Context) error

	// HasVisibleLoginForm reports whether a visible email/password input or
	// a Sign in / Log in control is present
	HasVisibleLoginForm(ctx context.Context) (bool, error)

	// Click scrolls the target into view and performs a native click
	Click(ctx context.Context, target ClickTarget) error

	// ClickScript dispatches a click via injected script, bypassing
	// visibility and overlay checks
	ClickScript(ctx context.Context, target ClickTarget) error

	// SetCookies installs session cookies, returning the number applied.
	// Individual cookie failures are skipped, not fatal.
	SetCookies(ctx context.Context, cookies []models.Cookie) (int, error)

	// Sleep waits for the given duration, returning early with the context's
	// error if it is cancelled
	Sleep(ctx context.Context, d time.Duration) error

	// Close releases the tab and its browser resources
	Close() error
}
