package browser

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/harvest/internal/models"
)

// fakePage is a scripted Page implementation for tests. Navigation just
// records the URL; hooks let individual tests control redirects, page
// content, and click side effects.
type fakePage struct {
	mu sync.Mutex

	// onNavigate maps a requested URL to the location the browser ends up
	// at. Nil means navigation lands exactly where it was pointed.
	onNavigate func(url string) string

	// htmlFor returns the document HTML for the current location
	htmlFor func(location string) string

	// heights is the scrollHeight sequence; the last value repeats
	heights []int64

	// loginFormAt reports whether a login form is visible at a location
	loginFormAt func(location string) bool

	// onClick runs for every click; returning an error fails the click
	onClick func(target ClickTarget) error

	// onScriptClick runs for scripted clicks; nil falls back to onClick
	onScriptClick func(target ClickTarget) error

	location    string
	navigations []string
	heightIdx   int
	bottoms     int
	tops        int
	cookiesSet  int
	closed      bool
}

func (f *fakePage) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigations = append(f.navigations, url)
	if f.onNavigate != nil {
		f.location = f.onNavigate(url)
	} else {
		f.location = url
	}
	return nil
}

func (f *fakePage) Location(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.location, nil
}

func (f *fakePage) HTML(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.htmlFor == nil {
		return "<html></html>", nil
	}
	return f.htmlFor(f.location), nil
}

func (f *fakePage) ScrollHeight(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.heights) == 0 {
		return 1000, nil
	}
	idx := f.heightIdx
	if idx >= len(f.heights) {
		idx = len(f.heights) - 1
	}
	f.heightIdx++
	return f.heights[idx], nil
}

func (f *fakePage) ScrollToBottom(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bottoms++
	return nil
}

func (f *fakePage) ScrollToTop(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tops++
	return nil
}

func (f *fakePage) HasVisibleLoginForm(_ context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginFormAt == nil {
		return false, nil
	}
	return f.loginFormAt(f.location), nil
}

func (f *fakePage) Click(_ context.Context, target ClickTarget) error {
	if f.onClick == nil {
		return nil
	}
	return f.onClick(target)
}

func (f *fakePage) ClickScript(_ context.Context, target ClickTarget) error {
	if f.onScriptClick != nil {
		return f.onScriptClick(target)
	}
	if f.onClick == nil {
		return nil
	}
	return f.onClick(target)
}

func (f *fakePage) SetCookies(_ context.Context, cookies []models.Cookie) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cookiesSet += len(cookies)
	return len(cookies), nil
}

func (f *fakePage) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakePage) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePage) navigationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.navigations)
}
