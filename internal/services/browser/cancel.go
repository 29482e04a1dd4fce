package browser

import (
	"sync/atomic"
)

// Token is a cooperative cancellation flag for a single run. It is checked
// between units of work (before each candidate, between login polls) and
// never interrupts an in-flight download.
type Token struct {
	fired atomic.Bool
}

// NewToken returns an unfired cancellation token
func NewToken() *Token {
	return &Token{}
}

// Cancel fires the token. Safe to call from any goroutine, more than once.
func (t *Token) Cancel() {
	t.fired.Store(true)
}

// Cancelled reports whether the token has fired
func (t *Token) Cancelled() bool {
	if t == nil {
		return false
	}
	return t.fired.Load()
}
