package browser

import (
	"errors"
	"fmt"
)

// Run-scoped errors abort or pause the whole run.
var (
	// ErrCredentialsRequired means the session hit a login wall and no
	// interactive login is possible (headless with no cookies supplied).
	ErrCredentialsRequired = errors.New("authentication required: no session cookies supplied")

	// ErrAuthenticationTimeout means the interactive login window expired
	// before an authenticated session was observed.
	ErrAuthenticationTimeout = errors.New("timed out waiting for login")

	// ErrAuthenticationFailed means the session could not be established at all.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrEnumerationEmpty means no candidates were found after a full
	// scroll pass and the complete selector cascade.
	ErrEnumerationEmpty = errors.New("no candidates found")

	// ErrCancelled means the run's cancellation token fired.
	ErrCancelled = errors.New("run cancelled")
)

// Candidate-scoped errors fail one candidate; the run continues.
var (
	// ErrDocumentNotFound means no locator strategy matched a document link
	// on the candidate's profile page.
	ErrDocumentNotFound = errors.New("no resume document found on profile")

	// ErrTriggerFailed means a document link was located but neither the
	// native click nor the scripted click could activate it.
	ErrTriggerFailed = errors.New("failed to trigger document download")

	// ErrVerificationFailed means the download was triggered but no new file
	// appeared on disk within the verification window.
	ErrVerificationFailed = errors.New("download could not be verified on disk")
)

// CandidateError wraps a candidate-scoped failure with the candidate it
// belongs to.
type CandidateError struct {
	CandidateID string
	Err         error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("candidate %s: %v", e.CandidateID, e.Err)
}

func (e *CandidateError) Unwrap() error {
	return e.Err
}

// IsCandidateScoped reports whether an error fails a single candidate rather
// than the run.
func IsCandidateScoped(err error) bool {
	return errors.Is(err, ErrDocumentNotFound) ||
		errors.Is(err, ErrTriggerFailed) ||
		errors.Is(err, ErrVerificationFailed)
}
