package service

import "errors"

// Sentinel errors returned by the session core. Handlers map these to API
// error codes; everything else is treated as an internal failure.
var (
	// ErrAlreadyAttempted means a session already exists for (user, paper).
	ErrAlreadyAttempted = errors.New("user has already attempted this paper")
	// ErrExamNotOpen means now is outside the paper's open/close window.
	ErrExamNotOpen = errors.New("exam is not open")
	// ErrSessionNotFound means no session exists for the given ID.
	ErrSessionNotFound = errors.New("exam session not found")
	// ErrInvalidState means the session's current status rejects the
	// requested transition (resubmission, double review, lost race).
	ErrInvalidState = errors.New("invalid session state for this operation")
	// ErrInvalidScore means a manual score is negative or exceeds the
	// paper's total score.
	ErrInvalidScore = errors.New("manual score out of range")
	// ErrPaperNotFound means the catalog has no such paper.
	ErrPaperNotFound = errors.New("paper not found")
	// ErrCatalogUnavailable wraps paper catalog lookup failures. The core
	// never retries; the caller owns retry policy.
	ErrCatalogUnavailable = errors.New("paper catalog unavailable")
)
