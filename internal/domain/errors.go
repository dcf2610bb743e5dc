package domain

import "errors"

// Sentinel errors for domain error conditions.
// Use errors.Is() for matching - never compare error strings.
var (
	// Input errors
	ErrInvalidInput = errors.New("invalid input")

	// Session errors
	ErrNotAuthenticated   = errors.New("no active session")
	ErrMalformedResponse  = errors.New("invalid response from server: missing tokens")
	ErrNoSessionProvider  = errors.New("session manager must be used within a session provider")
	ErrWatchUnsupported   = errors.New("token store does not publish change notifications")
	ErrMalformedToken     = errors.New("malformed access token")
	ErrStore              = errors.New("token store failure")
	ErrStoreClosed        = errors.New("token store closed")
	ErrUnsupportedBackend = errors.New("unsupported token store backend")

	// Operational errors
	ErrUnavailable = errors.New("service temporarily unavailable")

	// Configuration errors
	ErrConfigRequired = errors.New("required configuration key missing")
	ErrConfigInvalid  = errors.New("invalid configuration value")
)

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. The core never retries; the CLI tells the
// user to try again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrStore)
}
