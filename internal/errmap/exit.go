package errmap

import (
	"errors"
	"net/http"

	"github.com/aelexs/authsession/internal/domain"
	"github.com/aelexs/authsession/internal/identity"
)

// Process exit codes, following sysexits(3) where one fits.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 64
	ExitDataErr     = 65
	ExitUnavailable = 69
	ExitSoftware    = 70
	ExitIOErr       = 74
	ExitNoPerm      = 77
	ExitConfig      = 78
)

// exitMapping defines a domain error to exit code mapping.
type exitMapping struct {
	err  error
	code int
}

// exitMappings maps domain errors to exit codes.
// Order matters: first match wins (via errors.Is).
var exitMappings = []exitMapping{
	// Wiring defects
	{domain.ErrNoSessionProvider, ExitSoftware},

	// Configuration
	{domain.ErrConfigRequired, ExitConfig},
	{domain.ErrConfigInvalid, ExitConfig},
	{domain.ErrUnsupportedBackend, ExitConfig},

	// Caller input
	{domain.ErrInvalidInput, ExitUsage},
	{domain.ErrWatchUnsupported, ExitUsage},

	// Session
	{domain.ErrNotAuthenticated, ExitNoPerm},
	{domain.ErrMalformedResponse, ExitDataErr},
	{domain.ErrMalformedToken, ExitDataErr},

	// Availability: 5xx responses and unreachable backends
	{domain.ErrUnavailable, ExitUnavailable},

	// Storage
	{domain.ErrStore, ExitIOErr},
	{domain.ErrStoreClosed, ExitIOErr},
}

// ExitCode converts an error into a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	for _, m := range exitMappings {
		if errors.Is(err, m.err) {
			return m.code
		}
	}

	var netErr *identity.NetworkError
	if errors.As(err, &netErr) {
		return ExitUnavailable
	}

	var respErr *identity.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return ExitNoPerm
		}
		return ExitFailure
	}

	return ExitFailure
}
