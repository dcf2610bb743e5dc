package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/aelexs/authsession/internal/domain"
)

// NetworkError reports a request that produced no HTTP response.
type NetworkError struct {
	Op          string // "login", "register", "profile"
	URL         string
	Timeout     bool
	Unreachable bool
	Err         error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ResponseError reports a non-2xx response. Body holds at most
// domain.MaxResponseBodySize bytes and may be empty.
type ResponseError struct {
	Op          string
	StatusCode  int
	Body        []byte
	ContentType string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: server returned status %d", e.Op, e.StatusCode)
}

// Is reports 5xx responses as domain.ErrUnavailable.
func (e *ResponseError) Is(target error) bool {
	return target == domain.ErrUnavailable && e.StatusCode >= 500
}

// unreachableErrnos are the socket errors meaning the server could not be
// reached at all, as opposed to failing mid-exchange.
var unreachableErrnos = []error{
	syscall.ECONNREFUSED,
	syscall.ENETUNREACH,
	syscall.EHOSTUNREACH,
	syscall.ECONNRESET,
}

func newNetworkError(op, url string, err error) *NetworkError {
	return &NetworkError{
		Op:          op,
		URL:         url,
		Timeout:     isTimeout(err),
		Unreachable: isUnreachable(err),
		Err:         err,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isUnreachable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	for _, target := range unreachableErrnos {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
