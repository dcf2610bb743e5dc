// Package tokenstore persists the access/refresh token pair issued by the
// identity service. Both tokens are written and removed together; a reader
// never observes one without the other.
package tokenstore

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/aelexs/authsession/internal/domain"
)

var tracer = otel.Tracer("authsession/tokenstore")

// TokenPair is the credential pair returned by a successful login.
type TokenPair struct {
	Access  domain.SecretString
	Refresh domain.SecretString
}

// Complete reports whether both tokens are present.
func (p TokenPair) Complete() bool {
	return !p.Access.IsEmpty() && !p.Refresh.IsEmpty()
}

// LogValue implements slog.LogValuer. Token material never renders.
func (p TokenPair) LogValue() slog.Value {
	return slog.BoolValue(p.Complete())
}

// Store is the durable, origin-scoped token storage.
type Store interface {
	// Save writes both tokens atomically. A pair with an empty field is
	// rejected with domain.ErrInvalidInput and nothing is written.
	Save(ctx context.Context, pair TokenPair) error

	// Clear removes both tokens. Clearing an empty store succeeds.
	Clear(ctx context.Context) error

	// Read returns the stored pair and true only if both tokens exist.
	Read(ctx context.Context) (TokenPair, bool, error)

	Close() error
}

// Notifier is implemented by stores that announce mutations, including
// those made by other processes sharing the same backend.
type Notifier interface {
	// Changes delivers a signal after every Save or Clear. Signals coalesce
	// when the receiver falls behind. The channel closes when ctx ends.
	Changes(ctx context.Context) (<-chan struct{}, error)
}

func validatePair(pair TokenPair) error {
	if !pair.Complete() {
		return fmt.Errorf("%w: token pair requires both access and refresh", domain.ErrInvalidInput)
	}
	return nil
}

// signal performs a non-blocking send so a slow watcher never stalls a
// writer. A pending signal already covers the new change.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
