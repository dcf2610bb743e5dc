package session

import (
	"context"

	"github.com/aelexs/authsession/internal/domain"
	"github.com/aelexs/authsession/internal/observability"
	"github.com/aelexs/authsession/internal/tokenstore"
)

// Resync re-reads the token store and converges the state on it without
// mutating the store. It picks up logins and logouts made by other
// processes sharing the store. A read failure leaves the state unchanged.
func (m *Manager) Resync(ctx context.Context) State {
	ctx, span := tracer.Start(ctx, "session.resync")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok, err := m.store.Read(ctx)
	if err != nil {
		span.RecordError(err)
		observability.WithTraceID(ctx, m.logger).WarnContext(ctx, "session resync failed", "error", err)
		return m.State()
	}

	if ok {
		m.setStateLocked(ctx, Authenticated)
	} else {
		m.setStateLocked(ctx, Unauthenticated)
	}
	return m.State()
}

// Watch resyncs whenever the token store reports a change, until ctx ends.
// It returns nil on cancellation, domain.ErrWatchUnsupported when the store
// publishes no notifications, and domain.ErrStoreClosed if the store closes
// underneath it.
func (m *Manager) Watch(ctx context.Context) error {
	notifier, ok := m.store.(tokenstore.Notifier)
	if !ok {
		return domain.ErrWatchUnsupported
	}

	changes, err := notifier.Changes(ctx)
	if err != nil {
		return err
	}

	// Cover changes made before the subscription was in place.
	m.Resync(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, open := <-changes:
			if !open {
				if ctx.Err() != nil {
					return nil
				}
				return domain.ErrStoreClosed
			}
			m.Resync(ctx)
		}
	}
}

// IsWatchable reports whether Watch can run against the manager's store.
func (m *Manager) IsWatchable() bool {
	_, ok := m.store.(tokenstore.Notifier)
	return ok
}
