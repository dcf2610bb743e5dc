package session

import (
	"context"

	"github.com/aelexs/authsession/internal/observability"
)

// Logout clears the token store and marks the session unauthenticated.
// It is idempotent and cannot fail: a store error is logged and the
// session still ends.
func (m *Manager) Logout(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "session.logout")
	defer span.End()

	logger := observability.WithTraceID(ctx, m.logger)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		span.RecordError(err)
		logger.ErrorContext(ctx, "failed to clear token store on logout", "error", err)
	}
	m.setStateLocked(ctx, Unauthenticated)

	logoutTotal.Add(ctx, 1)
	logger.InfoContext(ctx, "auth.logout")
}
