package session

import (
	"context"

	"github.com/aelexs/authsession/internal/domain"
)

type managerKey struct{}

// WithManager returns a context carrying m for collaborators that cannot
// take it as a parameter.
func WithManager(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, managerKey{}, m)
}

// FromContext returns the Manager installed by WithManager. A missing
// Manager is a wiring defect, so it panics with domain.ErrNoSessionProvider.
func FromContext(ctx context.Context) *Manager {
	m, ok := ctx.Value(managerKey{}).(*Manager)
	if !ok || m == nil {
		panic(domain.ErrNoSessionProvider)
	}
	return m
}
