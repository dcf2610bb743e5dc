package session

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/aelexs/authsession/internal/domain"
	"github.com/aelexs/authsession/internal/observability"
	"github.com/aelexs/authsession/internal/tokenstore"
)

// Login exchanges credentials for a token pair, stores it, and marks the
// session authenticated, in that order, before returning.
//
// Transport failures are returned unchanged and leave store and state
// untouched. A success response missing either token fails with
// domain.ErrMalformedResponse. Inputs are not validated here.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	ctx, span := tracer.Start(ctx, "session.login")
	defer span.End()

	logger := observability.WithTraceID(ctx, m.logger)

	tokens, err := m.transport.Login(ctx, email, password)
	if err != nil {
		loginAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "rejected")))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WarnContext(ctx, "auth.login failed", "error", err)
		return err
	}

	if !tokens.Complete() {
		loginAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "malformed")))
		span.RecordError(domain.ErrMalformedResponse)
		span.SetStatus(codes.Error, domain.ErrMalformedResponse.Error())
		logger.ErrorContext(ctx, "auth.login malformed response", "response", tokens)
		return domain.ErrMalformedResponse
	}

	pair := tokenstore.TokenPair{
		Access:  domain.SecretString(tokens.Access),
		Refresh: domain.SecretString(tokens.Refresh),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Save(ctx, pair); err != nil {
		loginAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "store_error")))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "auth.login could not persist tokens", "error", err)
		return err
	}
	m.setStateLocked(ctx, Authenticated)

	loginAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "success")))
	logger.InfoContext(ctx, "auth.login")
	return nil
}
