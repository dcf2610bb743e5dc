package session

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/aelexs/authsession/internal/observability"
	"github.com/aelexs/authsession/pkg/identityapi"
)

// Register submits payload as-is and returns the server's response.
// It never touches the token store or the session state; the caller logs
// in separately. Password confirmation is the caller's concern.
func (m *Manager) Register(ctx context.Context, payload identityapi.RegistrationPayload) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "session.register")
	defer span.End()

	logger := observability.WithTraceID(ctx, m.logger)

	resp, err := m.transport.Register(ctx, payload)
	if err != nil {
		registerAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "rejected")))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WarnContext(ctx, "auth.register failed", "payload", payload, "error", err)
		return nil, err
	}

	registerAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "success")))
	logger.InfoContext(ctx, "auth.register", "payload", payload)
	return resp, nil
}
