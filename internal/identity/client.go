// Package identity is the HTTP transport to the identity service. It
// returns typed failures (NetworkError, ResponseError) that the error
// normalizer turns into display messages.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"

	"github.com/aelexs/authsession/internal/domain"
	"github.com/aelexs/authsession/internal/observability"
	"github.com/aelexs/authsession/pkg/identityapi"
)

var tracer = otel.Tracer("authsession/identity")

var identityRequestsTotal metric.Int64Counter

func init() {
	m := otel.Meter("authsession/identity")

	identityRequestsTotal, _ = m.Int64Counter("identity_requests_total",
		metric.WithDescription("Total identity service requests by endpoint and outcome"))
}

// Operation names used for spans, metrics, and error values.
const (
	OpLogin    = "login"
	OpRegister = "register"
	OpProfile  = "profile"
)

// DefaultUserAgent identifies the client to the identity service.
const DefaultUserAgent = "authsession/1.0"

// Config holds the identity service location.
type Config struct {
	BaseURL      string
	LoginPath    string
	RegisterPath string
	ProfilePath  string
	Timeout      time.Duration
	UserAgent    string
	HTTPClient   *http.Client // optional; Timeout is applied when nil
}

// Client talks to the identity service.
type Client struct {
	baseURL      string
	loginPath    string
	registerPath string
	profilePath  string
	userAgent    string
	http         *http.Client
	logger       *slog.Logger
}

// NewClient validates cfg and fills in default paths.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: identity base URL", domain.ErrConfigRequired)
	}
	if logger == nil {
		logger = slog.Default()
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = domain.IdentityRequestTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		loginPath:    orDefault(cfg.LoginPath, domain.LoginPath),
		registerPath: orDefault(cfg.RegisterPath, domain.RegisterPath),
		profilePath:  orDefault(cfg.ProfilePath, domain.ProfilePath),
		userAgent:    orDefault(cfg.UserAgent, DefaultUserAgent),
		http:         hc,
		logger:       logger,
	}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Login exchanges credentials for a token pair. The response is returned
// as decoded; checking that both tokens are present is the caller's job.
func (c *Client) Login(ctx context.Context, email, password string) (identityapi.TokenResponse, error) {
	req := identityapi.LoginRequest{Email: email, Password: password}

	body, err := c.do(ctx, OpLogin, http.MethodPost, c.loginPath, req, "")
	if err != nil {
		return identityapi.TokenResponse{}, err
	}

	var tokens identityapi.TokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return identityapi.TokenResponse{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	return tokens, nil
}

// Register submits a registration payload and returns the server's
// response document untouched. An empty success body decodes as null and
// a body that is not JSON comes back as a JSON string.
func (c *Client) Register(ctx context.Context, payload identityapi.RegistrationPayload) (json.RawMessage, error) {
	body, err := c.do(ctx, OpRegister, http.MethodPost, c.registerPath, payload, "")
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(body) {
		text, err := json.Marshal(string(body))
		if err != nil {
			return nil, fmt.Errorf("register: encode text response: %w", err)
		}
		return json.RawMessage(text), nil
	}
	return json.RawMessage(body), nil
}

// Profile fetches the current user with the access token as bearer
// credential.
func (c *Client) Profile(ctx context.Context, access domain.SecretString) (identityapi.Profile, error) {
	if access.IsEmpty() {
		return identityapi.Profile{}, domain.ErrNotAuthenticated
	}

	body, err := c.do(ctx, OpProfile, http.MethodGet, c.profilePath, nil, access)
	if err != nil {
		return identityapi.Profile{}, err
	}

	var profile identityapi.Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return identityapi.Profile{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	return profile, nil
}

// do performs one request and returns the 2xx body. Failures come back as
// *NetworkError or *ResponseError.
func (c *Client) do(ctx context.Context, op, method, path string, in any, bearer domain.SecretString) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "identity."+op)
	defer span.End()

	url := c.baseURL + path
	requestID := domain.GenerateRequestID()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.full", url),
		attribute.String("request_id", requestID.String()),
	)
	logger := observability.WithTraceID(ctx, c.logger).With("op", op, "request_id", requestID.String())

	var reader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal %s body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID.String())
	if !bearer.IsEmpty() {
		req.Header.Set("Authorization", "Bearer "+bearer.Expose())
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		netErr := newNetworkError(op, url, err)
		c.record(ctx, op, outcomeForNetwork(netErr))
		span.RecordError(netErr)
		span.SetStatus(codes.Error, netErr.Error())
		logger.DebugContext(ctx, "identity request failed",
			"error", err, "timeout", netErr.Timeout, "unreachable", netErr.Unreachable)
		return nil, netErr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, domain.MaxResponseBodySize))
	if err != nil {
		netErr := newNetworkError(op, url, err)
		c.record(ctx, op, outcomeForNetwork(netErr))
		span.RecordError(netErr)
		span.SetStatus(codes.Error, netErr.Error())
		return nil, netErr
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respErr := &ResponseError{
			Op:          op,
			StatusCode:  resp.StatusCode,
			Body:        body,
			ContentType: resp.Header.Get("Content-Type"),
		}
		c.record(ctx, op, fmt.Sprintf("http_%dxx", resp.StatusCode/100))
		span.RecordError(respErr)
		span.SetStatus(codes.Error, respErr.Error())
		logger.DebugContext(ctx, "identity request rejected", "status", resp.StatusCode)
		return nil, respErr
	}

	c.record(ctx, op, "ok")
	logger.DebugContext(ctx, "identity request completed", "status", resp.StatusCode)
	return body, nil
}

func (c *Client) record(ctx context.Context, op, outcome string) {
	identityRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", op),
		attribute.String("outcome", outcome),
	))
}

func outcomeForNetwork(e *NetworkError) string {
	switch {
	case e.Timeout:
		return "timeout"
	case e.Unreachable:
		return "unreachable"
	default:
		return "network_error"
	}
}
