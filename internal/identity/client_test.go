package identity_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/aelexs/authsession/internal/domain"
	"github.com/aelexs/authsession/internal/identity"
	"github.com/aelexs/authsession/pkg/identityapi"
)

func newTestClient(t *testing.T, baseURL string, timeout time.Duration) *identity.Client {
	t.Helper()

	c, err := identity.NewClient(identity.Config{
		BaseURL: baseURL,
		Timeout: timeout,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := identity.NewClient(identity.Config{}, nil)

	assert.ErrorIs(t, err, domain.ErrConfigRequired)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("posts credentials and decodes the pair", func(t *testing.T) {
		var got identityapi.LoginRequest
		var headers http.Header
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, domain.LoginPath, r.URL.Path)
			headers = r.Header.Clone()
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"access":"A","refresh":"R"}`)
		}))
		t.Cleanup(srv.Close)

		tokens, err := newTestClient(t, srv.URL, time.Second).Login(ctx, "ada@example.com", "hunter22")

		require.NoError(t, err)
		assert.Equal(t, identityapi.TokenResponse{Access: "A", Refresh: "R"}, tokens)
		assert.Equal(t, identityapi.LoginRequest{Email: "ada@example.com", Password: "hunter22"}, got)
		assert.Equal(t, "application/json", headers.Get("Content-Type"))
		assert.Equal(t, identity.DefaultUserAgent, headers.Get("User-Agent"))
		_, err = uuid.Parse(headers.Get("X-Request-ID"))
		assert.NoError(t, err, "X-Request-ID must be a UUID")
		assert.Empty(t, headers.Get("Authorization"))
	})

	t.Run("trailing slash on base URL is tolerated", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, domain.LoginPath, r.URL.Path)
			_, _ = io.WriteString(w, `{"access":"A","refresh":"R"}`)
		}))
		t.Cleanup(srv.Close)

		_, err := newTestClient(t, srv.URL+"/", time.Second).Login(ctx, "a@b.c", "pw")

		require.NoError(t, err)
	})

	t.Run("incomplete pair is returned as decoded", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"access":"A"}`)
		}))
		t.Cleanup(srv.Close)

		tokens, err := newTestClient(t, srv.URL, time.Second).Login(ctx, "a@b.c", "pw")

		require.NoError(t, err)
		assert.False(t, tokens.Complete())
	})

	t.Run("non-JSON success body is malformed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `<html>ok</html>`)
		}))
		t.Cleanup(srv.Close)

		_, err := newTestClient(t, srv.URL, time.Second).Login(ctx, "a@b.c", "pw")

		assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	})

	t.Run("rejection carries status and body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"No active account found with the given credentials"}`)
		}))
		t.Cleanup(srv.Close)

		_, err := newTestClient(t, srv.URL, time.Second).Login(ctx, "a@b.c", "bad")

		var respErr *identity.ResponseError
		require.ErrorAs(t, err, &respErr)
		assert.Equal(t, identity.OpLogin, respErr.Op)
		assert.Equal(t, http.StatusUnauthorized, respErr.StatusCode)
		assert.Equal(t, "application/json", respErr.ContentType)
		assert.JSONEq(t, `{"detail":"No active account found with the given credentials"}`, string(respErr.Body))
	})
}

func TestNetworkFailures(t *testing.T) {
	t.Run("client timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			_, _ = io.Copy(io.Discard, r.Body)
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		t.Cleanup(srv.Close)

		_, err := newTestClient(t, srv.URL, 50*time.Millisecond).Login(context.Background(), "a@b.c", "pw")

		var netErr *identity.NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.True(t, netErr.Timeout)
		assert.Equal(t, identity.OpLogin, netErr.Op)
	})

	t.Run("caller deadline", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			_, _ = io.Copy(io.Discard, r.Body)
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		t.Cleanup(srv.Close)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := newTestClient(t, srv.URL, time.Second).Login(ctx, "a@b.c", "pw")

		var netErr *identity.NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.True(t, netErr.Timeout)
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := newTestClient(t, url, time.Second).Login(context.Background(), "a@b.c", "pw")

		var netErr *identity.NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.True(t, netErr.Unreachable)
		assert.False(t, netErr.Timeout)
	})

	t.Run("caller cancellation is neither timeout nor unreachable", func(t *testing.T) {
		// The server only sees the client hang up once the body is read,
		// so the handler also waits on release, closed before srv.Close.
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			_, _ = io.Copy(io.Discard, r.Body)
			select {
			case <-r.Context().Done():
			case <-release:
			}
		}))
		t.Cleanup(srv.Close)
		t.Cleanup(func() { close(release) })

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(30 * time.Millisecond)
			cancel()
		}()

		_, err := newTestClient(t, srv.URL, time.Second).Login(ctx, "a@b.c", "pw")

		var netErr *identity.NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.False(t, netErr.Timeout)
		assert.False(t, netErr.Unreachable)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	payload := identityapi.RegistrationPayload{
		Email: "ada@example.com", Username: "ada", Name: "Ada",
		Password: "hunter22", Password2: "hunter22",
	}

	t.Run("forwards payload and returns raw response", func(t *testing.T) {
		var got map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, domain.RegisterPath, r.URL.Path)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id":7,"email":"ada@example.com"}`)
		}))
		t.Cleanup(srv.Close)

		raw, err := newTestClient(t, srv.URL, time.Second).Register(ctx, payload)

		require.NoError(t, err)
		assert.JSONEq(t, `{"id":7,"email":"ada@example.com"}`, string(raw))
		assert.Equal(t, "hunter22", got["password2"])
		assert.Equal(t, "ada", got["username"])
	})

	t.Run("empty success body becomes null", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		t.Cleanup(srv.Close)

		raw, err := newTestClient(t, srv.URL, time.Second).Register(ctx, payload)

		require.NoError(t, err)
		assert.Equal(t, "null", string(raw))
	})

	t.Run("plain text success body becomes a JSON string", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, "User created")
		}))
		t.Cleanup(srv.Close)

		raw, err := newTestClient(t, srv.URL, time.Second).Register(ctx, payload)

		require.NoError(t, err)
		assert.Equal(t, `"User created"`, string(raw))
	})

	t.Run("conflict without body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusConflict)
		}))
		t.Cleanup(srv.Close)

		_, err := newTestClient(t, srv.URL, time.Second).Register(ctx, payload)

		var respErr *identity.ResponseError
		require.ErrorAs(t, err, &respErr)
		assert.Equal(t, http.StatusConflict, respErr.StatusCode)
		assert.Empty(t, respErr.Body)
	})
}

func TestProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("sends bearer token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, domain.ProfilePath, r.URL.Path)
			assert.Equal(t, "Bearer access-abc", r.Header.Get("Authorization"))
			_, _ = io.WriteString(w, `{"email":"ada@example.com","username":"ada","name":"Ada","is_staff":false}`)
		}))
		t.Cleanup(srv.Close)

		profile, err := newTestClient(t, srv.URL, time.Second).Profile(ctx, "access-abc")

		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", profile.Email)
		assert.Equal(t, "ada", profile.Username)
		assert.Contains(t, string(profile.Raw), "is_staff")
	})

	t.Run("no token means not authenticated", func(t *testing.T) {
		_, err := newTestClient(t, "http://127.0.0.1:1", time.Second).Profile(ctx, "")

		assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	})
}

func TestTracePropagation(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "caller")
	defer span.End()

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		_, _ = io.WriteString(w, `{"access":"A","refresh":"R"}`)
	}))
	t.Cleanup(srv.Close)

	_, err := newTestClient(t, srv.URL, time.Second).Login(ctx, "a@b.c", "pw")

	require.NoError(t, err)
	assert.Contains(t, traceparent, span.SpanContext().TraceID().String())
}
