package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/aelexs/authsession/internal/domain"
	"github.com/aelexs/authsession/internal/session"
	"github.com/aelexs/authsession/internal/tokenstore"
	"github.com/aelexs/authsession/pkg/identityapi"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// Badger's dependencies start process-lifetime goroutines at init.
		goleak.IgnoreTopFunction("github.com/golang/glog.(*loggingT).flushDaemon"),
		goleak.IgnoreTopFunction("github.com/golang/glog.(*fileSink).flushDaemon"),
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

var storedPair = tokenstore.TokenPair{
	Access:  domain.SecretString("access-1"),
	Refresh: domain.SecretString("refresh-1"),
}

// stubTransport implements session.Transport with function fields.
type stubTransport struct {
	loginFn    func(ctx context.Context, email, password string) (identityapi.TokenResponse, error)
	registerFn func(ctx context.Context, payload identityapi.RegistrationPayload) (json.RawMessage, error)
}

func (s *stubTransport) Login(ctx context.Context, email, password string) (identityapi.TokenResponse, error) {
	if s.loginFn != nil {
		return s.loginFn(ctx, email, password)
	}
	return identityapi.TokenResponse{Access: "access-new", Refresh: "refresh-new"}, nil
}

func (s *stubTransport) Register(ctx context.Context, payload identityapi.RegistrationPayload) (json.RawMessage, error) {
	if s.registerFn != nil {
		return s.registerFn(ctx, payload)
	}
	return json.RawMessage(`{"email":"` + payload.Email + `"}`), nil
}

// failingTransport fails the test if the network is touched.
func failingTransport(t *testing.T) *stubTransport {
	return &stubTransport{
		loginFn: func(context.Context, string, string) (identityapi.TokenResponse, error) {
			t.Error("unexpected network call: Login")
			return identityapi.TokenResponse{}, errors.New("unexpected")
		},
		registerFn: func(context.Context, identityapi.RegistrationPayload) (json.RawMessage, error) {
			t.Error("unexpected network call: Register")
			return nil, errors.New("unexpected")
		},
	}
}

// stubStore implements tokenstore.Store with function fields, delegating
// to an in-memory store when a field is nil. It does not implement
// tokenstore.Notifier.
type stubStore struct {
	mem     *tokenstore.MemoryStore
	saveFn  func(ctx context.Context, pair tokenstore.TokenPair) error
	clearFn func(ctx context.Context) error
	readFn  func(ctx context.Context) (tokenstore.TokenPair, bool, error)
}

func newStubStore() *stubStore {
	return &stubStore{mem: tokenstore.NewMemoryStore()}
}

func (s *stubStore) Save(ctx context.Context, pair tokenstore.TokenPair) error {
	if s.saveFn != nil {
		return s.saveFn(ctx, pair)
	}
	return s.mem.Save(ctx, pair)
}

func (s *stubStore) Clear(ctx context.Context) error {
	if s.clearFn != nil {
		return s.clearFn(ctx)
	}
	return s.mem.Clear(ctx)
}

func (s *stubStore) Read(ctx context.Context) (tokenstore.TokenPair, bool, error) {
	if s.readFn != nil {
		return s.readFn(ctx)
	}
	return s.mem.Read(ctx)
}

func (s *stubStore) Close() error { return s.mem.Close() }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, transport session.Transport, store tokenstore.Store) *session.Manager {
	t.Helper()

	m, err := session.New(context.Background(), session.Config{
		Transport: transport,
		Store:     store,
		Logger:    discardLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

// assertConsistent checks that the session agrees with the store.
func assertConsistent(t *testing.T, m *session.Manager, store tokenstore.Store) {
	t.Helper()

	_, ok, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ok, m.IsAuthenticated(), "session state must match token store")
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store starts unauthenticated", func(t *testing.T) {
		m := newTestManager(t, failingTransport(t), tokenstore.NewMemoryStore())

		assert.Equal(t, session.Unauthenticated, m.State())
		assert.False(t, m.IsAuthenticated())
	})

	t.Run("stored pair restores without network", func(t *testing.T) {
		store := tokenstore.NewMemoryStore()
		require.NoError(t, store.Save(ctx, storedPair))

		m := newTestManager(t, failingTransport(t), store)

		assert.Equal(t, session.Authenticated, m.State())
		assertConsistent(t, m, store)
	})

	t.Run("unreadable store starts unauthenticated", func(t *testing.T) {
		store := newStubStore()
		store.readFn = func(context.Context) (tokenstore.TokenPair, bool, error) {
			return tokenstore.TokenPair{}, false, domain.ErrStore
		}

		m := newTestManager(t, failingTransport(t), store)

		assert.False(t, m.IsAuthenticated())
	})

	t.Run("missing dependencies", func(t *testing.T) {
		_, err := session.New(ctx, session.Config{Store: tokenstore.NewMemoryStore()})
		assert.ErrorIs(t, err, domain.ErrConfigRequired)

		_, err = session.New(ctx, session.Config{Transport: &stubTransport{}})
		assert.ErrorIs(t, err, domain.ErrConfigRequired)
	})
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "authenticated", session.Authenticated.String())
	assert.Equal(t, "unauthenticated", session.Unauthenticated.String())

	out, err := json.Marshal(map[string]session.State{"state": session.Authenticated})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"authenticated"}`, string(out))
}

func TestAccessToken(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stored access token", func(t *testing.T) {
		store := tokenstore.NewMemoryStore()
		require.NoError(t, store.Save(ctx, storedPair))
		m := newTestManager(t, failingTransport(t), store)

		access, err := m.AccessToken(ctx)

		require.NoError(t, err)
		assert.Equal(t, "access-1", access.Expose())
	})

	t.Run("no session", func(t *testing.T) {
		m := newTestManager(t, failingTransport(t), tokenstore.NewMemoryStore())

		_, err := m.AccessToken(ctx)

		assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	})
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("receives transitions", func(t *testing.T) {
		m := newTestManager(t, &stubTransport{}, tokenstore.NewMemoryStore())
		updates, cancel := m.Subscribe()
		defer cancel()

		require.NoError(t, m.Login(ctx, "a@b.c", "pw"))
		assert.Equal(t, session.Authenticated, receive(t, updates))

		m.Logout(ctx)
		assert.Equal(t, session.Unauthenticated, receive(t, updates))
	})

	t.Run("no transition means no update", func(t *testing.T) {
		m := newTestManager(t, &stubTransport{}, tokenstore.NewMemoryStore())
		updates, cancel := m.Subscribe()
		defer cancel()

		m.Logout(ctx)

		select {
		case s := <-updates:
			t.Fatalf("unexpected update %v", s)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("slow subscriber sees the latest state", func(t *testing.T) {
		m := newTestManager(t, &stubTransport{}, tokenstore.NewMemoryStore())
		updates, cancel := m.Subscribe()
		defer cancel()

		require.NoError(t, m.Login(ctx, "a@b.c", "pw"))
		m.Logout(ctx)

		assert.Equal(t, session.Unauthenticated, receive(t, updates))
		select {
		case s := <-updates:
			t.Fatalf("expected coalesced updates, got extra %v", s)
		default:
		}
	})

	t.Run("cancel closes the channel and is idempotent", func(t *testing.T) {
		m := newTestManager(t, &stubTransport{}, tokenstore.NewMemoryStore())
		updates, cancel := m.Subscribe()

		cancel()
		cancel()

		_, open := <-updates
		assert.False(t, open)
		require.NoError(t, m.Login(ctx, "a@b.c", "pw"), "publishing after cancel must not panic")
	})

	t.Run("close ends all subscriptions", func(t *testing.T) {
		m := newTestManager(t, &stubTransport{}, tokenstore.NewMemoryStore())
		a, cancelA := m.Subscribe()
		b, cancelB := m.Subscribe()

		m.Close()

		_, openA := <-a
		_, openB := <-b
		assert.False(t, openA)
		assert.False(t, openB)
		cancelA()
		cancelB()
	})
}

func receive(t *testing.T, ch <-chan session.State) session.State {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return s
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for state update")
		return session.Unauthenticated
	}
}
