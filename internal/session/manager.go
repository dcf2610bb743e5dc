// Package session holds the authentication state of the client and the
// operations that change it. A Manager pairs every token store mutation
// with the matching state transition, so IsAuthenticated always agrees
// with the store once an operation returns.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/aelexs/authsession/internal/domain"
	"github.com/aelexs/authsession/internal/tokenstore"
	"github.com/aelexs/authsession/pkg/identityapi"
)

var tracer = otel.Tracer("authsession/session")

var (
	loginAttemptsTotal    metric.Int64Counter
	registerAttemptsTotal metric.Int64Counter
	logoutTotal           metric.Int64Counter
	transitionsTotal      metric.Int64Counter
)

func init() {
	m := otel.Meter("authsession/session")

	loginAttemptsTotal, _ = m.Int64Counter("auth_login_attempts_total",
		metric.WithDescription("Total login attempts by result"))
	registerAttemptsTotal, _ = m.Int64Counter("auth_register_attempts_total",
		metric.WithDescription("Total registration attempts by result"))
	logoutTotal, _ = m.Int64Counter("auth_logout_total",
		metric.WithDescription("Total logouts"))
	transitionsTotal, _ = m.Int64Counter("session_transitions_total",
		metric.WithDescription("Total session state transitions by target state"))
}

// State is the authentication projection exposed to collaborators.
type State int32

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// MarshalText renders the state by name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transport is the credential exchange with the identity service.
type Transport interface {
	Login(ctx context.Context, email, password string) (identityapi.TokenResponse, error)
	Register(ctx context.Context, payload identityapi.RegistrationPayload) (json.RawMessage, error)
}

// Config holds the dependencies for Manager.
type Config struct {
	Transport Transport
	Store     tokenstore.Store
	Logger    *slog.Logger
}

// Manager is the single session instance of a process. It is safe for
// concurrent use.
type Manager struct {
	transport Transport
	store     tokenstore.Store
	logger    *slog.Logger

	// mu serializes each store mutation with its state transition. The
	// network exchange happens outside it.
	mu    sync.Mutex
	state atomic.Int32

	subMu  sync.Mutex
	subs   map[uint64]chan State
	nextID uint64
}

// New creates a Manager whose initial state comes from the token store.
// No network call is made. A store read failure is logged and the session
// starts unauthenticated.
func New(ctx context.Context, cfg Config) (*Manager, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("%w: session transport", domain.ErrConfigRequired)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: session token store", domain.ErrConfigRequired)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		transport: cfg.Transport,
		store:     cfg.Store,
		logger:    logger,
		subs:      make(map[uint64]chan State),
	}

	_, ok, err := cfg.Store.Read(ctx)
	if err != nil {
		logger.WarnContext(ctx, "token store unreadable, starting unauthenticated", "error", err)
		ok = false
	}
	if ok {
		m.state.Store(int32(Authenticated))
	}
	logger.DebugContext(ctx, "session initialized", "state", m.State())

	return m, nil
}

// State returns the current state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// IsAuthenticated reports whether a complete token pair was stored at the
// last observation.
func (m *Manager) IsAuthenticated() bool {
	return m.State() == Authenticated
}

// AccessToken returns the stored access token.
func (m *Manager) AccessToken(ctx context.Context) (domain.SecretString, error) {
	pair, ok, err := m.store.Read(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrNotAuthenticated
	}
	return pair.Access, nil
}

// Subscribe returns a channel that receives the new state after every
// transition, and a function that ends the subscription. A slow reader
// only ever sees the latest state; publishing never blocks.
func (m *Manager) Subscribe() (<-chan State, func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan State, 1)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			defer m.subMu.Unlock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
		})
	}
}

// Close ends every subscription.
func (m *Manager) Close() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
}

// setStateLocked records a transition. Callers hold mu.
func (m *Manager) setStateLocked(ctx context.Context, to State) {
	from := State(m.state.Swap(int32(to)))
	if from == to {
		return
	}

	transitionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("to", to.String())))
	m.logger.DebugContext(ctx, "session transition", "from", from, "to", to)
	m.publish(to)
}

func (m *Manager) publish(s State) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for _, ch := range m.subs {
		select {
		case ch <- s:
		default:
			// Replace the stale pending value.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}
