package tokenstore

import (
	"context"
	"sync"

	"github.com/aelexs/authsession/internal/domain"
)

// MemoryStore keeps the pair in process memory. It is used for ephemeral
// sessions and tests, and notifies in-process watchers on every mutation.
type MemoryStore struct {
	mu       sync.Mutex
	pair     TokenPair
	has      bool
	closed   bool
	watchers map[chan struct{}]struct{}
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{watchers: make(map[chan struct{}]struct{})}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, pair TokenPair) error {
	if err := validatePair(pair); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStoreClosed
	}

	s.pair = pair
	s.has = true
	s.notifyLocked()
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStoreClosed
	}

	s.pair = TokenPair{}
	s.has = false
	s.notifyLocked()
	return nil
}

// Read implements Store.
func (s *MemoryStore) Read(_ context.Context) (TokenPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return TokenPair{}, false, domain.ErrStoreClosed
	}

	return s.pair, s.has, nil
}

// Changes implements Notifier.
func (s *MemoryStore) Changes(ctx context.Context) (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, domain.ErrStoreClosed
	}

	ch := make(chan struct{}, 1)
	s.watchers[ch] = struct{}{}

	context.AfterFunc(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.watchers[ch]; ok {
			delete(s.watchers, ch)
			close(ch)
		}
	})

	return ch, nil
}

// Close implements Store. Open watch channels are closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	s.closed = true
	for ch := range s.watchers {
		delete(s.watchers, ch)
		close(ch)
	}
	return nil
}

func (s *MemoryStore) notifyLocked() {
	for ch := range s.watchers {
		signal(ch)
	}
}
