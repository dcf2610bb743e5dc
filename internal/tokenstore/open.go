package tokenstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aelexs/authsession/internal/domain"
	redisclient "github.com/aelexs/authsession/internal/redis"
)

// Config selects a backend and carries its settings.
type Config struct {
	Backend   domain.StoreBackend
	BadgerDir string
	Redis     redisclient.Config
	RedisOpts RedisOptions
}

// Open constructs the configured backend. A Redis backend is pinged so a
// wrong address fails at startup rather than on first login.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case domain.StoreBackendBadger:
		return OpenBadgerStore(BadgerOptions{Dir: cfg.BadgerDir}, logger)

	case domain.StoreBackendRedis:
		client := redisclient.NewClient(cfg.Redis)
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("open token store: %w: %w: %w", domain.ErrStore, domain.ErrUnavailable, err)
		}
		store := NewRedisStore(client.RDB, cfg.RedisOpts, logger)
		store.owner = client
		return store, nil

	case domain.StoreBackendMemory:
		return NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedBackend, cfg.Backend)
	}
}

var (
	_ Store    = (*MemoryStore)(nil)
	_ Notifier = (*MemoryStore)(nil)
	_ Store    = (*BadgerStore)(nil)
	_ Store    = (*RedisStore)(nil)
	_ Notifier = (*RedisStore)(nil)
)
