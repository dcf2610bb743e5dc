package tokenstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aelexs/authsession/internal/domain"
	redisclient "github.com/aelexs/authsession/internal/redis"
)

// Change payloads published on the notification channel.
const (
	changeSaved   = "saved"
	changeCleared = "cleared"
)

// RedisOptions configures the shared store.
type RedisOptions struct {
	KeyPrefix string
	Channel   string
}

// RedisStore shares the token pair between processes through Redis. Every
// mutation is published on a channel so other processes can resync.
type RedisStore struct {
	rdb        redisclient.UniversalClient
	accessKey  string
	refreshKey string
	channel    string
	owner      io.Closer
	logger     *slog.Logger
	closed     atomic.Bool
}

// NewRedisStore creates a RedisStore using rdb. The caller keeps ownership
// of rdb.
func NewRedisStore(rdb redisclient.UniversalClient, opts RedisOptions, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Channel == "" {
		opts.Channel = domain.DefaultRedisChannel
	}

	return &RedisStore{
		rdb:        rdb,
		accessKey:  opts.KeyPrefix + domain.AccessTokenKey,
		refreshKey: opts.KeyPrefix + domain.RefreshTokenKey,
		channel:    opts.Channel,
		logger:     logger,
	}
}

// Save implements Store. Both SETs and the notification run in one
// MULTI/EXEC.
func (s *RedisStore) Save(ctx context.Context, pair TokenPair) error {
	if err := validatePair(pair); err != nil {
		return err
	}
	if s.closed.Load() {
		return domain.ErrStoreClosed
	}

	ctx, span := tracer.Start(ctx, "redis.tokens.save")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "MULTI"),
	)

	_, err := s.rdb.TxPipelined(ctx, func(pipe redisclient.Pipeliner) error {
		pipe.Set(ctx, s.accessKey, pair.Access.Expose(), 0)
		pipe.Set(ctx, s.refreshKey, pair.Refresh.Expose(), 0)
		pipe.Publish(ctx, s.channel, changeSaved)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("redis save: %w: %w", domain.ErrStore, err)
	}

	return nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context) error {
	if s.closed.Load() {
		return domain.ErrStoreClosed
	}

	ctx, span := tracer.Start(ctx, "redis.tokens.clear")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "MULTI"),
	)

	_, err := s.rdb.TxPipelined(ctx, func(pipe redisclient.Pipeliner) error {
		pipe.Del(ctx, s.accessKey, s.refreshKey)
		pipe.Publish(ctx, s.channel, changeCleared)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("redis clear: %w: %w", domain.ErrStore, err)
	}

	return nil
}

// Read implements Store. A single MGET sees both keys at one instant.
func (s *RedisStore) Read(ctx context.Context) (TokenPair, bool, error) {
	if s.closed.Load() {
		return TokenPair{}, false, domain.ErrStoreClosed
	}

	ctx, span := tracer.Start(ctx, "redis.tokens.read")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "MGET"),
	)

	vals, err := s.rdb.MGet(ctx, s.accessKey, s.refreshKey).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return TokenPair{}, false, fmt.Errorf("redis read: %w: %w", domain.ErrStore, err)
	}

	pair := TokenPair{
		Access:  domain.SecretString(stringValue(vals, 0)),
		Refresh: domain.SecretString(stringValue(vals, 1)),
	}
	if !pair.Complete() {
		return TokenPair{}, false, nil
	}
	return pair, true, nil
}

func stringValue(vals []interface{}, i int) string {
	if i >= len(vals) {
		return ""
	}
	s, _ := vals[i].(string)
	return s
}

// Changes implements Notifier. The subscription is confirmed before
// Changes returns, so a mutation made afterwards is always observed.
func (s *RedisStore) Changes(ctx context.Context) (<-chan struct{}, error) {
	if s.closed.Load() {
		return nil, domain.ErrStoreClosed
	}

	ps := s.rdb.Subscribe(ctx, s.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %q: %w: %w", s.channel, domain.ErrStore, err)
	}

	msgs := ps.Channel()
	out := make(chan struct{}, 1)

	go func() {
		defer close(out)
		defer func() { _ = ps.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				s.logger.Debug("token store changed", "change", msg.Payload)
				signal(out)
			}
		}
	}()

	return out, nil
}

// Close implements Store. The Redis client is closed only when the store
// created it.
func (s *RedisStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.owner != nil {
		return s.owner.Close()
	}
	return nil
}
