package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/dgraph-io/badger/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aelexs/authsession/internal/domain"
)

// BadgerOptions configures the durable store.
type BadgerOptions struct {
	Dir      string
	InMemory bool // Dir is ignored; used by tests
}

// BadgerStore is the default durable store: a Badger database in the
// user's config directory holding the two token keys.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
	closed atomic.Bool
}

// OpenBadgerStore opens or creates the database.
func OpenBadgerStore(opts BadgerOptions, logger *slog.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var bopts badger.Options
	switch {
	case opts.InMemory:
		bopts = badger.DefaultOptions("").WithInMemory(true)
	case opts.Dir != "":
		bopts = badger.DefaultOptions(opts.Dir)
	default:
		return nil, fmt.Errorf("%w: badger dir", domain.ErrConfigRequired)
	}
	bopts = bopts.
		WithLogger(&badgerLogger{logger: logger.With("component", "badger")}).
		WithSyncWrites(true).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	logger.Debug("token store opened", "backend", domain.StoreBackendBadger, "dir", opts.Dir)
	return &BadgerStore{db: db, logger: logger}, nil
}

// Save implements Store. Both keys are set in one transaction.
func (s *BadgerStore) Save(ctx context.Context, pair TokenPair) error {
	if err := validatePair(pair); err != nil {
		return err
	}
	if s.closed.Load() {
		return domain.ErrStoreClosed
	}

	_, span := tracer.Start(ctx, "badger.tokens.save")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "badger"))

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(domain.AccessTokenKey), []byte(pair.Access.Expose())); err != nil {
			return err
		}
		return txn.Set([]byte(domain.RefreshTokenKey), []byte(pair.Refresh.Expose()))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("badger save: %w: %w", domain.ErrStore, err)
	}

	return nil
}

// Clear implements Store.
func (s *BadgerStore) Clear(ctx context.Context) error {
	if s.closed.Load() {
		return domain.ErrStoreClosed
	}

	_, span := tracer.Start(ctx, "badger.tokens.clear")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "badger"))

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(domain.AccessTokenKey)); err != nil {
			return err
		}
		return txn.Delete([]byte(domain.RefreshTokenKey))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("badger clear: %w: %w", domain.ErrStore, err)
	}

	return nil
}

// Read implements Store.
func (s *BadgerStore) Read(ctx context.Context) (TokenPair, bool, error) {
	if s.closed.Load() {
		return TokenPair{}, false, domain.ErrStoreClosed
	}

	_, span := tracer.Start(ctx, "badger.tokens.read")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "badger"))

	var access, refresh []byte
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		if access, err = getValue(txn, domain.AccessTokenKey); err != nil {
			return err
		}
		refresh, err = getValue(txn, domain.RefreshTokenKey)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return TokenPair{}, false, fmt.Errorf("badger read: %w: %w", domain.ErrStore, err)
	}

	pair := TokenPair{
		Access:  domain.SecretString(access),
		Refresh: domain.SecretString(refresh),
	}
	if !pair.Complete() {
		return TokenPair{}, false, nil
	}
	return pair, true, nil
}

// getValue returns nil for a missing key.
func getValue(txn *badger.Txn, key string) ([]byte, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
// Badger is chatty at info level, so info is demoted to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
