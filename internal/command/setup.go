package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/aelexs/authsession/internal/config"
	"github.com/aelexs/authsession/internal/domain"
	"github.com/aelexs/authsession/internal/errmap"
	"github.com/aelexs/authsession/internal/identity"
	"github.com/aelexs/authsession/internal/observability"
	redisclient "github.com/aelexs/authsession/internal/redis"
	"github.com/aelexs/authsession/internal/session"
	"github.com/aelexs/authsession/internal/tokenstore"
)

const runtimeKey = "runtime"

// runtime owns everything a command needs. The cheap parts are built in
// before; the store and manager only when a command asks for a session.
type runtime struct {
	cfg       *config.Config
	logger    *slog.Logger
	telemetry *observability.Telemetry
	format    Format

	store    tokenstore.Store
	identity *identity.Client
	manager  *session.Manager
}

func before(c *cli.Context) error {
	format, err := ParseFormat(c.String(flagOutput))
	if err != nil {
		return cli.Exit(err.Error(), errmap.ExitUsage)
	}

	cfg, err := config.Load(c.Context, c.String(flagConfig), overrides(c))
	if err != nil {
		return cli.Exit(fmt.Sprintf("config: %v", err), errmap.ExitCode(err))
	}

	logger := observability.InitLogger(observability.LogConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: cfg.OTEL.ServiceName,
		Environment: cfg.Environment,
		Writer:      c.App.ErrWriter,
	})

	tel, err := observability.InitTelemetry(c.Context, observability.TelemetryConfig{
		ServiceName:    cfg.OTEL.ServiceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTEL.Endpoint,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("telemetry: %v", err), errmap.ExitFailure)
	}

	c.App.Metadata[runtimeKey] = &runtime{
		cfg:       cfg,
		logger:    logger,
		telemetry: tel,
		format:    format,
	}
	return nil
}

// overrides maps the global flags that were set onto config keys.
func overrides(c *cli.Context) map[string]any {
	keys := map[string]string{
		flagLogLevel: "log_level",
		flagBaseURL:  "identity.base_url",
		flagStore:    "store.backend",
		flagStoreDir: "store.badger.dir",
		flagRedis:    "store.redis.addr",
	}
	out := make(map[string]any)
	for flag, key := range keys {
		if c.IsSet(flag) {
			out[key] = c.String(flag)
		}
	}
	return out
}

func after(c *cli.Context) error {
	rt, ok := c.App.Metadata[runtimeKey].(*runtime)
	if !ok {
		return nil
	}
	delete(c.App.Metadata, runtimeKey)

	var errs []error
	if rt.manager != nil {
		rt.manager.Close()
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close token store: %w", err))
		}
	}
	if rt.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), domain.TelemetryFlushTimeout)
		defer cancel()
		if err := rt.telemetry.Shutdown(ctx); err != nil {
			rt.logger.Warn("telemetry flush failed", "error", err)
		}
	}
	return errors.Join(errs...)
}

func runtimeFrom(c *cli.Context) *runtime {
	rt, ok := c.App.Metadata[runtimeKey].(*runtime)
	if !ok {
		// before always installs the runtime; reaching here is a wiring bug.
		panic(domain.ErrNoSessionProvider)
	}
	return rt
}

// open builds the token store, transport and manager.
func (rt *runtime) open(ctx context.Context) error {
	if rt.manager != nil {
		return nil
	}

	validateCtx, cancel := context.WithTimeout(ctx, rt.cfg.Store.Redis.Timeout)
	defer cancel()

	store, err := tokenstore.Open(validateCtx, tokenstore.Config{
		Backend:   rt.cfg.Store.Backend,
		BadgerDir: rt.cfg.Store.Badger.Dir,
		Redis: redisclient.Config{
			Addr:         rt.cfg.Store.Redis.Addr,
			Password:     rt.cfg.Store.Redis.Password,
			DB:           rt.cfg.Store.Redis.DB,
			ReadTimeout:  rt.cfg.Store.Redis.Timeout,
			WriteTimeout: rt.cfg.Store.Redis.Timeout,
		},
		RedisOpts: tokenstore.RedisOptions{
			KeyPrefix: rt.cfg.Store.Redis.KeyPrefix,
			Channel:   rt.cfg.Store.Redis.Channel,
		},
	}, rt.logger)
	if err != nil {
		return err
	}
	rt.store = store

	client, err := identity.NewClient(identity.Config{
		BaseURL:      rt.cfg.Identity.BaseURL,
		LoginPath:    rt.cfg.Identity.LoginPath,
		RegisterPath: rt.cfg.Identity.RegisterPath,
		ProfilePath:  rt.cfg.Identity.ProfilePath,
		Timeout:      rt.cfg.Identity.Timeout,
		UserAgent:    "authctl/" + Version,
	}, rt.logger)
	if err != nil {
		return err
	}
	rt.identity = client

	mgr, err := session.New(ctx, session.Config{
		Transport: client,
		Store:     store,
		Logger:    rt.logger,
	})
	if err != nil {
		return err
	}
	rt.manager = mgr
	return nil
}

// withSession opens the session stack and installs the manager in the
// command context before running action.
func withSession(action cli.ActionFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		rt := runtimeFrom(c)
		if err := rt.open(c.Context); err != nil {
			return cli.Exit(fmt.Sprintf("session: %v", err), errmap.ExitCode(err))
		}
		c.Context = session.WithManager(c.Context, rt.manager)
		return action(c)
	}
}
