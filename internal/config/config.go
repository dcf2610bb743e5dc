// Package config provides configuration loading using koanf.
// Precedence: CLI overrides → env → YAML file → compiled defaults.
package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/aelexs/authsession/internal/domain"
)

// EnvPrefix is the prefix for environment overrides. Nesting uses a double
// underscore so single underscores stay inside key names:
// AUTHSESSION_STORE__REDIS__KEY_PREFIX -> store.redis.key_prefix.
const EnvPrefix = "AUTHSESSION_"

// Config holds all client configuration.
type Config struct {
	// Environment identifier: "local", "dev", "prod"
	Environment string `koanf:"environment"`

	// Logging configuration
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	Identity IdentityConfig `koanf:"identity"`
	Store    StoreConfig    `koanf:"store"`

	// OpenTelemetry configuration
	OTEL OTELConfig `koanf:"otel"`
}

// IdentityConfig locates the remote identity service.
type IdentityConfig struct {
	BaseURL      string        `koanf:"base_url"` // Required
	LoginPath    string        `koanf:"login_path"`
	RegisterPath string        `koanf:"register_path"`
	ProfilePath  string        `koanf:"profile_path"`
	Timeout      time.Duration `koanf:"timeout"`
}

// StoreConfig selects and configures the token store backend.
type StoreConfig struct {
	Backend domain.StoreBackend `koanf:"backend"`
	Badger  BadgerConfig        `koanf:"badger"`
	Redis   RedisConfig         `koanf:"redis"`
}

// BadgerConfig holds the durable on-disk store settings.
type BadgerConfig struct {
	Dir string `koanf:"dir"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr      string        `koanf:"addr"` // Required when backend is redis
	Password  string        `koanf:"password"`
	DB        int           `koanf:"db"`
	Timeout   time.Duration `koanf:"timeout"`
	KeyPrefix string        `koanf:"key_prefix"`
	Channel   string        `koanf:"channel"`
}

// OTELConfig holds OpenTelemetry configuration.
type OTELConfig struct {
	Endpoint    string `koanf:"endpoint"` // Empty disables OTLP export
	ServiceName string `koanf:"service_name"`
}

// defaults returns a Config with compiled default values.
func defaults() *Config {
	return &Config{
		Environment: "local",
		LogLevel:    "info",
		LogFormat:   "text",

		Identity: IdentityConfig{
			BaseURL:      "http://localhost:8000",
			LoginPath:    domain.LoginPath,
			RegisterPath: domain.RegisterPath,
			ProfilePath:  domain.ProfilePath,
			Timeout:      domain.IdentityRequestTimeout,
		},
		Store: StoreConfig{
			Backend: domain.StoreBackendBadger,
			Badger: BadgerConfig{
				Dir: defaultBadgerDir(),
			},
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				Timeout:   domain.RedisTimeout,
				KeyPrefix: domain.DefaultRedisKeyPrefix,
				Channel:   domain.DefaultRedisChannel,
			},
		},
		OTEL: OTELConfig{
			ServiceName: "authctl",
		},
	}
}

func defaultBadgerDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "authsession", "tokens")
	}
	return filepath.Join(".authsession", "tokens")
}

// Load loads configuration following the precedence:
// 1. overrides, keyed by dotted path such as "identity.base_url" (highest)
// 2. Environment variables
// 3. YAML file at path, when path is non-empty
// 4. Compiled defaults (lowest)
//
// Required keys missing or invalid values fail startup.
func Load(_ context.Context, path string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	cfg := defaults()

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("load overrides: %w", err)
		}
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envKey maps AUTHSESSION_IDENTITY__BASE_URL to identity.base_url.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}

// validate checks that required configuration is present and well-formed.
func validate(cfg *Config) error {
	if cfg.Identity.BaseURL == "" {
		return fmt.Errorf("%w: identity.base_url", domain.ErrConfigRequired)
	}
	u, err := url.Parse(cfg.Identity.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: identity.base_url %q", domain.ErrConfigInvalid, cfg.Identity.BaseURL)
	}
	if cfg.IsProd() && u.Scheme != "https" {
		return fmt.Errorf("%w: identity.base_url must use https in prod", domain.ErrConfigInvalid)
	}
	if cfg.Identity.Timeout <= 0 {
		return fmt.Errorf("%w: identity.timeout must be positive", domain.ErrConfigInvalid)
	}

	if cfg.Store.Redis.Timeout <= 0 {
		return fmt.Errorf("%w: store.redis.timeout must be positive", domain.ErrConfigInvalid)
	}

	if !domain.IsValidStoreBackend(cfg.Store.Backend) {
		return fmt.Errorf("%w: store.backend %q", domain.ErrConfigInvalid, cfg.Store.Backend)
	}

	switch cfg.Store.Backend {
	case domain.StoreBackendBadger:
		if cfg.Store.Badger.Dir == "" {
			return fmt.Errorf("%w: store.badger.dir", domain.ErrConfigRequired)
		}
	case domain.StoreBackendRedis:
		if cfg.Store.Redis.Addr == "" {
			return fmt.Errorf("%w: store.redis.addr", domain.ErrConfigRequired)
		}
		if cfg.Store.Redis.Channel == "" {
			return fmt.Errorf("%w: store.redis.channel", domain.ErrConfigRequired)
		}
	}

	return nil
}

// IsProd returns true if running in production environment.
func (c *Config) IsProd() bool {
	return c.Environment == "prod"
}
