package domain

import "time"

// Token store keys. These match the keys the browser client used in
// localStorage so a migrated store keeps working.
const (
	AccessTokenKey  = "accessToken"
	RefreshTokenKey = "refreshToken"
)

// Identity service endpoints, relative to the configured base URL.
const (
	LoginPath    = "/users/login/"
	RegisterPath = "/users/register/"
	ProfilePath  = "/users/profile/"
)

// Timeout contracts.
const (
	IdentityRequestTimeout = 10 * time.Second // http.Client timeout for identity calls
	RedisTimeout           = 2 * time.Second  // Max time for Redis operations
	TelemetryFlushTimeout  = 5 * time.Second  // Max time to flush OTEL providers on exit
)

// Limits.
const (
	MaxResponseBodySize = 1 << 20 // 1 MiB cap on identity response bodies
	MinPasswordLength   = 8       // Enforced by the form layer, not the session manager
)

// Redis defaults for the shared token store.
const (
	DefaultRedisKeyPrefix = "authsession:"
	DefaultRedisChannel   = "authsession:changed"
)

// StoreBackend names a token store implementation.
type StoreBackend string

const (
	StoreBackendBadger StoreBackend = "badger"
	StoreBackendRedis  StoreBackend = "redis"
	StoreBackendMemory StoreBackend = "memory"
)

// IsValidStoreBackend checks if a backend name is supported.
func IsValidStoreBackend(b StoreBackend) bool {
	switch b {
	case StoreBackendBadger, StoreBackendRedis, StoreBackendMemory:
		return true
	}
	return false
}
