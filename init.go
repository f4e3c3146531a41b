package resync

import (
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/bookline/resync/cache"
	"github.com/bookline/resync/fetch"
	"github.com/bookline/resync/relay"
)

// Config configures a resource sync client. One Client is constructed at
// process start and passed by reference to every component that needs it;
// there is no ambient global instance.
type Config struct {
	// InstanceID is the unique identifier for this dashboard instance.
	// Used by the relay to avoid self-invalidation.
	InstanceID string `env:"RESYNC_INSTANCE_ID"`

	// BaseURL is the resource API root, e.g. "https://admin.example.com/api".
	BaseURL string `env:"RESYNC_BASE_URL"`

	// RequestTimeout bounds each round trip against the resource API.
	RequestTimeout time.Duration `env:"RESYNC_REQUEST_TIMEOUT"`

	// FreshFor is the time-to-live after which cached entries decay to
	// Stale and refetch on the next read-through.
	FreshFor time.Duration `env:"RESYNC_FRESH_FOR"`

	// MaxCachedQueries bounds the number of cached query entries.
	MaxCachedQueries int `env:"RESYNC_MAX_CACHED_QUERIES"`

	// EntryStoreFactory overrides the cache backend.
	// If nil, defaults to the bounded LRU store.
	EntryStoreFactory cache.EntryStoreFactory

	// Retry is the retry policy applied to read fetches. The zero value
	// means the default single-attempt policy: the core never retries
	// mutations, and reads only when explicitly configured to.
	Retry fetch.RetryPolicy

	// RedisAddr enables the cross-instance invalidation relay when set.
	RedisAddr string `env:"RESYNC_REDIS_ADDR"`

	// RedisPassword is the optional Redis password.
	RedisPassword string `env:"RESYNC_REDIS_PASSWORD"`

	// RedisDB is the Redis database number.
	RedisDB int `env:"RESYNC_REDIS_DB"`

	// RelayChannel is the pub/sub channel for invalidation notices.
	RelayChannel string `env:"RESYNC_RELAY_CHANNEL"`

	// Relay overrides the relay entirely. If nil, a Redis relay is built
	// from RedisAddr when set, otherwise the no-op relay.
	Relay relay.Relay

	// HTTPClient overrides the underlying HTTP client.
	HTTPClient *http.Client

	// Marshaller overrides JSON handling for request bodies.
	// If nil, defaults to the standard JSON marshaller.
	Marshaller Marshaller

	// Logger is the logger for debug logging.
	// If nil, defaults to no-op logger.
	Logger cache.Logger

	// DebugMode enables debug logging.
	DebugMode bool `env:"RESYNC_DEBUG"`

	// OnError is called when an error occurs in background operations.
	OnError func(error)
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		InstanceID:       "default-instance",
		RequestTimeout:   10 * time.Second,
		FreshFor:         30 * time.Second,
		MaxCachedQueries: 4096,
		Retry:            fetch.DefaultRetryPolicy(),
		RelayChannel:     "resync:invalidate",
		Logger:           nil, // Will default to no-op in New()
		DebugMode:        false,
	}
}

// FromEnv returns the default configuration overridden by RESYNC_*
// environment variables.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// New creates a new sync client.
func New(cfg Config) (*Client, error) {
	return newClient(cfg)
}
