package cache

import (
	"time"
)

// EntryStoreConfig configures the entry store backend.
type EntryStoreConfig struct {
	// MaxEntries is the maximum number of cached queries (LRU and map stores).
	MaxEntries int

	// NumCounters is the number of frequency counters (Ristretto only).
	// Recommended: 10 * MaxEntries
	NumCounters int64

	// MaxCost is the maximum total cost of entries (Ristretto only).
	MaxCost int64

	// BufferItems is the number of items to buffer before eviction (Ristretto only).
	BufferItems int64

	// IgnoreInternalCost ignores the internal cost of items (Ristretto only).
	IgnoreInternalCost bool
}

// Options configures a Store instance.
type Options struct {
	// InstanceID is the unique identifier for this dashboard instance.
	// Used by the relay to avoid self-invalidation.
	InstanceID string

	// FreshFor is the time-to-live after which a Fresh entry decays to Stale.
	FreshFor time.Duration

	// EntryStoreConfig configures the entry store backend.
	EntryStoreConfig EntryStoreConfig

	// EntryStoreFactory is the factory for creating the entry store.
	// If nil, defaults to the LRU factory.
	EntryStoreFactory EntryStoreFactory

	// Logger is the logger for debug logging.
	// If nil, defaults to no-op logger.
	Logger Logger

	// DebugMode enables debug logging.
	DebugMode bool

	// OnError is called when an error occurs in background operations.
	OnError func(error)
}

// DefaultOptions returns default store options.
func DefaultOptions() Options {
	return Options{
		InstanceID:        "default-instance",
		FreshFor:          30 * time.Second,
		EntryStoreConfig:  DefaultEntryStoreConfig(),
		EntryStoreFactory: nil, // Will default to LRU in NewStore()
		Logger:            nil, // Will default to no-op in NewStore()
		DebugMode:         false,
	}
}

// DefaultEntryStoreConfig returns default entry store configuration.
func DefaultEntryStoreConfig() EntryStoreConfig {
	return EntryStoreConfig{
		MaxEntries:         4096,
		NumCounters:        40960,
		MaxCost:            4096,
		BufferItems:        64,
		IgnoreInternalCost: true,
	}
}

// Validate validates the options.
func (o *Options) Validate() error {
	if o.InstanceID == "" {
		return ErrInvalidConfig
	}
	if o.FreshFor <= 0 {
		return ErrInvalidConfig
	}
	if o.EntryStoreConfig.MaxEntries <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ErrInvalidConfig is returned when options are invalid.
var ErrInvalidConfig = NewError("invalid store configuration")

// NewError creates a new error with the given message.
func NewError(msg string) error {
	return &storeError{msg: msg}
}

type storeError struct {
	msg string
}

func (e *storeError) Error() string {
	return e.msg
}
