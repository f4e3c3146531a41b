package cache

// Logger defines the interface for logging in the sync core.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...any)

	// Info logs an info message.
	Info(msg string, args ...any)

	// Warn logs a warning message.
	Warn(msg string, args ...any)

	// Error logs an error message.
	Error(msg string, args ...any)
}

// Marshaller defines the interface for JSON marshalling/unmarshalling.
type Marshaller interface {
	// Marshal serializes a value to bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes a value from bytes.
	Unmarshal(data []byte, v any) error
}

// EntryStore defines the interface for the in-process table that holds cache
// entries, keyed by the canonical ResourceKey form.
type EntryStore interface {
	// Get retrieves an entry from the store.
	Get(key string) (Entry, bool)

	// Set stores an entry in the store.
	Set(key string, entry Entry) bool

	// Delete removes an entry from the store.
	Delete(key string)

	// Clear removes all entries from the store.
	Clear()

	// Close closes the store.
	Close()

	// Metrics returns store metrics.
	Metrics() EntryStoreMetrics
}

// EntryStoreMetrics represents entry store metrics.
type EntryStoreMetrics struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int64
}

// EntryStoreFactory defines the interface for creating entry store
// implementations.
type EntryStoreFactory interface {
	// Create creates a new entry store instance.
	Create() (EntryStore, error)
}
