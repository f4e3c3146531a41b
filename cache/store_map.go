package cache

import (
	"sync"
	"sync/atomic"
)

// MapStoreFactory creates map entry store instances.
type MapStoreFactory struct{}

// NewMapStoreFactory creates a new map entry store factory.
func NewMapStoreFactory() EntryStoreFactory {
	return &MapStoreFactory{}
}

// Create creates a new map entry store instance.
func (f *MapStoreFactory) Create() (EntryStore, error) {
	return NewMapStore(), nil
}

// MapStore is an unbounded entry store backed by a plain map. Nothing is ever
// evicted; use it only when the set of cached queries is known to be small.
type MapStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	hits    int64
	misses  int64
}

// NewMapStore creates a new map-backed entry store.
func NewMapStore() *MapStore {
	return &MapStore{entries: make(map[string]Entry)}
}

// Get retrieves an entry from the store.
func (s *MapStore) Get(key string) (Entry, bool) {
	s.mu.RLock()
	entry, found := s.entries[key]
	s.mu.RUnlock()

	if found {
		atomic.AddInt64(&s.hits, 1)
	} else {
		atomic.AddInt64(&s.misses, 1)
	}
	return entry, found
}

// Set stores an entry in the store.
func (s *MapStore) Set(key string, entry Entry) bool {
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return true
}

// Delete removes an entry from the store.
func (s *MapStore) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Clear removes all entries from the store.
func (s *MapStore) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]Entry)
	s.mu.Unlock()
}

// Close closes the store.
func (s *MapStore) Close() {
	s.Clear()
}

// Metrics returns store metrics.
func (s *MapStore) Metrics() EntryStoreMetrics {
	s.mu.RLock()
	size := int64(len(s.entries))
	s.mu.RUnlock()

	return EntryStoreMetrics{
		Hits:   atomic.LoadInt64(&s.hits),
		Misses: atomic.LoadInt64(&s.misses),
		Size:   size,
	}
}
