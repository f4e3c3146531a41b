package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUStoreFactory creates LRU entry store instances.
type LRUStoreFactory struct {
	maxEntries int
}

// NewLRUStoreFactory creates a new LRU entry store factory.
func NewLRUStoreFactory(maxEntries int) EntryStoreFactory {
	return &LRUStoreFactory{maxEntries: maxEntries}
}

// Create creates a new LRU entry store instance.
func (f *LRUStoreFactory) Create() (EntryStore, error) {
	return NewLRUStore(f.maxEntries)
}

// LRUStore is a bounded entry store backed by golang-lru. It is the default
// backend: dashboards touch a bounded working set of queries and the least
// recently read ones are safe to drop.
type LRUStore struct {
	cache      *lru.Cache[string, Entry]
	hits       int64
	misses     int64
	evictions  int64
	maxEntries int64
}

// NewLRUStore creates a new LRU-backed entry store.
func NewLRUStore(maxEntries int) (*LRUStore, error) {
	var s *LRUStore
	cache, err := lru.NewWithEvict[string, Entry](maxEntries, func(string, Entry) {
		atomic.AddInt64(&s.evictions, 1)
	})
	if err != nil {
		return nil, err
	}

	s = &LRUStore{
		cache:      cache,
		maxEntries: int64(maxEntries),
	}
	return s, nil
}

// Get retrieves an entry from the store.
func (s *LRUStore) Get(key string) (Entry, bool) {
	entry, found := s.cache.Get(key)
	if found {
		atomic.AddInt64(&s.hits, 1)
	} else {
		atomic.AddInt64(&s.misses, 1)
	}
	return entry, found
}

// Set stores an entry in the store.
func (s *LRUStore) Set(key string, entry Entry) bool {
	s.cache.Add(key, entry)
	return true
}

// Delete removes an entry from the store.
func (s *LRUStore) Delete(key string) {
	s.cache.Remove(key)
}

// Clear removes all entries from the store.
func (s *LRUStore) Clear() {
	s.cache.Purge()
}

// Close closes the store.
func (s *LRUStore) Close() {
	s.cache.Purge()
}

// Metrics returns store metrics.
func (s *LRUStore) Metrics() EntryStoreMetrics {
	return EntryStoreMetrics{
		Hits:      atomic.LoadInt64(&s.hits),
		Misses:    atomic.LoadInt64(&s.misses),
		Evictions: atomic.LoadInt64(&s.evictions),
		Size:      int64(s.cache.Len()),
	}
}
