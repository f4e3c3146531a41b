package cache

import (
	"sync/atomic"

	"github.com/dgraph-io/ristretto"
)

// LFUStoreFactory creates Ristretto entry store instances.
type LFUStoreFactory struct {
	config EntryStoreConfig
}

// NewLFUStoreFactory creates a new Ristretto entry store factory.
func NewLFUStoreFactory(config EntryStoreConfig) EntryStoreFactory {
	return &LFUStoreFactory{config: config}
}

// Create creates a new Ristretto entry store instance.
func (f *LFUStoreFactory) Create() (EntryStore, error) {
	return NewLFUStore(f.config)
}

// LFUStore is an entry store backed by Ristretto. Useful for very large
// dashboards where admission by access frequency beats plain recency.
type LFUStore struct {
	cache     *ristretto.Cache
	hits      int64
	misses    int64
	evictions int64
	size      int64
}

// NewLFUStore creates a new Ristretto-backed entry store.
func NewLFUStore(config EntryStoreConfig) (*LFUStore, error) {
	s := &LFUStore{}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        config.NumCounters,
		MaxCost:            config.MaxCost,
		BufferItems:        config.BufferItems,
		IgnoreInternalCost: config.IgnoreInternalCost,
		OnEvict: func(item *ristretto.Item) {
			atomic.AddInt64(&s.evictions, 1)
			atomic.AddInt64(&s.size, -1)
		},
	})
	if err != nil {
		return nil, err
	}
	s.cache = cache
	return s, nil
}

// Get retrieves an entry from the store.
func (s *LFUStore) Get(key string) (Entry, bool) {
	value, found := s.cache.Get(key)
	if !found {
		atomic.AddInt64(&s.misses, 1)
		return Entry{}, false
	}
	entry, ok := value.(Entry)
	if !ok {
		atomic.AddInt64(&s.misses, 1)
		return Entry{}, false
	}
	atomic.AddInt64(&s.hits, 1)
	return entry, true
}

// Set stores an entry in the store. Ristretto admission is probabilistic;
// callers must not assume the entry is retained.
func (s *LFUStore) Set(key string, entry Entry) bool {
	admitted := s.cache.Set(key, entry, 1)
	if admitted {
		atomic.AddInt64(&s.size, 1)
	}
	// Ristretto sets are async; wait so a subsequent Get observes the write.
	s.cache.Wait()
	return admitted
}

// Delete removes an entry from the store.
func (s *LFUStore) Delete(key string) {
	s.cache.Del(key)
}

// Clear removes all entries from the store.
func (s *LFUStore) Clear() {
	s.cache.Clear()
	atomic.StoreInt64(&s.size, 0)
}

// Close closes the store.
func (s *LFUStore) Close() {
	s.cache.Close()
}

// Metrics returns store metrics.
func (s *LFUStore) Metrics() EntryStoreMetrics {
	return EntryStoreMetrics{
		Hits:      atomic.LoadInt64(&s.hits),
		Misses:    atomic.LoadInt64(&s.misses),
		Evictions: atomic.LoadInt64(&s.evictions),
		Size:      atomic.LoadInt64(&s.size),
	}
}
