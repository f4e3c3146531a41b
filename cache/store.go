package cache

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bookline/resync/types"
)

// Store holds the latest known value, freshness, and in-flight fetch state
// per ResourceKey. It is the single shared mutable resource of the sync core:
// readers, the mutation coordinator, and the relay all go through its API,
// which is what makes the single-flight and ordering invariants enforceable
// in one place.
type Store struct {
	mu      sync.Mutex
	entries EntryStore
	// inflight maps canonical key -> request id of the outstanding fetch.
	inflight map[string]string
	// byCollection indexes canonical keys per collection for derived-key
	// invalidation after a mutation commits. Entries evicted from the
	// backend may linger here; they resolve as misses.
	byCollection map[string]map[string]struct{}
	options      Options
	logger       Logger
	closed       int32
	stats        Stats
	now          func() time.Time
}

// Stats represents store statistics.
type Stats struct {
	Hits          int64
	Misses        int64
	Invalidations int64
	Discarded     int64
}

// ErrStoreClosed is returned when operations are performed on a closed store.
var ErrStoreClosed = NewError("store is closed")

// NewStore creates a new Store instance.
func NewStore(opts Options) (*Store, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if opts.EntryStoreFactory == nil {
		opts.EntryStoreFactory = NewLRUStoreFactory(opts.EntryStoreConfig.MaxEntries)
	}
	if opts.Logger == nil {
		opts.Logger = NewNoOpLogger()
	}

	entries, err := opts.EntryStoreFactory.Create()
	if err != nil {
		return nil, err
	}

	return &Store{
		entries:      entries,
		inflight:     make(map[string]string),
		byCollection: make(map[string]map[string]struct{}),
		options:      opts,
		logger:       opts.Logger,
		now:          time.Now,
	}, nil
}

// Read returns the current entry for the key. It never blocks: an absent key
// yields an Idle entry, and freshness decay (Fresh -> Stale) is computed
// against the configured time-to-live at read time.
func (s *Store) Read(key types.ResourceKey) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	canonical := key.Canonical()
	entry, found := s.entries.Get(canonical)
	if !found {
		atomic.AddInt64(&s.stats.Misses, 1)
		entry = Entry{Key: key, Status: StatusIdle}
	} else {
		atomic.AddInt64(&s.stats.Hits, 1)
		if entry.Status == StatusFresh && s.now().Sub(entry.FetchedAt) > s.options.FreshFor {
			entry.Status = StatusStale
		}
	}

	// An outstanding fetch overlays the materialized status.
	if _, ok := s.inflight[canonical]; ok {
		entry.Status = StatusFetching
	}

	return entry
}

// Write replaces the entry's value and marks it Fresh. Used by confirmed
// fetches routed through CompleteFetch and directly by mutation commits and
// optimistic applies. Writing discards any outstanding fetch for the key: a
// mutation's value must not be clobbered by an older in-flight response.
func (s *Store) Write(key types.ResourceKey, value json.RawMessage, fetchedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	canonical := key.Canonical()
	delete(s.inflight, canonical)
	s.storeEntry(canonical, Entry{
		Key:       key,
		Value:     value,
		FetchedAt: fetchedAt,
		Status:    StatusFresh,
	})

	if s.options.DebugMode {
		s.logger.Debug("Write: stored value", "key", canonical)
	}
}

// Invalidate marks a Fresh or Stale entry as Stale so the next read-through
// refetches. Unknown keys are a no-op.
func (s *Store) Invalidate(key types.ResourceKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked(key.Canonical())
}

// InvalidateCanonical invalidates by canonical key form. Used by the relay,
// which receives canonical strings over the wire.
func (s *Store) InvalidateCanonical(canonical string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked(canonical)
}

// InvalidateCollection marks every cached query of a collection as Stale.
// Called after a mutation commits, since list views of the collection are
// derived from the mutated resource.
func (s *Store) InvalidateCollection(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for canonical := range s.byCollection[collection] {
		s.invalidateLocked(canonical)
	}
}

func (s *Store) invalidateLocked(canonical string) {
	entry, found := s.entries.Get(canonical)
	if !found {
		return
	}
	if entry.Status != StatusFresh && entry.Status != StatusStale {
		return
	}
	entry.Status = StatusStale
	s.entries.Set(canonical, entry)
	atomic.AddInt64(&s.stats.Invalidations, 1)

	if s.options.DebugMode {
		s.logger.Debug("Invalidate: marked stale", "key", canonical)
	}
}

// BeginFetch registers an outstanding fetch for the key and returns its
// request id. It returns ok=false if a fetch is already in flight for the
// key; the caller must then attach to the existing request instead of
// issuing a duplicate network call. At most one outstanding fetch per key.
func (s *Store) BeginFetch(key types.ResourceKey) (string, bool) {
	if atomic.LoadInt32(&s.closed) != 0 {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	canonical := key.Canonical()
	if _, ok := s.inflight[canonical]; ok {
		return "", false
	}

	id := uuid.NewString()
	s.inflight[canonical] = id

	if s.options.DebugMode {
		s.logger.Debug("BeginFetch: registered request", "key", canonical, "requestId", id)
	}

	return id, true
}

// CompleteFetch commits a fetch response. The response is applied only if
// requestID is still the tracked in-flight id for the key; a late response
// from a superseded request is discarded, keeping per-key freshness
// monotonic. Returns whether the response was applied.
func (s *Store) CompleteFetch(key types.ResourceKey, requestID string, value json.RawMessage, fetchedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	canonical := key.Canonical()
	if s.inflight[canonical] != requestID {
		atomic.AddInt64(&s.stats.Discarded, 1)
		if s.options.DebugMode {
			s.logger.Warn("CompleteFetch: discarded late response", "key", canonical, "requestId", requestID)
		}
		return false
	}

	delete(s.inflight, canonical)
	s.storeEntry(canonical, Entry{
		Key:       key,
		Value:     value,
		FetchedAt: fetchedAt,
		Status:    StatusFresh,
		RequestID: requestID,
	})

	if s.options.DebugMode {
		s.logger.Debug("CompleteFetch: applied response", "key", canonical, "requestId", requestID)
	}

	return true
}

// FailFetch records a fetch failure. The previous value, if any, is kept so
// the UI can keep rendering stale data next to the error. Same request-id
// discipline as CompleteFetch.
func (s *Store) FailFetch(key types.ResourceKey, requestID string, errInfo ErrorInfo) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	canonical := key.Canonical()
	if s.inflight[canonical] != requestID {
		atomic.AddInt64(&s.stats.Discarded, 1)
		return false
	}

	delete(s.inflight, canonical)
	entry, found := s.entries.Get(canonical)
	if !found {
		entry = Entry{Key: key}
	}
	entry.Status = StatusError
	entry.Err = &errInfo
	entry.RequestID = requestID
	s.storeEntry(canonical, entry)

	if s.options.DebugMode {
		s.logger.Debug("FailFetch: recorded failure", "key", canonical, "kind", errInfo.Kind)
	}

	return true
}

// Delete removes the entry entirely, e.g. after a DELETE mutation commits.
func (s *Store) Delete(key types.ResourceKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	canonical := key.Canonical()
	delete(s.inflight, canonical)
	s.entries.Delete(canonical)
	if keys, ok := s.byCollection[key.Collection()]; ok {
		delete(keys, canonical)
	}
}

// Clear removes all entries and forgets all in-flight fetches.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries.Clear()
	s.inflight = make(map[string]string)
	s.byCollection = make(map[string]map[string]struct{})
}

// Close closes the store and its entry backend. Idempotent.
func (s *Store) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	s.entries.Close()
	return nil
}

// Stats returns store statistics.
func (s *Store) Stats() Stats {
	return Stats{
		Hits:          atomic.LoadInt64(&s.stats.Hits),
		Misses:        atomic.LoadInt64(&s.stats.Misses),
		Invalidations: atomic.LoadInt64(&s.stats.Invalidations),
		Discarded:     atomic.LoadInt64(&s.stats.Discarded),
	}
}

// EntryMetrics returns the backend store metrics.
func (s *Store) EntryMetrics() EntryStoreMetrics {
	return s.entries.Metrics()
}

// storeEntry persists an entry and maintains the collection index.
// Caller must hold s.mu.
func (s *Store) storeEntry(canonical string, entry Entry) {
	s.entries.Set(canonical, entry)
	collection := entry.Key.Collection()
	if s.byCollection[collection] == nil {
		s.byCollection[collection] = make(map[string]struct{})
	}
	s.byCollection[collection][canonical] = struct{}{}
}

// SetNow overrides the store clock. Intended for tests.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
