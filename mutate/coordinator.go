package mutate

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bookline/resync/cache"
	"github.com/bookline/resync/fetch"
	"github.com/bookline/resync/types"
)

// ErrConcurrentMutation is returned when a mutation is requested for a key
// that already has one in flight. The caller is expected to disable the
// triggering control until the pending mutation resolves, not to queue a
// second attempt.
var ErrConcurrentMutation = errors.New("mutate: a mutation for this key is already in flight")

// Outcome is the resolution state of a mutation.
type Outcome int

// Mutation outcomes.
const (
	Pending Outcome = iota
	Committed
	RolledBack
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled_back"
	}
	return "unknown"
}

// Record tracks one mutation from optimistic apply to resolution. Previous
// is an exact snapshot of the cache value at the instant the mutation began,
// which is what makes rollback byte-exact.
type Record struct {
	Key        types.ResourceKey
	RequestID  string
	Previous   json.RawMessage
	Optimistic json.RawMessage
	Outcome    Outcome

	// Confirmed is the server-returned value after a commit. It may differ
	// from the optimistic guess, e.g. server-assigned fields.
	Confirmed json.RawMessage

	// Err is set when the outcome is RolledBack.
	Err *cache.ErrorInfo
}

// Committer performs the real mutation round trip. *fetch.Client satisfies
// it; tests substitute fakes.
type Committer interface {
	Execute(ctx context.Context, req fetch.Request) (json.RawMessage, error)
}

// Mutation describes one optimistic mutation.
type Mutation struct {
	// Key is the cache entry the optimistic value applies to.
	Key types.ResourceKey

	// Optimistic is the predicted post-mutation value, applied to the cache
	// before the server confirms.
	Optimistic json.RawMessage

	// Commit is the real mutation request.
	Commit fetch.Request

	// Related lists cache keys whose data is derived from this resource
	// (e.g. list views containing it); they are invalidated after commit so
	// they refetch.
	Related []types.ResourceKey

	// InvalidateCollection, when true, additionally invalidates every cached
	// query of the mutated collection after commit.
	InvalidateCollection bool
}

// Coordinator applies optimistic updates to the cache store and settles them
// against the server: confirm on success, exact rollback on failure. At most
// one in-flight mutation per key, matching the cache's single-fetch
// invariant.
type Coordinator struct {
	store     *cache.Store
	committer Committer
	logger    cache.Logger
	debug     bool

	mu      sync.Mutex
	pending map[string]*Record

	// OnSettle, when set, observes every settled record. Used by the client
	// to publish relay notices after commits.
	OnSettle func(rec *Record)

	now func() time.Time
}

// NewCoordinator creates a mutation coordinator bound to a store and a
// committer.
func NewCoordinator(store *cache.Store, committer Committer, logger cache.Logger, debug bool) *Coordinator {
	if logger == nil {
		logger = cache.NewNoOpLogger()
	}
	return &Coordinator{
		store:     store,
		committer: committer,
		logger:    logger,
		debug:     debug,
		pending:   make(map[string]*Record),
		now:       time.Now,
	}
}

// Mutate runs one optimistic mutation to resolution. The returned record's
// outcome is Committed or RolledBack; Pending never escapes. The UI never
// observes a cache value that is neither the true previous value nor a value
// the server actually confirmed.
func (c *Coordinator) Mutate(ctx context.Context, m Mutation) (*Record, error) {
	canonical := m.Key.Canonical()

	c.mu.Lock()
	if _, exists := c.pending[canonical]; exists {
		c.mu.Unlock()
		return nil, ErrConcurrentMutation
	}

	entry := c.store.Read(m.Key)
	rec := &Record{
		Key:        m.Key,
		RequestID:  uuid.NewString(),
		Previous:   cloneRaw(entry.Value),
		Optimistic: cloneRaw(m.Optimistic),
		Outcome:    Pending,
	}
	c.pending[canonical] = rec

	// Optimistic apply: the UI reflects the change with zero latency.
	c.store.Write(m.Key, rec.Optimistic, c.now())
	c.mu.Unlock()

	if c.debug {
		c.logger.Debug("Mutate: optimistic apply", "key", canonical, "requestId", rec.RequestID)
	}

	confirmed, err := c.committer.Execute(ctx, m.Commit)

	c.mu.Lock()
	delete(c.pending, canonical)
	if err != nil {
		// Restore the pre-mutation snapshot exactly. FetchedAt moves
		// forward; the value bytes do not.
		if rec.Previous == nil {
			c.store.Delete(m.Key)
		} else {
			c.store.Write(m.Key, rec.Previous, c.now())
			c.store.Invalidate(m.Key)
		}
		rec.Outcome = RolledBack
		rec.Err = errorInfo(err)
		c.mu.Unlock()

		if c.debug {
			c.logger.Warn("Mutate: rolled back", "key", canonical, "error", err)
		}
		if c.OnSettle != nil {
			c.OnSettle(rec)
		}
		return rec, err
	}

	// Commit: store the server-confirmed value, which wins over the
	// optimistic guess.
	value := confirmed
	if value == nil {
		// 204-style responses confirm without a body; the optimistic value
		// stands as confirmed.
		value = rec.Optimistic
	}
	// Derived views go stale first; the mutated key itself is then written
	// (or deleted) so the confirmed entry stays fresh.
	for _, related := range m.Related {
		c.store.Invalidate(related)
	}
	if m.InvalidateCollection {
		c.store.InvalidateCollection(m.Key.Collection())
	}
	if m.Commit.Method == "DELETE" {
		c.store.Delete(m.Key)
	} else {
		c.store.Write(m.Key, value, c.now())
	}
	rec.Confirmed = value
	rec.Outcome = Committed
	c.mu.Unlock()

	if c.debug {
		c.logger.Debug("Mutate: committed", "key", canonical, "requestId", rec.RequestID)
	}
	if c.OnSettle != nil {
		c.OnSettle(rec)
	}
	return rec, nil
}

// PendingFor reports whether a mutation is in flight for the key.
func (c *Coordinator) PendingFor(key types.ResourceKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[key.Canonical()]
	return ok
}

func cloneRaw(v json.RawMessage) json.RawMessage {
	if v == nil {
		return nil
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out
}

// errorInfo flattens a commit error into the entry-level error shape,
// preserving the server's concrete message for user display.
func errorInfo(err error) *cache.ErrorInfo {
	var te *fetch.Error
	if errors.As(err, &te) {
		return &cache.ErrorInfo{
			Kind:       te.Kind.String(),
			Message:    te.Message,
			StatusCode: te.StatusCode,
		}
	}
	return &cache.ErrorInfo{Kind: "unknown", Message: err.Error()}
}
