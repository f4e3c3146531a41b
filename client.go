package resync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bookline/resync/cache"
	"github.com/bookline/resync/diff"
	"github.com/bookline/resync/fetch"
	"github.com/bookline/resync/monitor"
	"github.com/bookline/resync/mutate"
	"github.com/bookline/resync/relay"
	"github.com/bookline/resync/types"
)

// ErrClientClosed is returned when operations are performed on a closed
// client.
var ErrClientClosed = errors.New("resync: client is closed")

// Client is the process-wide sync facade: cached reads, optimistic
// mutations, bulk actions, and live polling monitors against one resource
// API. Construct it once at startup and close it at shutdown; Close stops
// every monitor the client spawned.
type Client struct {
	store       *cache.Store
	fetcher     *fetch.Client
	coordinator *mutate.Coordinator
	bulk        *mutate.Executor
	relay       relay.Relay
	retry       fetch.RetryPolicy
	logger      cache.Logger
	debug       bool
	instanceID  string
	onError     func(error)

	// group collapses concurrent read-throughs for the same key into one
	// round trip; later readers attach to the in-flight call.
	group singleflight.Group

	mu       sync.Mutex
	monitors []*monitor.Monitor
	closed   int32
}

func newClient(cfg Config) (*Client, error) {
	if cfg.InstanceID == "" || cfg.BaseURL == "" {
		return nil, cache.ErrInvalidConfig
	}
	if cfg.Logger == nil {
		cfg.Logger = cache.NewNoOpLogger()
	}
	if cfg.Marshaller == nil {
		cfg.Marshaller = cache.NewJSONMarshaller()
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = fetch.DefaultRetryPolicy()
	}

	storeOpts := cache.DefaultOptions()
	storeOpts.InstanceID = cfg.InstanceID
	if cfg.FreshFor > 0 {
		storeOpts.FreshFor = cfg.FreshFor
	}
	if cfg.MaxCachedQueries > 0 {
		storeOpts.EntryStoreConfig.MaxEntries = cfg.MaxCachedQueries
	}
	storeOpts.EntryStoreFactory = cfg.EntryStoreFactory
	storeOpts.Logger = cfg.Logger
	storeOpts.DebugMode = cfg.DebugMode
	storeOpts.OnError = cfg.OnError

	store, err := cache.NewStore(storeOpts)
	if err != nil {
		return nil, err
	}

	fetcher, err := fetch.NewClient(fetch.ClientConfig{
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.RequestTimeout,
		HTTPClient: cfg.HTTPClient,
		Marshaller: cfg.Marshaller,
		Logger:     cfg.Logger,
		DebugMode:  cfg.DebugMode,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	rly := cfg.Relay
	if rly == nil {
		if cfg.RedisAddr != "" {
			redisRelay, err := relay.NewRedisRelay(relay.RedisConfig{
				Addr:       cfg.RedisAddr,
				Password:   cfg.RedisPassword,
				DB:         cfg.RedisDB,
				Channel:    cfg.RelayChannel,
				InstanceID: cfg.InstanceID,
			})
			if err != nil {
				store.Close()
				return nil, err
			}
			rly = redisRelay
		} else {
			rly = relay.NewNoopRelay()
		}
	}

	c := &Client{
		store:      store,
		fetcher:    fetcher,
		relay:      rly,
		retry:      cfg.Retry,
		logger:     cfg.Logger,
		debug:      cfg.DebugMode,
		instanceID: cfg.InstanceID,
		onError:    cfg.OnError,
	}

	c.coordinator = mutate.NewCoordinator(store, fetcher, cfg.Logger, cfg.DebugMode)
	c.coordinator.OnSettle = c.settled
	c.bulk = mutate.NewExecutor(c.coordinator)

	rly.OnNotice(c.received)
	if err := rly.Subscribe(context.Background()); err != nil {
		store.Close()
		return nil, err
	}

	return c, nil
}

// Cached returns the current cache entry synchronously. It never blocks and
// never issues a fetch; pair it with Resource or Refetch for read-through,
// or use CachedRefresh for stale-while-revalidate.
func (c *Client) Cached(key types.ResourceKey) cache.Entry {
	return c.store.Read(key)
}

// CachedRefresh serves stale-while-revalidate: it returns the current entry
// immediately like Cached and, when that entry is not Fresh, starts a
// background fetch so a later read observes newer data. The store's
// single-flight guard keeps a refresh already in progress from duplicating.
func (c *Client) CachedRefresh(key types.ResourceKey) cache.Entry {
	entry := c.store.Read(key)
	if entry.Status != cache.StatusFresh && atomic.LoadInt32(&c.closed) == 0 {
		go c.await(context.Background(), key)
	}
	return entry
}

// Resource serves a read-through: a Fresh entry returns instantly, anything
// else (absent, stale, errored) fetches from the resource API. Concurrent
// callers for the same key share a single round trip.
func (c *Client) Resource(ctx context.Context, key types.ResourceKey) (cache.Entry, error) {
	if atomic.LoadInt32(&c.closed) != 0 {
		return cache.Entry{}, ErrClientClosed
	}

	entry := c.store.Read(key)
	if entry.Status == cache.StatusFresh {
		return entry, nil
	}
	// Absent, stale, errored, or already fetching: attach to (or start) the
	// single in-flight fetch for the key.
	return c.await(ctx, key)
}

// Refetch forces a refresh regardless of freshness.
func (c *Client) Refetch(ctx context.Context, key types.ResourceKey) (cache.Entry, error) {
	if atomic.LoadInt32(&c.closed) != 0 {
		return cache.Entry{}, ErrClientClosed
	}
	c.store.Invalidate(key)
	return c.await(ctx, key)
}

// Invalidate marks the key stale so the next read-through refetches.
func (c *Client) Invalidate(key types.ResourceKey) {
	c.store.Invalidate(key)
}

// InvalidateCollection marks every cached query of a collection stale.
func (c *Client) InvalidateCollection(collection string) {
	c.store.InvalidateCollection(collection)
}

// await funnels concurrent readers of one key into a single fetch.
func (c *Client) await(ctx context.Context, key types.ResourceKey) (cache.Entry, error) {
	result, err, _ := c.group.Do(key.Canonical(), func() (any, error) {
		return c.fetchOnce(ctx, key)
	})
	entry, _ := result.(cache.Entry)
	return entry, err
}

// fetchOnce performs one guarded fetch for the key and settles the store.
func (c *Client) fetchOnce(ctx context.Context, key types.ResourceKey) (cache.Entry, error) {
	requestID, ok := c.store.BeginFetch(key)
	if !ok {
		// A fetch registered outside this call is outstanding; serve the
		// current entry rather than starting a duplicate.
		return c.store.Read(key), nil
	}

	body, err := c.retry.Do(ctx, func(ctx context.Context) (json.RawMessage, error) {
		return c.execute(ctx, key)
	})
	if err != nil {
		c.store.FailFetch(key, requestID, errorInfo(err))
		if c.onError != nil {
			c.onError(err)
		}
		return c.store.Read(key), err
	}

	c.store.CompleteFetch(key, requestID, body, time.Now())
	return c.store.Read(key), nil
}

// execute issues the round trip for a key. Keys carrying an "id" parameter
// address a single resource; all other keys are list queries whose response
// envelope is validated before anything reaches the cache.
func (c *Client) execute(ctx context.Context, key types.ResourceKey) (json.RawMessage, error) {
	if id, ok := key.Param("id"); ok {
		return c.fetcher.Execute(ctx, fetch.Get(key.Collection(), id.Value()))
	}

	body, err := c.fetcher.Execute(ctx, fetch.List(key))
	if err != nil {
		return nil, err
	}
	if _, err := fetch.ParseEnvelope(body); err != nil {
		return nil, err
	}
	return body, nil
}

// Mutate runs one optimistic mutation: optimistic apply, commit round trip,
// then confirm or byte-exact rollback. At most one in-flight mutation per
// key; a second call returns ErrConcurrentMutation immediately.
func (c *Client) Mutate(ctx context.Context, m Mutation) (*mutate.Record, error) {
	if atomic.LoadInt32(&c.closed) != 0 {
		return nil, ErrClientClosed
	}
	return c.coordinator.Mutate(ctx, m)
}

// MutationPending reports whether a mutation is in flight for the key.
// Callers use it to disable the triggering control instead of queueing.
func (c *Client) MutationPending(key types.ResourceKey) bool {
	return c.coordinator.PendingFor(key)
}

// BulkUpdate applies a PATCH with the given fields to every identifier,
// each as an independent optimistic mutation. Partial failure is reported
// per item in input order, never collapsed.
func (c *Client) BulkUpdate(ctx context.Context, collection string, ids []string, fields map[string]any) (mutate.BulkOutcome, error) {
	if atomic.LoadInt32(&c.closed) != 0 {
		return mutate.BulkOutcome{}, ErrClientClosed
	}

	outcome := c.bulk.ExecuteBulk(ctx, ids, func(id string) mutate.Mutation {
		key := itemKey(collection, id)
		return mutate.Mutation{
			Key:                  key,
			Optimistic:           c.optimisticPatch(key, fields),
			Commit:               fetch.Update(collection, id, fields),
			InvalidateCollection: true,
		}
	})
	return outcome, nil
}

// BulkDelete deletes every identifier, each as an independent mutation.
func (c *Client) BulkDelete(ctx context.Context, collection string, ids []string) (mutate.BulkOutcome, error) {
	if atomic.LoadInt32(&c.closed) != 0 {
		return mutate.BulkOutcome{}, ErrClientClosed
	}

	outcome := c.bulk.ExecuteBulk(ctx, ids, func(id string) mutate.Mutation {
		key := itemKey(collection, id)
		return mutate.Mutation{
			Key:                  key,
			Optimistic:           c.store.Read(key).Value,
			Commit:               fetch.Delete(collection, id),
			InvalidateCollection: true,
		}
	})
	return outcome, nil
}

// MonitorConfig configures a live polling monitor bound to a key.
type MonitorConfig struct {
	// Key addresses the aggregate endpoint to poll, e.g. a counts-by-status
	// query for the bookings collection.
	Key types.ResourceKey

	// Interval is the polling cadence.
	Interval time.Duration

	// OnTransition receives every non-Unchanged field transition between
	// successive snapshots. Translating transitions into user-facing
	// notifications is the caller's concern.
	OnTransition func(t diff.Transition)

	// OnError receives tick failures; polling continues regardless.
	OnError func(err error)
}

// NewMonitor creates and starts a polling monitor. The client stops all of
// its monitors on Close; callers may also stop each one individually.
func (c *Client) NewMonitor(cfg MonitorConfig) (*monitor.Monitor, error) {
	if atomic.LoadInt32(&c.closed) != 0 {
		return nil, ErrClientClosed
	}

	m, err := monitor.New(monitor.Config{
		Interval:     cfg.Interval,
		Source:       c.snapshotSource(cfg.Key),
		OnTransition: cfg.OnTransition,
		OnError:      cfg.OnError,
		Logger:       c.logger,
		DebugMode:    c.debug,
	})
	if err != nil {
		return nil, err
	}
	if err := m.Start(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.monitors = append(c.monitors, m)
	c.mu.Unlock()

	return m, nil
}

// snapshotSource builds a monitor source for a key. Aggregate endpoints
// answer with a flat object of counters; list endpoints wrap one in the
// usual envelope, so both shapes are accepted.
func (c *Client) snapshotSource(key types.ResourceKey) monitor.Source {
	req := fetch.List(key)
	return func(ctx context.Context) (*diff.Snapshot, error) {
		body, err := c.fetcher.Execute(ctx, req)
		if err != nil {
			return nil, err
		}
		if snapshot, err := diff.FromJSON(body); err == nil {
			return snapshot, nil
		}
		envelope, err := fetch.ParseEnvelope(body)
		if err != nil {
			return nil, err
		}
		return diff.FromJSON(envelope.Data)
	}
}

// Stats returns cache store statistics.
func (c *Client) Stats() cache.Stats {
	return c.store.Stats()
}

// Close tears the client down: every monitor is stopped, the relay and the
// store are closed. Idempotent.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}

	c.mu.Lock()
	monitors := c.monitors
	c.monitors = nil
	c.mu.Unlock()

	for _, m := range monitors {
		m.Stop()
	}

	var errs []error
	if err := c.relay.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// settled publishes invalidation notices for committed mutations so sibling
// instances refetch. Rollbacks publish nothing: the cache was restored to a
// value siblings already agree on.
func (c *Client) settled(rec *mutate.Record) {
	if rec.Outcome != mutate.Committed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	notice := types.InvalidationNotice{
		Key:    rec.Key.Canonical(),
		Sender: c.instanceID,
		Action: types.NoticeInvalidate,
	}
	if err := c.relay.Publish(ctx, notice); err != nil {
		if c.debug {
			c.logger.Warn("relay publish failed", "key", notice.Key, "error", err)
		}
		if c.onError != nil {
			c.onError(err)
		}
	}
}

// received applies a sibling instance's invalidation notice.
func (c *Client) received(notice types.InvalidationNotice) {
	switch notice.Action {
	case types.NoticeClear:
		c.store.Clear()
	default:
		c.store.InvalidateCanonical(notice.Key)
	}
}

// errorInfo flattens a fetch error into the entry-level error shape.
func errorInfo(err error) cache.ErrorInfo {
	var te *fetch.Error
	if errors.As(err, &te) {
		return cache.ErrorInfo{
			Kind:       te.Kind.String(),
			Message:    te.Message,
			StatusCode: te.StatusCode,
		}
	}
	return cache.ErrorInfo{Kind: "unknown", Message: err.Error()}
}

// optimisticPatch merges patch fields into the cached value to predict the
// post-mutation record. With no cached value the fields themselves are the
// best available guess.
func (c *Client) optimisticPatch(key types.ResourceKey, fields map[string]any) json.RawMessage {
	entry := c.store.Read(key)
	merged := make(map[string]any)
	if entry.HasValue() {
		if err := json.Unmarshal(entry.Value, &merged); err != nil {
			merged = make(map[string]any)
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return entry.Value
	}
	return out
}

func itemKey(collection, id string) types.ResourceKey {
	return types.NewResourceKey(collection, map[string]types.Param{
		"id": types.StringParam(id),
	})
}
