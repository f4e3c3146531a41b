package cache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/bookline/resync/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	opts := DefaultOptions()
	opts.InstanceID = "test-instance"
	s, err := NewStore(opts)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func bookingsKey() types.ResourceKey {
	return types.NewResourceKey("bookings", map[string]types.Param{
		"status": types.StringParam("pending"),
	})
}

func TestReadAbsentIsIdle(t *testing.T) {
	s := newTestStore(t)

	entry := s.Read(bookingsKey())
	if entry.Status != StatusIdle {
		t.Errorf("Expected idle status for absent key, got %s", entry.Status)
	}
	if entry.HasValue() {
		t.Error("Absent entry should carry no value")
	}
}

func TestWriteMakesFresh(t *testing.T) {
	s := newTestStore(t)
	key := bookingsKey()

	s.Write(key, json.RawMessage(`{"data":[]}`), time.Now())

	entry := s.Read(key)
	if entry.Status != StatusFresh {
		t.Fatalf("Expected fresh status after write, got %s", entry.Status)
	}
	if string(entry.Value) != `{"data":[]}` {
		t.Errorf("Unexpected value: %s", entry.Value)
	}
}

func TestFreshDecaysToStale(t *testing.T) {
	opts := DefaultOptions()
	opts.InstanceID = "test-instance"
	opts.FreshFor = time.Minute
	s, err := NewStore(opts)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	key := bookingsKey()
	fetchedAt := time.Now()
	s.Write(key, json.RawMessage(`{}`), fetchedAt)

	if got := s.Read(key).Status; got != StatusFresh {
		t.Fatalf("Expected fresh before TTL, got %s", got)
	}

	s.SetNow(func() time.Time { return fetchedAt.Add(2 * time.Minute) })
	if got := s.Read(key).Status; got != StatusStale {
		t.Errorf("Expected stale after TTL, got %s", got)
	}
}

func TestInvalidateMarksStale(t *testing.T) {
	s := newTestStore(t)
	key := bookingsKey()

	s.Write(key, json.RawMessage(`{}`), time.Now())
	s.Invalidate(key)

	entry := s.Read(key)
	if entry.Status != StatusStale {
		t.Errorf("Expected stale after invalidate, got %s", entry.Status)
	}
	if !entry.HasValue() {
		t.Error("Invalidation must not drop the cached value")
	}
}

func TestInvalidateUnknownKeyIsNoOp(t *testing.T) {
	s := newTestStore(t)
	s.Invalidate(bookingsKey())

	if got := s.Stats().Invalidations; got != 0 {
		t.Errorf("Expected no invalidations recorded, got %d", got)
	}
}

func TestBeginFetchSingleFlight(t *testing.T) {
	s := newTestStore(t)
	key := bookingsKey()

	id1, ok := s.BeginFetch(key)
	if !ok || id1 == "" {
		t.Fatal("First BeginFetch should succeed")
	}

	if _, ok := s.BeginFetch(key); ok {
		t.Fatal("Second BeginFetch must be rejected while one is in flight")
	}

	if got := s.Read(key).Status; got != StatusFetching {
		t.Errorf("Expected fetching status while in flight, got %s", got)
	}

	if !s.CompleteFetch(key, id1, json.RawMessage(`{}`), time.Now()) {
		t.Fatal("CompleteFetch with the tracked id should apply")
	}

	if _, ok := s.BeginFetch(key); !ok {
		t.Error("BeginFetch should succeed again after completion")
	}
}

func TestBeginFetchIndependentPerKey(t *testing.T) {
	s := newTestStore(t)
	a := types.CollectionKey("bookings")
	b := types.CollectionKey("agents")

	if _, ok := s.BeginFetch(a); !ok {
		t.Fatal("BeginFetch for first key should succeed")
	}
	if _, ok := s.BeginFetch(b); !ok {
		t.Error("In-flight fetch on one key must not block another key")
	}
}

func TestLateResponseDiscarded(t *testing.T) {
	s := newTestStore(t)
	key := bookingsKey()

	oldID, ok := s.BeginFetch(key)
	if !ok {
		t.Fatal("BeginFetch should succeed")
	}

	// A newer write supersedes the outstanding fetch.
	s.Write(key, json.RawMessage(`{"v":7}`), time.Now())

	if s.CompleteFetch(key, oldID, json.RawMessage(`{"v":5}`), time.Now()) {
		t.Fatal("Late response must be discarded")
	}

	entry := s.Read(key)
	if string(entry.Value) != `{"v":7}` {
		t.Errorf("Cache should keep the newer value, got %s", entry.Value)
	}
	if got := s.Stats().Discarded; got != 1 {
		t.Errorf("Expected 1 discarded response, got %d", got)
	}
}

func TestFailFetchKeepsValue(t *testing.T) {
	s := newTestStore(t)
	key := bookingsKey()

	s.Write(key, json.RawMessage(`{"v":1}`), time.Now())

	id, ok := s.BeginFetch(key)
	if !ok {
		t.Fatal("BeginFetch should succeed")
	}
	if !s.FailFetch(key, id, ErrorInfo{Kind: "network_unreachable", Message: "dial refused"}) {
		t.Fatal("FailFetch with the tracked id should apply")
	}

	entry := s.Read(key)
	if entry.Status != StatusError {
		t.Errorf("Expected error status, got %s", entry.Status)
	}
	if entry.Err == nil || entry.Err.Kind != "network_unreachable" {
		t.Errorf("Expected error info to be recorded, got %+v", entry.Err)
	}
	if string(entry.Value) != `{"v":1}` {
		t.Error("Stale value should survive a failed fetch")
	}
}

func TestInvalidateCollection(t *testing.T) {
	s := newTestStore(t)
	pending := types.NewResourceKey("bookings", map[string]types.Param{"status": types.StringParam("pending")})
	confirmed := types.NewResourceKey("bookings", map[string]types.Param{"status": types.StringParam("confirmed")})
	agents := types.CollectionKey("agents")

	now := time.Now()
	s.Write(pending, json.RawMessage(`{}`), now)
	s.Write(confirmed, json.RawMessage(`{}`), now)
	s.Write(agents, json.RawMessage(`{}`), now)

	s.InvalidateCollection("bookings")

	if got := s.Read(pending).Status; got != StatusStale {
		t.Errorf("Expected pending query stale, got %s", got)
	}
	if got := s.Read(confirmed).Status; got != StatusStale {
		t.Errorf("Expected confirmed query stale, got %s", got)
	}
	if got := s.Read(agents).Status; got != StatusFresh {
		t.Errorf("Other collections must be untouched, got %s", got)
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	s := newTestStore(t)
	key := bookingsKey()

	s.Write(key, json.RawMessage(`{}`), time.Now())
	s.Delete(key)

	if got := s.Read(key).Status; got != StatusIdle {
		t.Errorf("Expected idle after delete, got %s", got)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	opts := DefaultOptions()
	opts.InstanceID = "test-instance"
	s, err := NewStore(opts)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("First close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Second close failed: %v", err)
	}

	if _, ok := s.BeginFetch(bookingsKey()); ok {
		t.Error("BeginFetch on a closed store must be rejected")
	}
}

func TestOptionsValidate(t *testing.T) {
	opts := DefaultOptions()
	opts.InstanceID = ""
	if _, err := NewStore(opts); err == nil {
		t.Error("Expected error for empty instance id")
	}

	opts = DefaultOptions()
	opts.FreshFor = 0
	if _, err := NewStore(opts); err == nil {
		t.Error("Expected error for zero TTL")
	}

	opts = DefaultOptions()
	opts.EntryStoreConfig.MaxEntries = 0
	if _, err := NewStore(opts); err == nil {
		t.Error("Expected error for zero max entries")
	}
}
