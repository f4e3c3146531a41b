package cache

import (
	"testing"

	"github.com/bookline/resync/types"
)

func TestMapStoreBasicOperations(t *testing.T) {
	s := NewMapStore()
	defer s.Close()

	entry := Entry{Key: types.CollectionKey("bookings"), Status: StatusFresh}
	s.Set("bookings", entry)

	got, found := s.Get("bookings")
	if !found {
		t.Fatal("Entry should be found")
	}
	if got.Status != StatusFresh {
		t.Errorf("Expected fresh status, got %s", got.Status)
	}

	s.Delete("bookings")
	if _, found := s.Get("bookings"); found {
		t.Error("Entry should be gone after delete")
	}
}

func TestMapStoreClear(t *testing.T) {
	s := NewMapStore()
	defer s.Close()

	s.Set("a", Entry{})
	s.Set("b", Entry{})
	s.Clear()

	if _, found := s.Get("a"); found {
		t.Error("Clear should remove all entries")
	}
	if m := s.Metrics(); m.Size != 0 {
		t.Errorf("Expected size 0, got %d", m.Size)
	}
}

func TestMapStoreMetricsCount(t *testing.T) {
	s := NewMapStore()
	defer s.Close()

	s.Set("x", Entry{})
	s.Get("x")
	s.Get("missing")

	m := s.Metrics()
	if m.Hits != 1 {
		t.Errorf("Expected 1 hit, got %d", m.Hits)
	}
	if m.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", m.Misses)
	}
}

func TestMapStoreFactory(t *testing.T) {
	factory := NewMapStoreFactory()
	s, err := factory.Create()
	if err != nil {
		t.Fatalf("Factory create failed: %v", err)
	}
	defer s.Close()

	if !s.Set("k", Entry{}) {
		t.Error("Set should succeed")
	}
}
