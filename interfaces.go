package resync

import (
	"github.com/bookline/resync/cache"
	"github.com/bookline/resync/diff"
	"github.com/bookline/resync/mutate"
	"github.com/bookline/resync/types"
)

// Logger is an alias for cache.Logger.
type Logger = cache.Logger

// Marshaller is an alias for cache.Marshaller.
type Marshaller = cache.Marshaller

// ResourceKey is an alias for types.ResourceKey.
type ResourceKey = types.ResourceKey

// Param is an alias for types.Param.
type Param = types.Param

// Entry is an alias for cache.Entry.
type Entry = cache.Entry

// Status is an alias for cache.Status.
type Status = cache.Status

// Entry status values.
const (
	StatusIdle     = cache.StatusIdle
	StatusFetching = cache.StatusFetching
	StatusFresh    = cache.StatusFresh
	StatusStale    = cache.StatusStale
	StatusError    = cache.StatusError
)

// Mutation is an alias for mutate.Mutation.
type Mutation = mutate.Mutation

// MutationRecord is an alias for mutate.Record.
type MutationRecord = mutate.Record

// BulkOutcome is an alias for mutate.BulkOutcome.
type BulkOutcome = mutate.BulkOutcome

// Snapshot is an alias for diff.Snapshot.
type Snapshot = diff.Snapshot

// Transition is an alias for diff.Transition.
type Transition = diff.Transition

// NewResourceKey creates a key for a collection with the given parameters.
func NewResourceKey(collection string, params map[string]Param) ResourceKey {
	return types.NewResourceKey(collection, params)
}

// CollectionKey creates a key with no parameters.
func CollectionKey(collection string) ResourceKey {
	return types.CollectionKey(collection)
}
