package resync

import (
	"github.com/bookline/resync/cache"
	"github.com/bookline/resync/mutate"
)

// ErrInvalidConfig is returned when the client configuration is invalid.
var ErrInvalidConfig = cache.ErrInvalidConfig

// ErrConcurrentMutation is returned when a mutation is requested for a key
// that already has one in flight.
var ErrConcurrentMutation = mutate.ErrConcurrentMutation

// ErrStoreClosed is returned when operations are performed on a closed
// cache store.
var ErrStoreClosed = cache.ErrStoreClosed
