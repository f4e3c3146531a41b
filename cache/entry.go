package cache

import (
	"encoding/json"
	"time"

	"github.com/bookline/resync/types"
)

// Status describes the freshness state of a cache entry.
type Status int

// Entry status values. An entry moves Idle -> Fetching -> (Fresh | Error);
// Fresh decays to Stale when its time-to-live elapses or on explicit
// invalidation; Stale goes back to Fetching on the next read-through.
const (
	StatusIdle Status = iota
	StatusFetching
	StatusFresh
	StatusStale
	StatusError
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusFetching:
		return "fetching"
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ErrorInfo carries a transport or server failure attached to an entry.
type ErrorInfo struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
}

// Entry is the cached state for one ResourceKey. Values are kept as raw JSON
// so that mutation rollback can restore the pre-mutation bytes exactly.
type Entry struct {
	Key       types.ResourceKey
	Value     json.RawMessage
	FetchedAt time.Time
	Status    Status
	Err       *ErrorInfo
	RequestID string
}

// HasValue reports whether the entry holds data, fresh or not.
func (e Entry) HasValue() bool {
	return len(e.Value) > 0
}
