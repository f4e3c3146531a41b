// Package relay propagates cache invalidation notices between dashboard
// instances, so a mutation committed on one instance marks the affected
// queries stale on its siblings. Only key names travel over the wire; values
// are always refetched from the resource API by each instance.
package relay

import (
	"context"

	"github.com/bookline/resync/types"
)

// Relay defines the interface for cross-instance invalidation fan-out.
type Relay interface {
	// Subscribe starts listening for invalidation notices.
	Subscribe(ctx context.Context) error

	// Publish publishes an invalidation notice.
	Publish(ctx context.Context, notice types.InvalidationNotice) error

	// OnNotice registers a callback for received notices. Notices sent by
	// this instance are filtered out before dispatch.
	OnNotice(callback func(notice types.InvalidationNotice))

	// Close closes the relay.
	Close() error
}

// NoopRelay is the default relay for single-instance deployments: publishes
// vanish and nothing is ever received.
type NoopRelay struct{}

// NewNoopRelay creates a new no-op relay.
func NewNoopRelay() *NoopRelay {
	return &NoopRelay{}
}

// Subscribe is a no-op.
func (*NoopRelay) Subscribe(ctx context.Context) error { return nil }

// Publish is a no-op.
func (*NoopRelay) Publish(ctx context.Context, notice types.InvalidationNotice) error { return nil }

// OnNotice is a no-op.
func (*NoopRelay) OnNotice(callback func(notice types.InvalidationNotice)) {}

// Close is a no-op.
func (*NoopRelay) Close() error { return nil }
