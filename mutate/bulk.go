package mutate

import (
	"context"

	"github.com/bookline/resync/cache"
	"github.com/bookline/resync/types"
)

// ItemOutcome is the per-identifier result of a bulk operation.
type ItemOutcome struct {
	TargetID  string
	Succeeded bool
	Err       *cache.ErrorInfo
}

// BulkOutcome aggregates a bulk operation. Outcomes preserve the input order
// of the identifiers. The aggregate is informational: no compensating
// rollback happens across items, and partial failure is reported item by
// item, never collapsed into blanket success.
type BulkOutcome struct {
	TotalRequested int
	SucceededCount int
	FailedCount    int
	Outcomes       []ItemOutcome
}

// PartialFailure reports whether some, but not all, items failed.
func (b BulkOutcome) PartialFailure() bool {
	return b.FailedCount > 0 && b.SucceededCount > 0
}

// ActionBuilder produces the mutation for one identifier of a bulk
// operation.
type ActionBuilder func(id string) Mutation

// Executor fans a single logical action out over a set of resource
// identifiers. Each identifier is an independent coordinator invocation;
// one item's failure does not abort the rest (best-effort, all-attempted).
type Executor struct {
	coordinator *Coordinator
}

// NewExecutor creates a bulk executor on top of a coordinator.
func NewExecutor(coordinator *Coordinator) *Executor {
	return &Executor{coordinator: coordinator}
}

// ExecuteBulk applies the action to every identifier in order and collects
// per-item outcomes. Context cancellation stops issuing new items; items
// already attempted keep their outcomes and the remainder are reported as
// failed with the cancellation error.
func (e *Executor) ExecuteBulk(ctx context.Context, ids []string, action ActionBuilder) BulkOutcome {
	outcome := BulkOutcome{
		TotalRequested: len(ids),
		Outcomes:       make([]ItemOutcome, 0, len(ids)),
	}

	cancelled := false
	for _, id := range ids {
		if cancelled || ctx.Err() != nil {
			cancelled = true
			outcome.FailedCount++
			outcome.Outcomes = append(outcome.Outcomes, ItemOutcome{
				TargetID: id,
				Err:      &cache.ErrorInfo{Kind: "cancelled", Message: context.Cause(ctx).Error()},
			})
			continue
		}

		rec, err := e.coordinator.Mutate(ctx, action(id))
		if err != nil {
			outcome.FailedCount++
			item := ItemOutcome{TargetID: id}
			if rec != nil && rec.Err != nil {
				item.Err = rec.Err
			} else {
				item.Err = &cache.ErrorInfo{Kind: "unknown", Message: err.Error()}
			}
			outcome.Outcomes = append(outcome.Outcomes, item)
			continue
		}

		outcome.SucceededCount++
		outcome.Outcomes = append(outcome.Outcomes, ItemOutcome{TargetID: id, Succeeded: true})
	}

	return outcome
}

// BulkKeys derives per-item resource keys for a collection, one per
// identifier. Convenience for callers building ActionBuilders.
func BulkKeys(collection string, ids []string) []types.ResourceKey {
	keys := make([]types.ResourceKey, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, types.NewResourceKey(collection, map[string]types.Param{
			"id": types.StringParam(id),
		}))
	}
	return keys
}
