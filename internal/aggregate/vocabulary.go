// Package aggregate folds a stream of task-lifecycle events into a durable,
// queryable task data model.
//
// Import Path: aggregatord.io/aggregator/internal/aggregate
package aggregate

// RevokedEventType is the canonical state a task settles into once a revoke
// has actually been observed, regardless of which producer reported it.
const RevokedEventType = "task-revoked"

// RevokeCompleteEventType is the event type emitted only once a revoke has
// truly finished server-side. The aggregator stores it as the
// RevokedEventType state (see CanonicalizeEventType); like any other state,
// it is replaced by a later state event for the same task.
const RevokeCompleteEventType = "firex-revoke-complete"

// IncompleteEventType and CompletedEventType are synthesized, non-transport
// event types produced by GenerateIncompleteEvents for tasks that never
// reached a terminal runstate because their run ended ungracefully.
const (
	IncompleteEventType = "task-incomplete"
	CompletedEventType  = "task-completed"
)

// RunStates partitions the canonical task runstates into complete and
// incomplete sets. Concrete membership is a framework concern supplied at
// configuration time (spec §4.G); DefaultRunStates below is one reasonable
// instantiation covering a typical worker-bus vocabulary.
type RunStates struct {
	Incomplete map[string]struct{}
	Complete   map[string]struct{}
}

// All returns the union of Incomplete and Complete.
func (r RunStates) All() map[string]struct{} {
	all := make(map[string]struct{}, len(r.Incomplete)+len(r.Complete))
	for s := range r.Incomplete {
		all[s] = struct{}{}
	}
	for s := range r.Complete {
		all[s] = struct{}{}
	}
	return all
}

// RunStateEventTypes returns the state-bearing event-type set:
// ALL_RUNSTATES ∪ {firex-revoke-complete}.
func (r RunStates) RunStateEventTypes() map[string]struct{} {
	types := r.All()
	types[RevokeCompleteEventType] = struct{}{}
	return types
}

// IsIncomplete reports whether state is a member of the incomplete set.
func (r RunStates) IsIncomplete(state string) bool {
	_, ok := r.Incomplete[state]
	return ok
}

// IsComplete reports whether state is a member of the complete set.
func (r RunStates) IsComplete(state string) bool {
	_, ok := r.Complete[state]
	return ok
}

// DefaultRunStates is a sensible default runstate vocabulary for a
// celery-style worker bus. Hosts with a different wire vocabulary should
// build their own RunStates and pass it to NewConfig / NewAggregator.
func DefaultRunStates() RunStates {
	return RunStates{
		Incomplete: setOf(
			"task-received",
			"task-started",
			"task-blocked",
			"task-unblocked",
		),
		Complete: setOf(
			"task-succeeded",
			"task-failed",
			RevokedEventType,
		),
	}
}

func setOf(items ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

// CanonicalizeEventType maps the revoke-complete event type to the plain
// revoked state; every other event type passes through unchanged. The
// revoke-complete event is the authoritative revoke signal (fired only on
// true completion) and therefore must not be distinguishable, in the stored
// state, from a plain task-revoked event.
func CanonicalizeEventType(eventType string) string {
	if eventType == RevokeCompleteEventType {
		return RevokedEventType
	}
	return eventType
}
