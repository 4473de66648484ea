package aggregate

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Option configures an Aggregator at construction time.
type Option func(*Aggregator)

// WithClock overrides the time source used by GenerateIncompleteEvents.
func WithClock(clock Clock) Option {
	return func(a *Aggregator) { a.clock = clock }
}

// WithLogger attaches a structured logger. A nil logger (the default)
// disables per-event logging.
func WithLogger(log *zap.Logger) Option {
	return func(a *Aggregator) { a.log = log }
}

// Aggregator orchestrates the field policy registry, deep merge, event
// normalizer, and change detector across an event stream (spec §4.F). It
// tracks the root task and allocates monotonically increasing task numbers.
//
// All exported methods take the same mutex, so a single Aggregator may be
// shared across goroutines: the task store and the two instance scalars
// (task number counter, root uuid) are the only mutable shared state, and
// task-number assignment always happens under the same lock as the insert
// that consumes it (spec §5).
type Aggregator struct {
	mu sync.Mutex

	newTaskNum int
	rootUUID   string
	hasRoot    bool

	cfg    Config
	states RunStates
	store  TaskStore
	clock  Clock
	log    *zap.Logger
}

// NewAggregator builds an Aggregator over the given config, runstate
// vocabulary, and store. Task numbering starts at 1.
func NewAggregator(cfg Config, states RunStates, store TaskStore, opts ...Option) *Aggregator {
	a := &Aggregator{
		newTaskNum: 1,
		cfg:        cfg,
		states:     states,
		store:      store,
		clock:      SystemClock{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AggregateEvents folds AggregateEvent over the sequence, merging per-event
// change-sets per uuid by map update (later events win for scalar keys
// within the same batch).
func (a *Aggregator) AggregateEvents(ctx context.Context, events []Event) (map[string]ChangeSet, error) {
	combined := make(map[string]ChangeSet)
	for _, e := range events {
		perEvent, err := a.AggregateEvent(ctx, e)
		if err != nil {
			return nil, err
		}
		for uuid, cs := range perEvent {
			existing, ok := combined[uuid]
			if !ok {
				existing = make(ChangeSet, len(cs))
				combined[uuid] = existing
			}
			for k, v := range cs {
				existing[k] = v
			}
		}
	}
	return combined, nil
}

// AggregateEvent applies one event to the store, returning the resulting
// per-task change-set (spec §4.F). Malformed events are silently dropped
// and yield an empty map, not an error.
func (a *Aggregator) AggregateEvent(ctx context.Context, e Event) (map[string]ChangeSet, error) {
	uuid := e.UUID()

	a.mu.Lock()
	defer a.mu.Unlock()

	if uuid == "" {
		return map[string]ChangeSet{}, nil
	}

	exists, err := a.store.Exists(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if !exists && e.Type() == RevokedEventType {
		// A revoke for a uuid we've never seen: we'll never get any other
		// data (name, etc) for that task, so there's nothing to aggregate.
		if a.log != nil {
			a.log.Debug("dropping revoke for unknown task", zap.String("uuid", uuid))
		}
		return map[string]ChangeSet{}, nil
	}

	if !a.hasRoot {
		if v, present := e["parent_id"]; present && v == nil {
			a.rootUUID = uuid
			a.hasRoot = true
		}
	}

	proposed := Normalize(e, a.cfg)

	var task TaskRecord
	isNew := false
	if !exists {
		inserted, err := a.store.Insert(ctx, TaskRecord{
			"uuid":     uuid,
			"task_num": a.newTaskNum,
		})
		if err != nil {
			return nil, err
		}
		a.newTaskNum++ // only bump after insert succeeds
		task = inserted
		isNew = true
	} else {
		got, ok, err := a.store.Get(ctx, uuid)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Exists said true but Get came back empty: a store invariant
			// violation, not something the core retries or papers over.
			return nil, errNotFoundAfterExists(uuid)
		}
		task = got
	}

	delta := Diff(task, proposed, a.cfg.KeepInitialFields, a.cfg.MergeFields)

	if len(delta) > 0 {
		if err := a.store.Update(ctx, uuid, delta); err != nil {
			return nil, err
		}
	}

	var changeSet ChangeSet
	if isNew {
		merged := task.clone()
		for k, v := range delta {
			merged[k] = v
		}
		changeSet = ChangeSet(merged)
	} else {
		changeSet = delta
	}

	if a.log != nil {
		a.log.Debug("aggregated event",
			zap.String("uuid", uuid),
			zap.String("type", e.Type()),
			zap.Bool("is_new", isNew),
			zap.Int("changed_fields", len(changeSet)),
		)
	}

	return map[string]ChangeSet{uuid: changeSet}, nil
}

// IsRootComplete reports whether the root task (spec §3 invariant 3) exists
// and has reached a complete runstate.
func (a *Aggregator) IsRootComplete(ctx context.Context) (bool, error) {
	a.mu.Lock()
	rootUUID, hasRoot := a.rootUUID, a.hasRoot
	a.mu.Unlock()

	if !hasRoot {
		return false, nil
	}
	task, ok, err := a.store.Get(ctx, rootUUID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	state, _ := task["state"].(string)
	return a.states.IsComplete(state), nil
}

// AreAllTasksComplete short-circuits to false unless IsRootComplete, which
// avoids querying every incomplete task while the root is still running —
// in practice many tasks are expected to be incomplete until then.
func (a *Aggregator) AreAllTasksComplete(ctx context.Context) (bool, error) {
	rootComplete, err := a.IsRootComplete(ctx)
	if err != nil || !rootComplete {
		return false, err
	}
	incomplete, err := a.store.ListIncomplete(ctx, a.states)
	if err != nil {
		return false, err
	}
	return len(incomplete) == 0, nil
}

// GenerateIncompleteEvents scans the store for tasks left dangling by an
// ungraceful run termination and synthesizes terminal events for them
// (spec §4.F). The events are returned, not applied — the caller decides
// whether to feed them back into AggregateEvents.
func (a *Aggregator) GenerateIncompleteEvents(ctx context.Context) ([]Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	incomplete, err := a.store.ListIncomplete(ctx, a.states)
	if err != nil {
		return nil, err
	}

	now := a.clock.NowSeconds()
	events := make([]Event, 0, len(incomplete))
	for _, task := range incomplete {
		state, _ := task["state"].(string)
		eventType := IncompleteEventType
		if a.states.IsComplete(state) {
			eventType = CompletedEventType
		}

		newEvent := Event{
			"uuid": task["uuid"],
			"type": eventType,
		}

		if isUnset(task["actual_runtime"]) {
			base := now
			if fs, ok := toFloat(task["first_started"]); ok {
				base = fs
			}
			newEvent["actual_runtime"] = now - base
		}

		events = append(events, newEvent)
	}
	return events, nil
}

// errNotFoundAfterExists signals a TaskStore implementation bug: Exists
// returned true for uuid but Get could not find it. The aggregator core
// never recovers from this; it's a store precondition violation (spec §7).
func errNotFoundAfterExists(uuid string) error {
	return fmt.Errorf("task store: %q reported by Exists but missing from Get", uuid)
}

// isUnset mirrors the originating framework's falsy check for
// actual_runtime: absent, nil, or the zero value all count as unset.
func isUnset(v any) bool {
	if v == nil {
		return true
	}
	f, ok := toFloat(v)
	return ok && f == 0
}

// toFloat converts the numeric JSON-decoded kinds we expect to see for
// timestamp-like fields into a float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
