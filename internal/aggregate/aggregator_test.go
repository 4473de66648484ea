package aggregate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"aggregatord.io/aggregator/internal/store/memory"
)

func newTestAggregator() (*Aggregator, *memory.Store) {
	states := DefaultRunStates()
	cfg := NewConfig(DefaultFieldTable(states))
	store := memory.New()
	return NewAggregator(cfg, states, store), store
}

func TestAggregateEvent_SingleStartedEventBecomesRoot(t *testing.T) {
	agg, store := newTestAggregator()
	ctx := context.Background()

	changes, err := agg.AggregateEvent(ctx, Event{
		"uuid": "root", "type": "task-started", "parent_id": nil, "long_name": "pkg.root_task",
	})
	require.NoError(t, err)
	require.Contains(t, changes, "root")

	task, ok, err := store.Get(ctx, "root")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, task["task_num"])
	require.Equal(t, "root_task", task["name"])
	require.Equal(t, "task-started", task["state"])

	complete, err := agg.IsRootComplete(ctx)
	require.NoError(t, err)
	require.False(t, complete)
}

func TestAggregateEvent_RevokeBeforeAnyEventIsDropped(t *testing.T) {
	agg, store := newTestAggregator()
	ctx := context.Background()

	changes, err := agg.AggregateEvent(ctx, Event{"uuid": "unseen", "type": RevokedEventType})
	require.NoError(t, err)
	require.Empty(t, changes)

	exists, err := store.Exists(ctx, "unseen")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestAggregateEvent_RevokeCompleteCanonicalizesAndLaterStateWins(t *testing.T) {
	agg, store := newTestAggregator()
	ctx := context.Background()

	_, err := agg.AggregateEvent(ctx, Event{"uuid": "a", "type": "task-started", "parent_id": nil})
	require.NoError(t, err)

	_, err = agg.AggregateEvent(ctx, Event{"uuid": "a", "type": RevokeCompleteEventType})
	require.NoError(t, err)

	task, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, RevokedEventType, task["state"])

	// state is an overwrite field, not merge or keep-initial: a later
	// event always wins regardless of what state preceded it.
	_, err = agg.AggregateEvent(ctx, Event{"uuid": "a", "type": "task-started"})
	require.NoError(t, err)

	task, _, err = store.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "task-started", task["state"])
}

func TestAggregateEvent_TaskNumbersAreMonotonicAcrossInserts(t *testing.T) {
	agg, store := newTestAggregator()
	ctx := context.Background()

	_, err := agg.AggregateEvent(ctx, Event{"uuid": "a", "type": "task-received", "parent_id": nil})
	require.NoError(t, err)
	_, err = agg.AggregateEvent(ctx, Event{"uuid": "b", "type": "task-received", "parent_id": "a"})
	require.NoError(t, err)

	taskA, _, _ := store.Get(ctx, "a")
	taskB, _, _ := store.Get(ctx, "b")
	require.Equal(t, 1, taskA["task_num"])
	require.Equal(t, 2, taskB["task_num"])
}

func TestAggregateEvent_MissingUUIDYieldsEmptyChangeSet(t *testing.T) {
	agg, _ := newTestAggregator()

	changes, err := agg.AggregateEvent(context.Background(), Event{"type": "task-started"})
	require.NoError(t, err)
	require.Empty(t, changes)
}

func TestAggregateEvents_FoldsBatchMergingPerUUID(t *testing.T) {
	agg, store := newTestAggregator()
	ctx := context.Background()

	changes, err := agg.AggregateEvents(ctx, []Event{
		{"uuid": "a", "type": "task-received", "parent_id": nil, "hostname": "worker-1"},
		{"uuid": "a", "type": "task-started"},
	})
	require.NoError(t, err)
	require.Contains(t, changes, "a")

	task, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "task-started", task["state"])
	require.Equal(t, "worker-1", task["hostname"])
}

func TestAreAllTasksComplete_FalseUntilRootCompletes(t *testing.T) {
	agg, _ := newTestAggregator()
	ctx := context.Background()

	_, err := agg.AggregateEvent(ctx, Event{"uuid": "root", "type": "task-started", "parent_id": nil})
	require.NoError(t, err)

	complete, err := agg.AreAllTasksComplete(ctx)
	require.NoError(t, err)
	require.False(t, complete)

	_, err = agg.AggregateEvent(ctx, Event{"uuid": "root", "type": "task-succeeded", "actual_runtime": 1.0})
	require.NoError(t, err)

	complete, err = agg.AreAllTasksComplete(ctx)
	require.NoError(t, err)
	require.True(t, complete)
}

func TestAreAllTasksComplete_FalseWhenChildStillIncomplete(t *testing.T) {
	agg, _ := newTestAggregator()
	ctx := context.Background()

	_, err := agg.AggregateEvent(ctx, Event{"uuid": "root", "type": "task-succeeded", "parent_id": nil, "actual_runtime": 1.0})
	require.NoError(t, err)
	_, err = agg.AggregateEvent(ctx, Event{"uuid": "child", "type": "task-started", "parent_id": "root"})
	require.NoError(t, err)

	complete, err := agg.AreAllTasksComplete(ctx)
	require.NoError(t, err)
	require.False(t, complete)
}

type fixedClock struct{ seconds float64 }

func (c fixedClock) NowSeconds() float64 { return c.seconds }

func TestGenerateIncompleteEvents_SynthesizesIncompleteForDanglingTask(t *testing.T) {
	states := DefaultRunStates()
	cfg := NewConfig(DefaultFieldTable(states))
	store := memory.New()
	agg := NewAggregator(cfg, states, store, WithClock(fixedClock{seconds: 1000}))
	ctx := context.Background()

	_, err := agg.AggregateEvent(ctx, Event{"uuid": "a", "type": "task-started", "parent_id": nil})
	require.NoError(t, err)

	events, err := agg.GenerateIncompleteEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "a", events[0]["uuid"])
	require.Equal(t, IncompleteEventType, events[0]["type"])
	require.Equal(t, 0.0, events[0]["actual_runtime"])
}

func TestGenerateIncompleteEvents_UsesFirstStartedAsBaseline(t *testing.T) {
	states := DefaultRunStates()
	cfg := NewConfig(DefaultFieldTable(states))
	store := memory.New()
	agg := NewAggregator(cfg, states, store, WithClock(fixedClock{seconds: 1000}))
	ctx := context.Background()

	_, err := agg.AggregateEvent(ctx, Event{
		"uuid": "a", "type": "task-started", "parent_id": nil, "local_received": 900.0,
	})
	require.NoError(t, err)

	events, err := agg.GenerateIncompleteEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, 100.0, events[0]["actual_runtime"])
}

func TestGenerateIncompleteEvents_SkipsTaskWithActualRuntimeSet(t *testing.T) {
	states := DefaultRunStates()
	cfg := NewConfig(DefaultFieldTable(states))
	store := memory.New()
	agg := NewAggregator(cfg, states, store)
	ctx := context.Background()

	_, err := agg.AggregateEvent(ctx, Event{"uuid": "a", "type": "task-succeeded", "parent_id": nil})
	require.NoError(t, err)
	require.NoError(t, store.Update(ctx, "a", ChangeSet{"actual_runtime": 5.0}))

	events, err := agg.GenerateIncompleteEvents(ctx)
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestGenerateIncompleteEvents_CompletedStateGetsCompletedEventType(t *testing.T) {
	states := DefaultRunStates()
	cfg := NewConfig(DefaultFieldTable(states))
	store := memory.New()
	agg := NewAggregator(cfg, states, store, WithClock(fixedClock{seconds: 10}))
	ctx := context.Background()

	_, err := agg.AggregateEvent(ctx, Event{"uuid": "a", "type": "task-succeeded", "parent_id": nil})
	require.NoError(t, err)

	events, err := agg.GenerateIncompleteEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, CompletedEventType, events[0]["type"])
}
