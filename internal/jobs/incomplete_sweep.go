// Package jobs hosts the River-backed periodic work the aggregator runs
// outside the request path: the sweep that synthesizes terminal events for
// tasks left dangling by an ungraceful run termination.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"aggregatord.io/aggregator/internal/aggregate"
	"aggregatord.io/aggregator/internal/pkg/logger"
)

// IncompleteSweepArgs is a periodic job that scans the task store for
// incomplete tasks and feeds synthesized terminal events back into the
// aggregator (spec §4.F GenerateIncompleteEvents).
type IncompleteSweepArgs struct{}

// Kind returns the job kind identifier for the incomplete-event sweep.
func (IncompleteSweepArgs) Kind() string { return "incomplete_sweep" }

// InsertOpts ensures at most one sweep is queued within the same 10-second
// window, so a slow sweep doesn't pile up duplicate runs behind it.
func (IncompleteSweepArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: 10 * time.Second,
			ByQueue:  true,
		},
	}
}

// IncompleteSweepWorker runs GenerateIncompleteEvents against the shared
// Aggregator and re-applies the resulting events. Each dangling task gets
// the synthesized event type copied into its type field and, when it had
// none, a synthesized actual_runtime; its state field is left unchanged,
// since the synthesized types are not runstate event types.
type IncompleteSweepWorker struct {
	river.WorkerDefaults[IncompleteSweepArgs]
	aggregator *aggregate.Aggregator
}

// NewIncompleteSweepWorker creates a sweep worker bound to aggregator.
func NewIncompleteSweepWorker(aggregator *aggregate.Aggregator) *IncompleteSweepWorker {
	return &IncompleteSweepWorker{aggregator: aggregator}
}

// Work runs one sweep pass.
func (w *IncompleteSweepWorker) Work(ctx context.Context, _ *river.Job[IncompleteSweepArgs]) error {
	if w == nil || w.aggregator == nil {
		return fmt.Errorf("incomplete sweep worker is not initialized")
	}

	events, err := w.aggregator.GenerateIncompleteEvents(ctx)
	if err != nil {
		return fmt.Errorf("generate incomplete events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	changeSets, err := w.aggregator.AggregateEvents(ctx, events)
	if err != nil {
		return fmt.Errorf("aggregate synthesized incomplete events: %w", err)
	}

	logger.Info("incomplete sweep completed",
		zap.Int("synthesized_events", len(events)),
		zap.Int("tasks_changed", len(changeSets)),
	)
	return nil
}

// NewPeriodicJob builds the river.PeriodicJob registration for the sweep,
// run at every interval and once at startup so a restart doesn't have to
// wait a full interval before dangling tasks are swept.
func NewPeriodicJob(interval time.Duration) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return IncompleteSweepArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}
