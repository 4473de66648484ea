package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"aggregatord.io/aggregator/internal/jobs"
	"aggregatord.io/aggregator/internal/pkg/logger"
)

// Start starts all background services: the River client when running
// against Postgres, or the in-process incomplete-event sweep loop when
// running against the memory store.
func (a *Application) Start(ctx context.Context) error {
	if a.DB != nil && a.DB.RiverClient != nil {
		if err := a.DB.RiverClient.Start(ctx); err != nil {
			return fmt.Errorf("start river client: %w", err)
		}
		logger.Info("River client started, jobs will now be consumed")
		return nil
	}

	go a.runSweepLoop(ctx) //nolint:naked-goroutine // dedicated background lifecycle loop.
	logger.Info("In-process incomplete sweep loop started", zap.Duration("every", a.sweepEvery))
	return nil
}

// Shutdown gracefully shuts down all application components.
func (a *Application) Shutdown() {
	shutdownCtx := context.Background()

	if a.stopSweep != nil {
		close(a.stopSweep)
	}

	if a.DB != nil && a.DB.RiverClient != nil {
		if err := a.DB.RiverClient.Stop(shutdownCtx); err != nil {
			logger.Error("failed to stop river client", zap.Error(err))
		}
		logger.Info("River client stopped")
	}

	if a.Pools != nil {
		a.Pools.Shutdown()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func (a *Application) runSweepLoop(ctx context.Context) {
	every := a.sweepEvery
	if every <= 0 {
		every = 30 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	sweepWorker := jobs.NewIncompleteSweepWorker(a.Aggregator)

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopSweep:
			return
		case <-ticker.C:
			err := a.Pools.SubmitDetached("sweep", func(taskCtx context.Context) {
				if err := sweepWorker.Work(taskCtx, nil); err != nil {
					logger.Warn("incomplete sweep failed", zap.Error(err))
				}
			})
			if err != nil {
				logger.Warn("incomplete sweep submission failed", zap.Error(err))
			}
		}
	}
}
