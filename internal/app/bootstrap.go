// Package app is the composition root: it wires config, logging, the
// aggregator core, a task store, the discovery registry, the JSON run
// reporter, and the HTTP surface into a runnable Application.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"aggregatord.io/aggregator/internal/aggregate"
	"aggregatord.io/aggregator/internal/api/handlers"
	"aggregatord.io/aggregator/internal/config"
	"aggregatord.io/aggregator/internal/discovery"
	"aggregatord.io/aggregator/internal/infrastructure"
	"aggregatord.io/aggregator/internal/jobs"
	"aggregatord.io/aggregator/internal/pkg/logger"
	"aggregatord.io/aggregator/internal/pkg/worker"
	"aggregatord.io/aggregator/internal/store/memory"
	"aggregatord.io/aggregator/internal/store/postgres"
)

// Application holds composed application dependencies.
type Application struct {
	Config     *config.Config
	Router     *gin.Engine
	DB         *infrastructure.DatabaseClients // nil when running the memory store
	Pools      *worker.Pools
	Aggregator *aggregate.Aggregator
	Registry   *discovery.Registry

	// sweepEvery and stopSweep drive the in-process incomplete-event sweep
	// loop used when no River client is available (the memory store has no
	// Postgres-backed job queue to schedule on).
	sweepEvery time.Duration
	stopSweep  chan struct{}
}

// Bootstrap initializes all dependencies.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize: cfg.Worker.GeneralPoolSize,
		SweepPoolSize:   cfg.Worker.SweepPoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("init worker pools: %w", err)
	}

	states := aggregate.DefaultRunStates()
	aggCfg := aggregate.NewConfig(aggregate.DefaultFieldTable(states))

	var (
		db    *infrastructure.DatabaseClients
		pool  *pgxpool.Pool
		store aggregate.TaskStore
	)
	switch cfg.Aggregator.Store {
	case "postgres":
		db, err = infrastructure.NewDatabaseClients(ctx, cfg.Database)
		if err != nil {
			pools.Shutdown()
			return nil, fmt.Errorf("init database: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := db.AutoMigrate(ctx); err != nil {
				db.Close()
				pools.Shutdown()
				return nil, fmt.Errorf("auto-migrate: %w", err)
			}
		}
		pool = db.Pool
		store = postgres.New(pool)
	default:
		store = memory.New()
	}

	aggregator := aggregate.NewAggregator(aggCfg, states, store, aggregate.WithLogger(zap.L()))

	registry := discovery.NewRegistry()
	if _, err := discovery.FindTaskBundles(registry, nil); err != nil {
		logger.Warn("task bundle discovery failed", zap.Error(err))
	}

	if db != nil {
		workers := river.NewWorkers()
		river.AddWorker(workers, jobs.NewIncompleteSweepWorker(aggregator))
		if err := db.InitRiverClient(workers, cfg.River); err != nil {
			db.Close()
			pools.Shutdown()
			return nil, fmt.Errorf("init river workers: %w", err)
		}
		db.RiverClient.PeriodicJobs().Add(jobs.NewPeriodicJob(cfg.Aggregator.IncompleteSweepEvery))
	}

	server := handlers.NewServer(handlers.ServerDeps{
		Aggregator: aggregator,
		Store:      store,
		Registry:   registry,
		Pools:      pools,
		Pool:       pool,
		ReportRoot: cfg.Aggregator.ReportRoot,
	})

	return &Application{
		Config:     cfg,
		Router:     newRouter(cfg, server),
		DB:         db,
		Pools:      pools,
		Aggregator: aggregator,
		Registry:   registry,
		sweepEvery: cfg.Aggregator.IncompleteSweepEvery,
		stopSweep:  make(chan struct{}),
	}, nil
}
