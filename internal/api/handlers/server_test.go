package handlers

import (
	"context"
	"testing"

	"github.com/gin-gonic/gin"

	"aggregatord.io/aggregator/internal/aggregate"
	"aggregatord.io/aggregator/internal/discovery"
	"aggregatord.io/aggregator/internal/pkg/logger"
	"aggregatord.io/aggregator/internal/pkg/worker"
	"aggregatord.io/aggregator/internal/store/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = logger.Init("error", "json")
}

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()

	store := memory.New()
	states := aggregate.DefaultRunStates()
	cfg := aggregate.NewConfig(aggregate.DefaultFieldTable(states))
	aggregator := aggregate.NewAggregator(cfg, states, store)

	pools, err := worker.NewPools(context.Background(), worker.PoolConfig{GeneralPoolSize: 4, SweepPoolSize: 2})
	if err != nil {
		t.Fatalf("NewPools() error = %v", err)
	}
	t.Cleanup(pools.Shutdown)

	server := NewServer(ServerDeps{
		Aggregator: aggregator,
		Store:      store,
		Registry:   discovery.NewRegistry(),
		Pools:      pools,
		ReportRoot: t.TempDir(),
	})
	return server, store
}
