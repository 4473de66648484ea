package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aggregatord.io/aggregator/internal/config"
	"aggregatord.io/aggregator/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

func TestBootstrap_MemoryStore(t *testing.T) {
	cfg := &config.Config{
		Worker:     config.WorkerConfig{GeneralPoolSize: 10, SweepPoolSize: 5},
		Aggregator: config.AggregatorConfig{Store: "memory", IncompleteSweepEvery: time.Second},
	}

	app, err := Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Nil(t, app.DB, "Application.DB should be nil for the memory store")
	assert.NotNil(t, app.Aggregator)
	app.Shutdown()
}

func TestBootstrap_PostgresStoreNoDB(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Host:     "localhost",
			Port:     65432, // non-existent port
			User:     "test",
			Password: "test",
			Database: "test",
			SSLMode:  "disable",
			MaxConns: 5,
			MinConns: 1,
		},
		Worker:     config.WorkerConfig{GeneralPoolSize: 10, SweepPoolSize: 5},
		Aggregator: config.AggregatorConfig{Store: "postgres"},
	}

	app, err := Bootstrap(context.Background(), cfg)
	require.Error(t, err, "Bootstrap should fail without a reachable database")
	assert.Nil(t, app)
}

func TestApplication_Shutdown_Nil(t *testing.T) {
	app := &Application{}

	assert.NotPanics(t, func() {
		app.Shutdown()
	}, "Shutdown on empty Application should not panic")
}
