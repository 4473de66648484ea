// Package handlers implements the aggregator's HTTP handlers: event
// ingestion, task lookup, run report retrieval, and health checks.
//
// Import Path: aggregatord.io/aggregator/internal/api/handlers
package handlers

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"aggregatord.io/aggregator/internal/aggregate"
	"aggregatord.io/aggregator/internal/discovery"
	"aggregatord.io/aggregator/internal/pkg/worker"
)

// Server holds the handlers' dependencies.
type Server struct {
	aggregator *aggregate.Aggregator
	store      aggregate.TaskStore
	registry   *discovery.Registry
	pools      *worker.Pools
	pool       *pgxpool.Pool // nil when running the in-memory store
	reportRoot string
}

// ServerDeps holds all dependencies for creating a Server.
type ServerDeps struct {
	Aggregator *aggregate.Aggregator
	Store      aggregate.TaskStore
	Registry   *discovery.Registry
	Pools      *worker.Pools
	Pool       *pgxpool.Pool
	ReportRoot string
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	return &Server{
		aggregator: deps.Aggregator,
		store:      deps.Store,
		registry:   deps.Registry,
		pools:      deps.Pools,
		pool:       deps.Pool,
		reportRoot: deps.ReportRoot,
	}
}
