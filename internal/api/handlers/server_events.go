package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"aggregatord.io/aggregator/internal/aggregate"
)

// eventsRequest accepts a batch of raw lifecycle events.
type eventsRequest struct {
	Events []aggregate.Event `json:"events"`
}

type eventsResult struct {
	changes map[string]aggregate.ChangeSet
	err     error
}

// PostEvents handles POST /api/v1/events: folds a batch of raw lifecycle
// events into the task store and returns the per-task change-sets. The
// fold runs on the general worker pool so a burst of large batches can't
// spin up unbounded concurrent aggregation work.
func (s *Server) PostEvents(c *gin.Context) {
	var req eventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_BODY", "message": err.Error()})
		return
	}
	if len(req.Events) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": "EMPTY_BATCH", "message": "events must contain at least one event"})
		return
	}

	done := make(chan eventsResult, 1)
	err := s.pools.General.Submit(c.Request.Context(), func(ctx context.Context) {
		changes, err := s.aggregator.AggregateEvents(ctx, req.Events)
		done <- eventsResult{changes: changes, err: err}
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "AGGREGATE_REJECTED", "message": err.Error()})
		return
	}

	result := <-done
	if result.err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "AGGREGATE_FAILED", "message": result.err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"changes": result.changes})
}
