package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetTask handles GET /api/v1/tasks/:uuid: returns the current aggregated
// record for a task.
func (s *Server) GetTask(c *gin.Context) {
	uuid := c.Param("uuid")
	task, ok, err := s.store.Get(c.Request.Context(), uuid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "STORE_ERROR", "message": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"code": "TASK_NOT_FOUND", "message": "task not found"})
		return
	}
	c.JSON(http.StatusOK, task)
}

// GetRootComplete handles GET /api/v1/status/root-complete: reports
// whether the root task has reached a complete runstate.
func (s *Server) GetRootComplete(c *gin.Context) {
	complete, err := s.aggregator.IsRootComplete(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "STORE_ERROR", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"root_complete": complete})
}

// GetAllComplete handles GET /api/v1/status/all-complete: reports whether
// the root task and every other known task have reached a complete
// runstate.
func (s *Server) GetAllComplete(c *gin.Context) {
	complete, err := s.aggregator.AreAllTasksComplete(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "STORE_ERROR", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"all_complete": complete})
}
