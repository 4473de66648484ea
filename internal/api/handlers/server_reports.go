package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"aggregatord.io/aggregator/internal/report"
)

// GetReport handles GET /api/v1/reports/:run_id: returns whichever run
// report (initial or completion) is currently linked for the run.
func (s *Server) GetReport(c *gin.Context) {
	runID := c.Param("run_id")
	logsDir := filepath.Join(s.reportRoot, runID)

	data, err := report.GetCurrentReportData(logsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"code": "REPORT_NOT_FOUND", "message": "no report for run"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": "REPORT_READ_FAILED", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, data)
}
