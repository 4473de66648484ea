package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type bundleSummary struct {
	Name       string `json:"name"`
	ModuleName string `json:"module_name"`
	ObjectName string `json:"object_name"`
}

// GetBundles handles GET /api/v1/bundles: lists the task bundles
// registered with the discovery registry.
func (s *Server) GetBundles(c *gin.Context) {
	bundles := s.registry.List()
	summaries := make([]bundleSummary, 0, len(bundles))
	for _, b := range bundles {
		summaries = append(summaries, bundleSummary{Name: b.Name, ModuleName: b.ModuleName, ObjectName: b.ObjectName})
	}
	c.JSON(http.StatusOK, gin.H{"bundles": summaries})
}
