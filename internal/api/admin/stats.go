// stats.go implements the dashboard statistics and analytics endpoints.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feedback-system/feedback-system/internal/analytics"
	"github.com/feedback-system/feedback-system/internal/middleware"
)

// StatsHandler handles stats-related API requests
type StatsHandler struct {
	engine *analytics.Engine
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(engine *analytics.Engine) *StatsHandler {
	return &StatsHandler{engine: engine}
}

// GetDashboardStats handles GET /api/dashboard/stats and /api/admin/dashboard/stats
func (h *StatsHandler) GetDashboardStats(c *gin.Context) {
	stats, err := h.engine.Dashboard(c.Request.Context())
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

// GetCategoryDistribution handles GET /api/admin/dashboard/category-distribution
func (h *StatsHandler) GetCategoryDistribution(c *gin.Context) {
	dist, err := h.engine.CategoryDistribution(c.Request.Context())
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Category distribution retrieved successfully.",
		"data":    dist,
	})
}

// GetAnalytics handles GET /api/feedback/analytics
func (h *StatsHandler) GetAnalytics(c *gin.Context) {
	a, err := h.engine.Analytics(c.Request.Context())
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Analytics retrieved successfully.",
		"data":    a,
	})
}
