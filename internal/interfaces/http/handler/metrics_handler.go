package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	appbilling "github.com/zenbilling/backend/internal/application/billing"
)

// DashboardProvider is the slice of the metrics application service this
// handler needs
type DashboardProvider interface {
	Dashboard(ctx context.Context) (*appbilling.DashboardMetrics, error)
}

// MetricsHandler serves billing dashboard aggregates
type MetricsHandler struct {
	BaseHandler
	metrics DashboardProvider
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(metrics DashboardProvider) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// RegisterRoutes registers metrics routes
func (h *MetricsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/metrics/dashboard", h.GetDashboard)
}

// GetDashboard godoc
//
//	@Summary		Get billing dashboard metrics
//	@Description	Returns subscription counts, MRR, and past-due totals computed
//	@Description	from current state.
//	@Tags			metrics
//	@Produce		json
//	@Success		200	{object}	APIResponse[appbilling.DashboardMetrics]
//	@Failure		500	{object}	ErrorResponse
//	@Router			/metrics/dashboard [get]
func (h *MetricsHandler) GetDashboard(c *gin.Context) {
	dashboard, err := h.metrics.Dashboard(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dashboard)
}
