package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/luxride/booking-portal/internal/services"
	"github.com/sirupsen/logrus"
)

// DashboardHandler serves the role-conditioned portal summary
type DashboardHandler struct {
	dashboards *services.DashboardService
	logger     *logrus.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboards *services.DashboardService, logger *logrus.Logger) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards, logger: logger}
}

// Summary handles GET /api/v1/dashboard?status=
func (h *DashboardHandler) Summary(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	dashboard, err := h.dashboards.Summary(c.Request.Context(), userCtx.Actor(), c.Query("status"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dashboard)
}
