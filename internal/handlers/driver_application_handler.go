package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/luxride/booking-portal/internal/middleware"
	"github.com/luxride/booking-portal/internal/models"
	"github.com/luxride/booking-portal/internal/services"
	"github.com/sirupsen/logrus"
)

// DriverApplicationHandler handles driver onboarding
type DriverApplicationHandler struct {
	applications *services.DriverApplicationService
	logger       *logrus.Logger
}

// NewDriverApplicationHandler creates a new driver application handler
func NewDriverApplicationHandler(applications *services.DriverApplicationService, logger *logrus.Logger) *DriverApplicationHandler {
	return &DriverApplicationHandler{applications: applications, logger: logger}
}

// Apply handles POST /api/v1/driver-applications. Signed-out callers must
// include account credentials in the body.
func (h *DriverApplicationHandler) Apply(c *gin.Context) {
	var req models.CreateDriverApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	var actor *services.Actor
	if userCtx, ok := middleware.GetUserContext(c); ok {
		a := userCtx.Actor()
		actor = &a
	}

	app, err := h.applications.Apply(c.Request.Context(), req, actor, callerFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, app)
}

// Mine handles GET /api/v1/driver-applications/me
func (h *DriverApplicationHandler) Mine(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	app, err := h.applications.Mine(userCtx.Actor())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"application": app})
}

// List handles GET /api/v1/admin/driver-applications?status=
func (h *DriverApplicationHandler) List(c *gin.Context) {
	apps, err := h.applications.List(c.Query("status"), queryLimit(c, 100))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"applications": apps, "count": len(apps)})
}

// Approve handles POST /api/v1/admin/driver-applications/:id/approve
func (h *DriverApplicationHandler) Approve(c *gin.Context) {
	h.review(c, true)
}

// Reject handles POST /api/v1/admin/driver-applications/:id/reject
func (h *DriverApplicationHandler) Reject(c *gin.Context) {
	h.review(c, false)
}

func (h *DriverApplicationHandler) review(c *gin.Context, approve bool) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	app, err := h.applications.Review(c.Request.Context(), id, approve, userCtx.Actor())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, app)
}
