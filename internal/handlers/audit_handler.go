package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/luxride/booking-portal/internal/middleware"
	"github.com/luxride/booking-portal/internal/models"
	"github.com/luxride/booking-portal/internal/services"
	"github.com/luxride/booking-portal/internal/utils"
	"github.com/sirupsen/logrus"
)

// AuditHandler accepts client audit events and lists the audit trail
type AuditHandler struct {
	audit  *services.AuditService
	logger *logrus.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(audit *services.AuditService, logger *logrus.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, logger: logger}
}

// Record handles POST /functions/audit-log. A signed-in caller is always
// recorded as the acting user.
func (h *AuditHandler) Record(c *gin.Context) {
	var req models.AuditLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	if userCtx, ok := middleware.GetUserContext(c); ok {
		req.UserID = userCtx.UserID.String()
	}

	if err := h.audit.Record(req, utils.ClientIP(c), utils.UserAgent(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true})
}

// List handles GET /api/v1/admin/audit-logs?limit=
func (h *AuditHandler) List(c *gin.Context) {
	logs, err := h.audit.List(queryLimit(c, 100))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"audit_logs": logs, "count": len(logs)})
}
