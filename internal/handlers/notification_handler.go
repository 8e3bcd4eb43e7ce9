package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/luxride/booking-portal/internal/models"
	"github.com/luxride/booking-portal/internal/realtime"
	"github.com/luxride/booking-portal/internal/services"
	"github.com/sirupsen/logrus"
)

// NotificationInbox reads and acknowledges persisted notifications
type NotificationInbox interface {
	ListByRecipient(recipientID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(id, recipientID uuid.UUID) error
}

// AlertSource lists recent in-memory alerts
type AlertSource interface {
	Alerts() []models.Alert
}

// NotificationHandler serves notification emails, the inbox and live alerts
type NotificationHandler struct {
	emails  *services.NotificationEmailService
	inbox   NotificationInbox
	alerts  AlertSource
	hub     *realtime.Hub
	limiter *services.RateLimitService
	logger  *logrus.Logger
}

// NewNotificationHandler creates a new notification handler. limiter and hub may be nil.
func NewNotificationHandler(
	emails *services.NotificationEmailService,
	inbox NotificationInbox,
	alerts AlertSource,
	hub *realtime.Hub,
	limiter *services.RateLimitService,
	logger *logrus.Logger,
) *NotificationHandler {
	return &NotificationHandler{
		emails:  emails,
		inbox:   inbox,
		alerts:  alerts,
		hub:     hub,
		limiter: limiter,
		logger:  logger,
	}
}

// SendNotification handles POST /functions/send-notification
func (h *NotificationHandler) SendNotification(c *gin.Context) {
	var req services.NotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Notification type is required")
		return
	}

	if h.limiter != nil {
		if err := h.limiter.Check(c.Request.Context(), services.ActionSendNotification, callerFrom(c).RateKey()); err != nil {
			respondError(c, h.logger, err)
			return
		}
	}

	id, err := h.emails.Send(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
}

// ListMine handles GET /api/v1/notifications?unread=true
func (h *NotificationHandler) ListMine(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	notifications, err := h.inbox.ListByRecipient(userCtx.UserID, c.Query("unread") == "true", queryLimit(c, 50))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications, "count": len(notifications)})
}

// MarkRead handles POST /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.inbox.MarkRead(id, userCtx.UserID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListAlerts handles GET /api/v1/admin/alerts
func (h *NotificationHandler) ListAlerts(c *gin.Context) {
	alerts := h.alerts.Alerts()
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

// AlertsSocket handles GET /api/v1/admin/alerts/ws
func (h *NotificationHandler) AlertsSocket(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "unavailable",
			Message: "Live alerts are not enabled",
		})
		return
	}

	// The upgrader writes its own error response
	if err := h.hub.ServeWS(c.Writer, c.Request, userCtx.UserID.String()); err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
	}
}
