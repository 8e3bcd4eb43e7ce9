package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/luxride/booking-portal/internal/models"
	"github.com/luxride/booking-portal/internal/services"
	"github.com/sirupsen/logrus"
)

// maxWebhookBody bounds the webhook payload read into memory
const maxWebhookBody = 64 << 10

// CheckoutHandler serves create-checkout and the payment provider webhook
type CheckoutHandler struct {
	checkout *services.CheckoutService
	webhooks *services.PaymentWebhookService
	logger   *logrus.Logger
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkout *services.CheckoutService, webhooks *services.PaymentWebhookService, logger *logrus.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, webhooks: webhooks, logger: logger}
}

// CreateCheckout handles POST /functions/create-checkout. Guests and signed-in
// clients may both check out.
func (h *CheckoutHandler) CreateCheckout(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	resp, err := h.checkout.CreateCheckout(c.Request.Context(), req, callerFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// StripeWebhook handles POST /functions/stripe-webhook. The raw body is needed
// for signature verification.
func (h *CheckoutHandler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		badRequest(c, "Could not read request body")
		return
	}
	if len(payload) > maxWebhookBody {
		h.logger.WithField("limit", maxWebhookBody).Warn("Rejected oversized webhook delivery")
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   "payload_too_large",
			Message: "Webhook payload exceeds the size limit",
		})
		return
	}

	result, err := h.webhooks.HandleEvent(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
