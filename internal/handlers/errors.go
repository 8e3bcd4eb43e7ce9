package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/luxride/booking-portal/internal/database"
	"github.com/luxride/booking-portal/internal/middleware"
	"github.com/luxride/booking-portal/internal/services"
	"github.com/luxride/booking-portal/internal/utils"
	"github.com/luxride/booking-portal/pkg/payments"
	"github.com/sirupsen/logrus"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error    string            `json:"error"`
	Message  string            `json:"message"`
	Code     string            `json:"code,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
	Redirect string            `json:"redirect,omitempty"`
}

type errorMapping struct {
	target  error
	status  int
	name    string
	message string
}

// Sentinel errors and how they surface to clients. The first match wins.
var errorMappings = []errorMapping{
	{services.ErrGeocoding, http.StatusUnprocessableEntity, "geocoding_error", ""},
	{services.ErrProvider, http.StatusBadGateway, "provider_error", ""},
	{services.ErrCheckoutUnavailable, http.StatusBadGateway, "payment_provider_error", "Checkout is temporarily unavailable. Please try again."},
	{services.ErrAmountMismatch, http.StatusBadRequest, "amount_mismatch", ""},
	{payments.ErrInvalidSignature, http.StatusBadRequest, "invalid_signature", "Webhook signature verification failed"},
	{payments.ErrMalformedEvent, http.StatusBadRequest, "invalid_payload", "Webhook payload could not be decoded"},
	{services.ErrWebhookValidation, http.StatusBadRequest, "invalid_booking", ""},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", ""},
	{services.ErrMFARequired, http.StatusUnauthorized, "mfa_required", ""},
	{services.ErrInvalidMFACode, http.StatusUnauthorized, "invalid_mfa_code", ""},
	{services.ErrMFANotInitialized, http.StatusBadRequest, "mfa_not_initialized", ""},
	{services.ErrInvalidRefreshToken, http.StatusUnauthorized, "invalid_refresh_token", ""},
	{services.ErrEmailTaken, http.StatusConflict, "email_taken", ""},
	{services.ErrProfileNotFound, http.StatusNotFound, "not_found", ""},
	{services.ErrBookingNotFound, http.StatusNotFound, "not_found", ""},
	{services.ErrBookingNotEditable, http.StatusConflict, "not_editable", ""},
	{services.ErrInvalidTransition, http.StatusConflict, "invalid_transition", ""},
	{services.ErrInvalidDriver, http.StatusBadRequest, "invalid_driver", ""},
	{services.ErrApplicationNotFound, http.StatusNotFound, "not_found", ""},
	{services.ErrApplicationNotPending, http.StatusConflict, "already_reviewed", ""},
	{services.ErrApplicationExists, http.StatusConflict, "application_exists", ""},
	{services.ErrUnknownNotificationType, http.StatusBadRequest, "unknown_type", ""},
	{services.ErrInvalidAuditEvent, http.StatusBadRequest, "validation_error", ""},
	{services.ErrInvalidPassengers, http.StatusBadRequest, "validation_error", ""},
	{services.ErrDraftState, http.StatusConflict, "invalid_state", ""},
	{database.ErrNotFound, http.StatusNotFound, "not_found", "Record not found"},
}

// respondError writes the JSON error for err. Unknown errors are logged and
// reported as a generic 500.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Please correct the highlighted fields",
			Fields:  verr.Fields,
		})
		return
	}

	var rle *services.RateLimitError
	if errors.As(err, &rle) {
		if retry := time.Until(rle.RetryAfter); retry > 0 {
			c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
		}
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "rate_limit_exceeded",
			"message":     rle.Message,
			"retry_after": rle.RetryAfter,
		})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			message := m.message
			if message == "" {
				message = m.target.Error()
			}
			c.JSON(m.status, ErrorResponse{Error: m.name, Message: message})
			return
		}
	}

	logger.WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).WithError(err).Error("Unhandled request error")

	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Something went wrong. Please try again.",
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Message: message,
	})
}

// requireUser returns the authenticated user or writes a 401
func requireUser(c *gin.Context) (middleware.UserContext, bool) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:    "unauthorized",
			Message:  "Authentication required",
			Redirect: middleware.LoginRedirect,
		})
		return middleware.UserContext{}, false
	}
	return userCtx, true
}

// callerFrom describes who sent the request, signed in or not
func callerFrom(c *gin.Context) services.Caller {
	caller := services.Caller{
		IPAddress: utils.ClientIP(c),
		UserAgent: utils.UserAgent(c),
	}
	if userCtx, ok := middleware.GetUserContext(c); ok {
		id := userCtx.UserID
		caller.UserID = &id
	}
	return caller
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func queryLimit(c *gin.Context, def int) int {
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
