package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/luxride/booking-portal/internal/services"
	"github.com/sirupsen/logrus"
)

// MFAHandler serves TOTP enrollment
type MFAHandler struct {
	mfa      *services.MFAService
	profiles services.ProfileLookup
	audit    *services.AuditService
	logger   *logrus.Logger
}

// NewMFAHandler creates a new MFA handler. audit may be nil.
func NewMFAHandler(mfa *services.MFAService, profiles services.ProfileLookup, audit *services.AuditService, logger *logrus.Logger) *MFAHandler {
	return &MFAHandler{mfa: mfa, profiles: profiles, audit: audit, logger: logger}
}

// VerifyMFARequest carries the code from the authenticator app
type VerifyMFARequest struct {
	Token string `json:"token" binding:"required"`
}

// RotateMFARequest carries a current code, required once MFA is enabled
type RotateMFARequest struct {
	Token string `json:"token"`
}

// GenerateSecret handles POST /functions/generate-mfa-secret. The body is
// optional until MFA is on.
func (h *MFAHandler) GenerateSecret(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	var req RotateMFARequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body")
			return
		}
	}

	profile, err := h.profiles.GetByID(userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if profile == nil {
		respondError(c, h.logger, services.ErrProfileNotFound)
		return
	}

	setup, err := h.mfa.GenerateSecret(profile, req.Token)
	if err != nil {
		if errors.Is(err, services.ErrInvalidMFACode) {
			safeLogSecurity(h.audit, h.logger, "mfa_rotation_rejected", callerFrom(c), nil)
		}
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, setup)
}

// VerifyToken handles POST /functions/verify-mfa-token
func (h *MFAHandler) VerifyToken(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	var req VerifyMFARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Token is required")
		return
	}

	caller := callerFrom(c)
	if err := h.mfa.VerifyAndEnable(userCtx.UserID, req.Token); err != nil {
		if errors.Is(err, services.ErrInvalidMFACode) {
			safeLogSecurity(h.audit, h.logger, "mfa_verification_failed", caller, nil)
		}
		respondError(c, h.logger, err)
		return
	}

	safeLogAuth(h.audit, h.logger, "mfa_enabled", caller, nil)
	c.JSON(http.StatusOK, gin.H{"verified": true, "mfa_enabled": true})
}
