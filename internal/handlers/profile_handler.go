package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/luxride/booking-portal/internal/models"
	"github.com/luxride/booking-portal/internal/services"
	"github.com/luxride/booking-portal/pkg/validator"
	"github.com/sirupsen/logrus"
)

// ProfileStore is the profile repository as used by the profile handler
type ProfileStore interface {
	GetByID(id uuid.UUID) (*models.Profile, error)
	List(role models.Role, limit int) ([]models.Profile, error)
	UpdateContact(id uuid.UUID, req models.UpdateProfileRequest) error
	UpdateRole(id uuid.UUID, role models.Role) error
}

// ProfileHandler serves owner and admin profile requests
type ProfileHandler struct {
	profiles  ProfileStore
	validator *validator.ContactValidator
	audit     *services.AuditService
	logger    *logrus.Logger
}

// NewProfileHandler creates a new profile handler. audit may be nil.
func NewProfileHandler(profiles ProfileStore, audit *services.AuditService, logger *logrus.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles:  profiles,
		validator: validator.NewContactValidator(),
		audit:     audit,
		logger:    logger,
	}
}

// GetProfile handles GET /api/v1/profile
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
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

	c.JSON(http.StatusOK, profile)
}

// UpdateProfile handles PUT /api/v1/profile. Role is never changed here.
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	fields := map[string]string{}
	if req.FirstName != nil {
		name := strings.TrimSpace(*req.FirstName)
		if name == "" {
			fields["first_name"] = "First name is required"
		}
		req.FirstName = &name
	}
	if req.LastName != nil {
		name := strings.TrimSpace(*req.LastName)
		req.LastName = &name
	}
	if req.Phone != nil && strings.TrimSpace(*req.Phone) != "" {
		phone, err := h.validator.ValidatePhone(*req.Phone)
		if err != nil {
			fields["phone"] = "Invalid phone number"
		}
		req.Phone = &phone
	}
	if len(fields) > 0 {
		respondError(c, h.logger, &services.ValidationError{Fields: fields})
		return
	}

	if err := h.profiles.UpdateContact(userCtx.UserID, req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	profile, err := h.profiles.GetByID(userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	safeLogData(h.audit, h.logger, "profile_updated", &userCtx.UserID, nil)
	c.JSON(http.StatusOK, profile)
}

// ListProfiles handles GET /api/v1/admin/profiles?role=
func (h *ProfileHandler) ListProfiles(c *gin.Context) {
	var role models.Role
	if r := c.Query("role"); r != "" {
		parsed, err := models.ParseRole(r)
		if err != nil {
			badRequest(c, "Invalid role")
			return
		}
		role = parsed
	}

	profiles, err := h.profiles.List(role, queryLimit(c, 100))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profiles": profiles, "count": len(profiles)})
}

// UpdateRole handles PUT /api/v1/admin/profiles/:id/role
func (h *ProfileHandler) UpdateRole(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req models.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Role is required")
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		respondError(c, h.logger, &services.ValidationError{Fields: map[string]string{"role": "Invalid role"}})
		return
	}

	target, err := h.profiles.GetByID(id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if target == nil {
		respondError(c, h.logger, services.ErrProfileNotFound)
		return
	}

	if err := h.profiles.UpdateRole(id, role); err != nil {
		respondError(c, h.logger, err)
		return
	}
	target.Role = role

	safeLogData(h.audit, h.logger, "profile_role_changed", &userCtx.UserID, map[string]interface{}{
		"profile_id": id.String(),
		"role":       string(role),
	})

	c.JSON(http.StatusOK, target)
}
