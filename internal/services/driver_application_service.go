package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/luxride/booking-portal/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	// ErrApplicationNotFound is returned for an unknown application
	ErrApplicationNotFound = errors.New("driver application not found")

	// ErrApplicationNotPending is returned when reviewing an already decided application
	ErrApplicationNotPending = errors.New("driver application has already been reviewed")

	// ErrApplicationExists is returned when the applicant already has a pending application
	ErrApplicationExists = errors.New("a driver application is already pending")
)

// ApplicationStore is the driver application repository
type ApplicationStore interface {
	Create(app *models.DriverApplication) error
	GetByID(id uuid.UUID) (*models.DriverApplication, error)
	GetLatestByUser(userID uuid.UUID) (*models.DriverApplication, error)
	List(status models.ApplicationStatus, limit int) ([]models.DriverApplicationWithProfile, error)
	// Review decides a pending application and, atomically, grants role to
	// the applicant unless grant is empty or the applicant is an admin
	Review(id uuid.UUID, status models.ApplicationStatus, reviewerID uuid.UUID, grant models.Role) (bool, error)
}

// DriverApplicationService runs the driver sign-up and review flow
type DriverApplicationService struct {
	applications ApplicationStore
	profiles     ProfileLookup
	auth         *AuthService
	notifier     *NotificationEmailService
	limiter      *RateLimitService
	audit        *AuditService
	logger       *logrus.Logger
}

// NewDriverApplicationService creates a new driver application service.
// notifier, limiter and audit may be nil.
func NewDriverApplicationService(
	applications ApplicationStore,
	profiles ProfileLookup,
	auth *AuthService,
	notifier *NotificationEmailService,
	limiter *RateLimitService,
	audit *AuditService,
	logger *logrus.Logger,
) *DriverApplicationService {
	return &DriverApplicationService{
		applications: applications,
		profiles:     profiles,
		auth:         auth,
		notifier:     notifier,
		limiter:      limiter,
		audit:        audit,
		logger:       logger,
	}
}

// Apply submits an application. A signed-out caller gets a new account from
// the request credentials; the account is promoted to driver on approval.
func (s *DriverApplicationService) Apply(ctx context.Context, req models.CreateDriverApplicationRequest, actor *Actor, caller Caller) (*models.DriverApplication, error) {
	fields := map[string]string{}
	if req.YearsExperience < 0 || req.YearsExperience > 60 {
		fields["years_experience"] = "Years of experience must be between 0 and 60"
	}
	if strings.TrimSpace(req.LicenseNumber) == "" {
		fields["license_number"] = "License number is required"
	}
	if actor == nil && strings.TrimSpace(req.FirstName) == "" {
		fields["first_name"] = "First name is required"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if s.limiter != nil {
		if err := s.limiter.Check(ctx, ActionDriverApplication, caller.RateKey()); err != nil {
			return nil, err
		}
	}

	var applicant *models.Profile
	if actor == nil {
		profile, err := s.auth.Register(models.SignUpRequest{
			Email:     req.Email,
			Password:  req.Password,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Phone:     req.Phone,
		}, models.RoleClient)
		if err != nil {
			return nil, err
		}
		applicant = profile
	} else {
		existing, err := s.applications.GetLatestByUser(actor.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.Status == models.ApplicationStatusPending {
			return nil, ErrApplicationExists
		}
		profile, err := s.profiles.GetByID(actor.ID)
		if err != nil {
			return nil, err
		}
		if profile == nil {
			return nil, ErrProfileNotFound
		}
		applicant = profile
	}

	app := &models.DriverApplication{
		UserID:          applicant.ID,
		YearsExperience: req.YearsExperience,
		LicenseNumber:   strings.TrimSpace(req.LicenseNumber),
		AboutText:       models.NewNullString(strings.TrimSpace(req.AboutText)),
		Status:          models.ApplicationStatusPending,
	}
	if err := s.applications.Create(app); err != nil {
		return nil, err
	}

	logger := s.logger.WithFields(logrus.Fields{
		"application_id": app.ID,
		"user_id":        applicant.ID,
	})
	logger.Info("Driver application submitted")

	if s.audit != nil {
		if err := s.audit.LogData("driver_application_submitted", &applicant.ID, map[string]interface{}{
			"application_id": app.ID.String(),
		}); err != nil {
			logger.WithError(err).Warn("Failed to write audit entry")
		}
	}

	if s.notifier != nil {
		if _, err := s.notifier.Send(ctx, NotificationRequest{
			Type: NotificationEmailDriver,
			Data: map[string]interface{}{
				"name":            applicant.FullName(),
				"email":           applicant.Email,
				"yearsExperience": strconv.Itoa(app.YearsExperience),
				"licenseNumber":   app.LicenseNumber,
				"about":           app.AboutText.String,
			},
		}); err != nil {
			logger.WithError(err).Warn("Failed to send driver application email")
		}
	}

	return app, nil
}

// Mine returns the actor's latest application
func (s *DriverApplicationService) Mine(actor Actor) (*models.DriverApplication, error) {
	app, err := s.applications.GetLatestByUser(actor.ID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, ErrApplicationNotFound
	}
	return app, nil
}

// List returns applications filtered by status; "" lists all
func (s *DriverApplicationService) List(status string, limit int) ([]models.DriverApplicationWithProfile, error) {
	st := models.ApplicationStatus(status)
	switch st {
	case "", models.ApplicationStatusPending, models.ApplicationStatusApproved, models.ApplicationStatusRejected:
	default:
		return nil, &ValidationError{Fields: map[string]string{"status": "Invalid status"}}
	}
	return s.applications.List(st, limit)
}

// Review approves or rejects a pending application. Approval grants the
// driver role to anyone but an admin.
func (s *DriverApplicationService) Review(ctx context.Context, id uuid.UUID, approve bool, reviewer Actor) (*models.DriverApplication, error) {
	app, err := s.applications.GetByID(id)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, ErrApplicationNotFound
	}

	next := models.ApplicationStatusRejected
	if approve {
		next = models.ApplicationStatusApproved
	}
	if !app.Status.CanTransitionTo(next) {
		return nil, ErrApplicationNotPending
	}

	applicant, err := s.profiles.GetByID(app.UserID)
	if err != nil {
		return nil, err
	}

	var grant models.Role
	if approve && (applicant == nil || applicant.Role != models.RoleAdmin) {
		grant = models.RoleDriver
	}

	ok, err := s.applications.Review(id, next, reviewer.ID, grant)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrApplicationNotPending
	}

	app.Status = next
	app.ReviewedBy = uuid.NullUUID{UUID: reviewer.ID, Valid: true}

	logger := s.logger.WithFields(logrus.Fields{
		"application_id": id,
		"decision":       next,
	})
	if approve && grant == "" {
		logger.Info("Approved applicant is an admin, role unchanged")
	}
	logger.Info("Driver application reviewed")

	if s.audit != nil {
		if err := s.audit.LogData("driver_application_reviewed", &reviewer.ID, map[string]interface{}{
			"application_id": id.String(),
			"decision":       string(next),
		}); err != nil {
			logger.WithError(err).Warn("Failed to write audit entry")
		}
	}

	if s.notifier != nil && applicant != nil {
		if _, err := s.notifier.SendDecision(ctx, applicant.Email, applicant.FullName(), approve); err != nil {
			logger.WithError(err).Warn("Failed to send decision email")
		}
	}

	return app, nil
}
