package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/luxride/booking-portal/internal/models"
)

// ApplicationReader reads driver applications for dashboards
type ApplicationReader interface {
	GetLatestByUser(userID uuid.UUID) (*models.DriverApplication, error)
	List(status models.ApplicationStatus, limit int) ([]models.DriverApplicationWithProfile, error)
}

// Dashboard is the role-conditioned portal summary. Sections the actor may
// not see are omitted.
type Dashboard struct {
	Role                models.Role                           `json:"role"`
	Bookings            []models.Booking                      `json:"bookings"`
	AssignedBookings    []models.Booking                      `json:"assigned_bookings,omitempty"`
	Application         *models.DriverApplication             `json:"application,omitempty"`
	PendingApplications []models.DriverApplicationWithProfile `json:"pending_applications,omitempty"`
	StatusCounts        map[models.BookingStatus]int          `json:"status_counts,omitempty"`
}

// DashboardService assembles dashboards
type DashboardService struct {
	bookings     *BookingService
	applications ApplicationReader
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(bookings *BookingService, applications ApplicationReader) *DashboardService {
	return &DashboardService{bookings: bookings, applications: applications}
}

// Summary builds the dashboard for actor. status filters the all-bookings view.
func (s *DashboardService) Summary(ctx context.Context, actor Actor, status string) (*Dashboard, error) {
	d := &Dashboard{Role: actor.Role}

	if actor.Can(models.CapViewAllBookings) {
		var filter models.BookingStatus
		if status != "" {
			st, ok := models.ParseBookingStatus(status)
			if !ok {
				return nil, &ValidationError{Fields: map[string]string{"status": "Invalid status"}}
			}
			filter = st
		}

		all, err := s.bookings.ListAll(ctx, filter, 0)
		if err != nil {
			return nil, err
		}
		d.Bookings = all

		counts, err := s.bookings.CountByStatus()
		if err != nil {
			return nil, err
		}
		d.StatusCounts = counts

		if actor.Can(models.CapReviewApplications) {
			pending, err := s.applications.List(models.ApplicationStatusPending, 0)
			if err != nil {
				return nil, err
			}
			d.PendingApplications = pending
		}
		return d, nil
	}

	own, err := s.bookings.ListOwn(actor, 0)
	if err != nil {
		return nil, err
	}
	d.Bookings = own

	if actor.Can(models.CapViewAssignedBookings) {
		assigned, err := s.bookings.ListAssigned(actor, 0)
		if err != nil {
			return nil, err
		}
		d.AssignedBookings = assigned
	}

	// Applicants stay clients until approved, so every non-admin sees their application
	app, err := s.applications.GetLatestByUser(actor.ID)
	if err != nil {
		return nil, err
	}
	d.Application = app

	return d, nil
}
