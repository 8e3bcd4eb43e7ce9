package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/luxride/booking-portal/internal/cache"
	"github.com/luxride/booking-portal/internal/database"
	"github.com/luxride/booking-portal/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	// ErrBookingNotFound is returned for unknown bookings and for bookings the actor may not see
	ErrBookingNotFound = errors.New("booking not found")

	// ErrBookingNotEditable is returned when trip details change after confirmation
	ErrBookingNotEditable = errors.New("booking can no longer be edited")

	// ErrInvalidTransition is returned for a status change the lifecycle does not allow
	ErrInvalidTransition = errors.New("booking status change not allowed")

	// ErrInvalidDriver is returned when assigning a profile that is not a driver
	ErrInvalidDriver = errors.New("assigned profile is not a driver")
)

// BookingStore is the booking repository as used by the booking service
type BookingStore interface {
	GetByID(id uuid.UUID) (*models.Booking, error)
	ListByUser(userID uuid.UUID, limit int) ([]models.Booking, error)
	ListByDriver(driverID uuid.UUID, limit int) ([]models.Booking, error)
	List(filter models.BookingFilter) ([]models.Booking, error)
	CountByStatus() (map[models.BookingStatus]int, error)
	UpdateDetails(id uuid.UUID, pickup, dropoff *string, date *time.Time, slot, instructions *string) error
	UpdateStatus(id uuid.UUID, from, to models.BookingStatus) error
	AssignDriver(id, driverID uuid.UUID) error
}

// ProfileLookup loads a profile by id
type ProfileLookup interface {
	GetByID(id uuid.UUID) (*models.Profile, error)
}

// Actor is the authenticated profile performing an operation
type Actor struct {
	ID   uuid.UUID
	Role models.Role
}

// Can reports whether the actor's role holds capability c
func (a Actor) Can(c models.Capability) bool {
	return models.Can(a.Role, c)
}

// BookingService covers reads and edits of existing bookings
type BookingService struct {
	bookings BookingStore
	profiles ProfileLookup
	cache    cache.BookingCache
	audit    *AuditService
	logger   *logrus.Logger
	now      func() time.Time
}

// NewBookingService creates a new booking service. audit may be nil.
func NewBookingService(bookings BookingStore, profiles ProfileLookup, bookingCache cache.BookingCache, audit *AuditService, logger *logrus.Logger) *BookingService {
	if bookingCache == nil {
		bookingCache = cache.NoopCache{}
	}
	return &BookingService{
		bookings: bookings,
		profiles: profiles,
		cache:    bookingCache,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// Get returns a booking visible to the actor: its owner, its driver, or anyone
// allowed to view all bookings
func (s *BookingService) Get(id uuid.UUID, actor Actor) (*models.Booking, error) {
	b, err := s.bookings.GetByID(id)
	if err != nil {
		return nil, err
	}
	if b == nil || !canView(b, actor) {
		return nil, ErrBookingNotFound
	}
	return b, nil
}

func canView(b *models.Booking, actor Actor) bool {
	switch {
	case actor.Can(models.CapViewAllBookings):
		return true
	case b.UserID.Valid && b.UserID.UUID == actor.ID:
		return true
	case actor.Can(models.CapViewAssignedBookings) && b.AssignedDriverID.Valid && b.AssignedDriverID.UUID == actor.ID:
		return true
	}
	return false
}

// ListOwn returns the actor's own bookings
func (s *BookingService) ListOwn(actor Actor, limit int) ([]models.Booking, error) {
	return s.bookings.ListByUser(actor.ID, limit)
}

// ListAssigned returns the bookings assigned to a driver
func (s *BookingService) ListAssigned(actor Actor, limit int) ([]models.Booking, error) {
	return s.bookings.ListByDriver(actor.ID, limit)
}

// ListAll returns all bookings, optionally by status, through the cache
func (s *BookingService) ListAll(ctx context.Context, status models.BookingStatus, limit int) ([]models.Booking, error) {
	limit = database.NormalizeLimit(limit)
	key := fmt.Sprintf("all:%d", limit)
	if status != "" {
		key = fmt.Sprintf("status:%s:%d", status, limit)
	}

	if cached, ok, err := s.cache.GetBookings(ctx, key); err != nil {
		s.logger.WithError(err).Warn("Booking cache read failed")
	} else if ok {
		return cached, nil
	}

	list, err := s.bookings.List(models.BookingFilter{Status: status, Limit: limit})
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetBookings(ctx, key, list); err != nil {
		s.logger.WithError(err).Warn("Booking cache write failed")
	}
	return list, nil
}

// CountByStatus returns booking totals per status
func (s *BookingService) CountByStatus() (map[models.BookingStatus]int, error) {
	return s.bookings.CountByStatus()
}

// UpdateDetails lets an owner change trip details while the booking is unconfirmed
func (s *BookingService) UpdateDetails(ctx context.Context, id uuid.UUID, actor Actor, req models.UpdateBookingRequest) (*models.Booking, error) {
	b, err := s.bookings.GetByID(id)
	if err != nil {
		return nil, err
	}
	if b == nil || !b.UserID.Valid || b.UserID.UUID != actor.ID {
		return nil, ErrBookingNotFound
	}
	if !b.Status.IsEditable() {
		return nil, ErrBookingNotEditable
	}

	fields := map[string]string{}
	pickup := trimmedOrNil(req.PickupLocation, "pickupLocation", "Pickup location is required", fields)
	dropoff := trimmedOrNil(req.DropoffLocation, "dropoffLocation", "Dropoff location is required", fields)

	var date *time.Time
	if req.PickupDate != nil {
		now := s.now()
		if msg := validateDate(*req.PickupDate, now); msg != "" {
			fields["date"] = msg
		} else {
			d, _ := time.ParseInLocation(dateLayout, *req.PickupDate, now.Location())
			date = &d
		}
	}
	if req.PickupTime != nil && !IsTimeSlot(*req.PickupTime) {
		fields["time"] = "Select a valid time slot"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if err := s.bookings.UpdateDetails(id, pickup, dropoff, date, req.PickupTime, req.SpecialInstructions); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrBookingNotEditable
		}
		return nil, err
	}

	s.changed(ctx, "booking_updated", id, actor, nil)
	return s.bookings.GetByID(id)
}

func trimmedOrNil(v *string, field, msg string, fields map[string]string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		fields[field] = msg
		return nil
	}
	return &t
}

// Cancel cancels a booking on behalf of its owner or a booking manager
func (s *BookingService) Cancel(ctx context.Context, id uuid.UUID, actor Actor) (*models.Booking, error) {
	b, err := s.bookings.GetByID(id)
	if err != nil {
		return nil, err
	}
	isOwner := b != nil && b.UserID.Valid && b.UserID.UUID == actor.ID
	if b == nil || (!isOwner && !actor.Can(models.CapManageBookings)) {
		return nil, ErrBookingNotFound
	}

	return s.transition(ctx, b, models.BookingStatusCancelled, actor)
}

// UpdateStatus is an admin status change
func (s *BookingService) UpdateStatus(ctx context.Context, id uuid.UUID, status string, actor Actor) (*models.Booking, error) {
	next, ok := models.ParseBookingStatus(status)
	if !ok {
		return nil, &ValidationError{Fields: map[string]string{"status": "Invalid status"}}
	}

	b, err := s.bookings.GetByID(id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrBookingNotFound
	}

	return s.transition(ctx, b, next, actor)
}

func (s *BookingService) transition(ctx context.Context, b *models.Booking, next models.BookingStatus, actor Actor) (*models.Booking, error) {
	if !b.Status.CanTransitionTo(next) {
		return nil, ErrInvalidTransition
	}

	if err := s.bookings.UpdateStatus(b.ID, b.Status, next); err != nil {
		// Lost a race with another writer
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	s.changed(ctx, "booking_status_changed", b.ID, actor, map[string]interface{}{
		"from": string(b.Status),
		"to":   string(next),
	})

	b.Status = next
	return b, nil
}

// AssignDriver sets the driver of an active booking
func (s *BookingService) AssignDriver(ctx context.Context, id uuid.UUID, driverID string, actor Actor) (*models.Booking, error) {
	did, err := uuid.Parse(driverID)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"driver_id": "Invalid driver id"}}
	}

	driver, err := s.profiles.GetByID(did)
	if err != nil {
		return nil, err
	}
	if driver == nil || driver.Role != models.RoleDriver {
		return nil, ErrInvalidDriver
	}

	b, err := s.bookings.GetByID(id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrBookingNotFound
	}
	if b.Status.IsTerminal() {
		return nil, ErrInvalidTransition
	}

	if err := s.bookings.AssignDriver(id, did); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	s.changed(ctx, "booking_driver_assigned", id, actor, map[string]interface{}{"driver_id": did.String()})

	b.AssignedDriverID = uuid.NullUUID{UUID: did, Valid: true}
	return b, nil
}

func (s *BookingService) changed(ctx context.Context, action string, id uuid.UUID, actor Actor, details map[string]interface{}) {
	if err := s.cache.InvalidateBookings(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate booking cache")
	}

	if s.audit == nil {
		return
	}
	if details == nil {
		details = map[string]interface{}{}
	}
	details["booking_id"] = id.String()
	if err := s.audit.LogData(action, &actor.ID, details); err != nil {
		s.logger.WithError(err).WithField("action", action).Warn("Failed to write audit entry")
	}
}
