package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/luxride/booking-portal/internal/cache"
	"github.com/luxride/booking-portal/internal/config"
	"github.com/luxride/booking-portal/internal/models"
	"github.com/luxride/booking-portal/pkg/events"
	"github.com/luxride/booking-portal/pkg/payments"
	"github.com/sirupsen/logrus"
)

var (
	// ErrAmountMismatch means the client-side price disagrees with the server estimate
	ErrAmountMismatch = errors.New("amount does not match the trip estimate")

	// ErrCheckoutUnavailable means the payment provider could not create a session
	ErrCheckoutUnavailable = errors.New("checkout is temporarily unavailable")
)

// CheckoutBookingStore is the subset of the booking repository checkout needs
type CheckoutBookingStore interface {
	Create(b *models.Booking) error
	SetCheckoutSession(id uuid.UUID, sessionID string) error
}

// Caller identifies who triggered a request
type Caller struct {
	UserID    *uuid.UUID
	IPAddress string
	UserAgent string
}

// RateKey is the actor key used for rate limiting
func (c Caller) RateKey() string {
	if c.UserID != nil {
		return "user:" + c.UserID.String()
	}
	return "ip:" + c.IPAddress
}

// CheckoutService persists a booking and hands the customer to hosted checkout
type CheckoutService struct {
	bookings  CheckoutBookingStore
	estimator Estimator
	gateway   payments.Gateway
	limiter   *RateLimitService
	publisher events.Publisher
	cache     cache.BookingCache
	audit     *AuditService
	stripe    config.StripeConfig
	currency  string
	logger    *logrus.Logger
	now       func() time.Time
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	bookings CheckoutBookingStore,
	estimator Estimator,
	gateway payments.Gateway,
	limiter *RateLimitService,
	publisher events.Publisher,
	bookingCache cache.BookingCache,
	audit *AuditService,
	cfg *config.Config,
	logger *logrus.Logger,
) *CheckoutService {
	if bookingCache == nil {
		bookingCache = cache.NoopCache{}
	}
	return &CheckoutService{
		bookings:  bookings,
		estimator: estimator,
		gateway:   gateway,
		limiter:   limiter,
		publisher: publisher,
		cache:     bookingCache,
		audit:     audit,
		stripe:    cfg.Stripe,
		currency:  cfg.Pricing.Currency,
		logger:    logger,
		now:       time.Now,
	}
}

// DraftFromCheckout maps a checkout request onto the booking form fields
func DraftFromCheckout(req models.CheckoutRequest) Draft {
	return Draft{
		Name:                req.CustomerDetails.Name,
		Email:               req.CustomerDetails.Email,
		Phone:               req.CustomerDetails.Phone,
		PickupLocation:      req.BookingDetails.PickupLocation,
		DropoffLocation:     req.BookingDetails.DropoffLocation,
		Date:                req.BookingDetails.Date,
		Time:                req.BookingDetails.Time,
		Passengers:          req.BookingDetails.Passengers,
		SpecialInstructions: req.BookingDetails.SpecialInstructions,
	}
}

// GuestInstructions packs guest contact details ahead of the rider's notes
func GuestInstructions(name, email, phone, notes string) string {
	packed := fmt.Sprintf("Guest: %s | Email: %s | Phone: %s", name, email, phone)
	if notes = strings.TrimSpace(notes); notes != "" {
		packed += "\n" + notes
	}
	return packed
}

// GuestName extracts the name packed by GuestInstructions
func GuestName(instructions string) string {
	const prefix = "Guest: "
	if !strings.HasPrefix(instructions, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(instructions, prefix)
	if i := strings.Index(rest, " | "); i >= 0 {
		return rest[:i]
	}
	return strings.SplitN(rest, "\n", 2)[0]
}

// CreateCheckout validates the request, inserts a pending_payment booking and
// creates a checkout session for it. If session creation fails the booking is
// left in pending_payment for the reconciliation sweep.
func (s *CheckoutService) CreateCheckout(ctx context.Context, req models.CheckoutRequest, caller Caller) (*models.CheckoutResponse, error) {
	draft := DraftFromCheckout(req)
	now := s.now()
	if errs := draft.Validate(now); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	if s.limiter != nil {
		if err := s.limiter.Check(ctx, ActionCreateCheckout, caller.RateKey()); err != nil {
			return nil, err
		}
	}

	estimate, err := s.estimator.Estimate(ctx, draft.PickupLocation, draft.DropoffLocation)
	if err != nil {
		return nil, err
	}
	if req.Amount != 0 && math.Abs(req.Amount-estimate.TotalCost) > 0.01 {
		s.logger.WithFields(logrus.Fields{
			"client_amount": req.Amount,
			"estimate":      estimate.TotalCost,
		}).Warn("Checkout amount mismatch")
		return nil, ErrAmountMismatch
	}

	pickupDate, err := draft.PickupDate(now.Location())
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"date": "Invalid date format"}}
	}

	booking := &models.Booking{
		PickupLocation:  strings.TrimSpace(draft.PickupLocation),
		DropoffLocation: strings.TrimSpace(draft.DropoffLocation),
		PickupDate:      pickupDate,
		PickupTime:      draft.Time,
		Passengers:      draft.Passengers,
		Status:          models.BookingStatusPendingPayment,
		PaymentStatus:   models.PaymentStatusPending,
		EstimatedCost:   estimate.TotalCost,
		DistanceText:    models.NewNullString(estimate.DistanceText),
	}
	if caller.UserID != nil {
		booking.UserID = uuid.NullUUID{UUID: *caller.UserID, Valid: true}
		booking.SpecialInstructions = models.NewNullString(strings.TrimSpace(draft.SpecialInstructions))
	} else {
		booking.SpecialInstructions = models.NewNullString(GuestInstructions(
			strings.TrimSpace(draft.Name), strings.TrimSpace(draft.Email), strings.TrimSpace(draft.Phone), draft.SpecialInstructions))
	}

	if err := s.bookings.Create(booking); err != nil {
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}

	logger := s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"amount":     estimate.TotalCost,
	})

	session, err := s.gateway.CreateCheckoutSession(ctx, payments.CheckoutParams{
		BookingID:     booking.ID.String(),
		AmountCents:   ToCents(estimate.TotalCost),
		Currency:      s.currency,
		Description:   fmt.Sprintf("From %s to %s", booking.PickupLocation, booking.DropoffLocation),
		CustomerEmail: strings.TrimSpace(draft.Email),
		SuccessURL:    s.stripe.SuccessURL,
		CancelURL:     s.stripe.CancelURL,
	})
	if err != nil {
		logger.WithError(err).Error("Checkout session creation failed, booking left pending_payment")
		return nil, fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
	}

	if err := s.bookings.SetCheckoutSession(booking.ID, session.ID); err != nil {
		logger.WithError(err).Warn("Failed to store checkout session id")
	}

	s.announce(ctx, booking)

	if s.audit != nil {
		if err := s.audit.LogData("booking_created", caller.UserID, map[string]interface{}{
			"booking_id": booking.ID.String(),
			"amount":     estimate.TotalCost,
			"guest":      caller.UserID == nil,
		}); err != nil {
			logger.WithError(err).Warn("Failed to write audit entry")
		}
	}

	logger.WithField("session_id", session.ID).Info("Checkout session created")

	return &models.CheckoutResponse{
		SessionID: session.ID,
		URL:       session.URL,
		BookingID: booking.ID.String(),
	}, nil
}

// announce tells the relay about the new booking. Failures only cost an alert.
func (s *CheckoutService) announce(ctx context.Context, booking *models.Booking) {
	if err := s.cache.InvalidateBookings(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate booking cache")
	}

	evt, err := events.NewEvent(events.KindBookingCreated, booking.ID.String(), map[string]string{
		"pickupLocation":  booking.PickupLocation,
		"dropoffLocation": booking.DropoffLocation,
	})
	if err == nil {
		err = s.publisher.Publish(ctx, evt)
	}
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).Warn("Failed to publish booking_created event")
	}
}
