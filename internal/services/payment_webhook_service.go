package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/luxride/booking-portal/internal/cache"
	"github.com/luxride/booking-portal/internal/database"
	"github.com/luxride/booking-portal/internal/models"
	"github.com/luxride/booking-portal/pkg/events"
	"github.com/luxride/booking-portal/pkg/payments"
	"github.com/sirupsen/logrus"
)

// ErrWebhookValidation means a correctly signed event does not reference a known booking
var ErrWebhookValidation = errors.New("webhook event does not reference a known booking")

// WebhookResult is the acknowledgement returned to the provider
type WebhookResult struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// PaymentWebhookService finalizes bookings from payment provider callbacks.
// Each event id is recorded in the same transaction as its effects, so a
// redelivered event changes nothing.
type PaymentWebhookService struct {
	db            database.DB
	gateway       payments.Gateway
	bookings      *database.BookingRepository
	profiles      *database.ProfileRepository
	notifications *database.NotificationRepository
	processed     *database.WebhookEventRepository
	publisher     events.Publisher
	cache         cache.BookingCache
	audit         *AuditService
	logger        *logrus.Logger
}

// NewPaymentWebhookService creates a new webhook service
func NewPaymentWebhookService(
	db database.DB,
	gateway payments.Gateway,
	publisher events.Publisher,
	bookingCache cache.BookingCache,
	audit *AuditService,
	logger *logrus.Logger,
) *PaymentWebhookService {
	if bookingCache == nil {
		bookingCache = cache.NoopCache{}
	}
	return &PaymentWebhookService{
		db:            db,
		gateway:       gateway,
		bookings:      database.NewBookingRepository(db),
		profiles:      database.NewProfileRepository(db),
		notifications: database.NewNotificationRepository(db),
		processed:     database.NewWebhookEventRepository(db),
		publisher:     publisher,
		cache:         bookingCache,
		audit:         audit,
		logger:        logger,
	}
}

// HandleEvent verifies and applies one webhook delivery
func (s *PaymentWebhookService) HandleEvent(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	evt, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		s.logger.WithError(err).Warn("Rejected webhook delivery")
		return nil, err
	}

	logger := s.logger.WithFields(logrus.Fields{
		"event_id":   evt.ID,
		"event_type": evt.Type,
		"booking_id": evt.BookingID,
	})

	switch evt.Type {
	case payments.EventCheckoutCompleted:
		return s.handleCompleted(ctx, evt, logger)
	case payments.EventCheckoutExpired, payments.EventCheckoutAsyncPaymentFailed:
		return s.handleFailed(ctx, evt, logger)
	default:
		logger.Debug("Ignoring webhook event type")
		return &WebhookResult{Received: true}, nil
	}
}

func (s *PaymentWebhookService) loadBooking(evt *payments.Event) (*models.Booking, error) {
	id, err := uuid.Parse(evt.BookingID)
	if err != nil {
		return nil, ErrWebhookValidation
	}
	booking, err := s.bookings.GetByID(id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrWebhookValidation
	}
	return booking, nil
}

func (s *PaymentWebhookService) handleCompleted(ctx context.Context, evt *payments.Event, logger *logrus.Entry) (*WebhookResult, error) {
	booking, err := s.loadBooking(evt)
	if err != nil {
		logger.WithError(err).Warn("Checkout completed for unknown booking")
		return nil, err
	}

	amount := fmt.Sprintf("%.2f", float64(evt.AmountTotal)/100)
	if evt.AmountTotal == 0 {
		amount = fmt.Sprintf("%.2f", booking.EstimatedCost)
	}

	customerName, err := s.customerName(booking)
	if err != nil {
		return nil, err
	}

	admin, err := s.profiles.GetFirstAdmin()
	if err != nil {
		return nil, err
	}

	payload := models.PaymentConfirmationPayload{
		Type:            models.NotificationPaymentConfirmation,
		BookingID:       booking.ID.String(),
		Amount:          amount,
		CustomerName:    customerName,
		PickupLocation:  booking.PickupLocation,
		DropoffLocation: booking.DropoffLocation,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification payload: %w", err)
	}

	var first, paid bool
	err = database.WithTx(s.db, func(tx *sqlx.Tx) error {
		var err error
		if first, err = s.processed.MarkProcessed(tx, evt.ID, evt.Type); err != nil || !first {
			return err
		}
		if paid, err = s.bookings.MarkPaid(tx, booking.ID, amount); err != nil || !paid || admin == nil {
			return err
		}
		return s.notifications.Create(tx, &models.Notification{
			RecipientID: admin.ID,
			Type:        models.NotificationPaymentConfirmation,
			BookingID:   uuid.NullUUID{UUID: booking.ID, Valid: true},
			Payload:     raw,
		})
	})
	if err != nil {
		return nil, err
	}
	if !first {
		logger.Info("Duplicate webhook delivery ignored")
		return &WebhookResult{Received: true, Duplicate: true}, nil
	}

	if !paid {
		if booking.PaymentStatus == models.PaymentStatusCompleted {
			logger.Info("Booking already paid, payment event recorded without changes")
			return &WebhookResult{Received: true}, nil
		}
		// The customer was charged for a booking that is no longer payable
		logger.WithFields(logrus.Fields{
			"session_id":     evt.SessionID,
			"amount":         amount,
			"booking_status": booking.Status,
			"payment_status": booking.PaymentStatus,
		}).Error("Payment captured for a booking that cannot be confirmed, manual refund required")
		if s.audit != nil {
			if err := s.audit.LogData("payment_refund_required", nullToPtr(booking.UserID), map[string]interface{}{
				"booking_id": booking.ID.String(),
				"event_id":   evt.ID,
				"session_id": evt.SessionID,
				"amount":     amount,
			}); err != nil {
				logger.WithError(err).Warn("Failed to write audit entry")
			}
		}
		return &WebhookResult{Received: true}, nil
	}
	if admin == nil {
		logger.Warn("No admin profile to notify of payment")
	}

	logger.WithField("amount", amount).Info("Booking confirmed by payment")

	s.afterCommit(ctx, booking, events.KindPaymentConfirmation, payload, logger)
	if s.audit != nil {
		if err := s.audit.LogData("payment_confirmed", nullToPtr(booking.UserID), map[string]interface{}{
			"booking_id": booking.ID.String(),
			"event_id":   evt.ID,
			"amount":     amount,
		}); err != nil {
			logger.WithError(err).Warn("Failed to write audit entry")
		}
	}

	return &WebhookResult{Received: true}, nil
}

func (s *PaymentWebhookService) handleFailed(ctx context.Context, evt *payments.Event, logger *logrus.Entry) (*WebhookResult, error) {
	booking, err := s.loadBooking(evt)
	if err != nil {
		logger.WithError(err).Warn("Checkout failure for unknown booking")
		return nil, err
	}

	var first, failed bool
	err = database.WithTx(s.db, func(tx *sqlx.Tx) error {
		var err error
		if first, err = s.processed.MarkProcessed(tx, evt.ID, evt.Type); err != nil || !first {
			return err
		}
		failed, err = s.bookings.MarkPaymentFailed(tx, booking.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !first {
		return &WebhookResult{Received: true, Duplicate: true}, nil
	}

	if failed {
		logger.Info("Booking cancelled after failed checkout")
		if err := s.cache.InvalidateBookings(ctx); err != nil {
			logger.WithError(err).Warn("Failed to invalidate booking cache")
		}
	}

	return &WebhookResult{Received: true}, nil
}

func (s *PaymentWebhookService) customerName(booking *models.Booking) (string, error) {
	if booking.UserID.Valid {
		owner, err := s.profiles.GetByID(booking.UserID.UUID)
		if err != nil {
			return "", err
		}
		if owner != nil {
			return owner.FullName(), nil
		}
	}
	if name := GuestName(booking.SpecialInstructions.String); name != "" {
		return name, nil
	}
	return "Guest", nil
}

// afterCommit publishes the notification and drops cached lists. The database
// already holds the truth, so failures here are only logged.
func (s *PaymentWebhookService) afterCommit(ctx context.Context, booking *models.Booking, kind events.Kind, payload interface{}, logger *logrus.Entry) {
	if err := s.cache.InvalidateBookings(ctx); err != nil {
		logger.WithError(err).Warn("Failed to invalidate booking cache")
	}

	evt, err := events.NewEvent(kind, booking.ID.String(), payload)
	if err == nil {
		err = s.publisher.Publish(ctx, evt)
	}
	if err != nil {
		logger.WithError(err).Warn("Failed to publish payment notification")
	}
}

func nullToPtr(id uuid.NullUUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}
	v := id.UUID
	return &v
}
