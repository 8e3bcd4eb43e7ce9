package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/luxride/booking-portal/internal/cache"
	"github.com/luxride/booking-portal/internal/models"
	"github.com/luxride/booking-portal/internal/realtime"
	"github.com/luxride/booking-portal/pkg/events"
	"github.com/sirupsen/logrus"
)

const (
	maxAlerts    = 100
	seenCapacity = 1024
)

// Broadcaster pushes a message to connected admins
type Broadcaster interface {
	Broadcast(msg realtime.Message)
}

// NotificationRelay turns notification events into admin alerts. Events are
// delivered at least once, so ids already seen are dropped.
type NotificationRelay struct {
	bus         events.Bus
	broadcaster Broadcaster
	cache       cache.BookingCache
	logger      *logrus.Logger

	mu       sync.RWMutex
	alerts   []models.Alert
	seen     map[string]struct{}
	seenRing []string
	seenNext int
}

// NewNotificationRelay creates a relay. broadcaster may be nil.
func NewNotificationRelay(bus events.Bus, broadcaster Broadcaster, bookingCache cache.BookingCache, logger *logrus.Logger) *NotificationRelay {
	if bookingCache == nil {
		bookingCache = cache.NoopCache{}
	}
	return &NotificationRelay{
		bus:         bus,
		broadcaster: broadcaster,
		cache:       bookingCache,
		logger:      logger,
		seen:        make(map[string]struct{}, seenCapacity),
		seenRing:    make([]string, seenCapacity),
	}
}

// Run consumes the bus until ctx is done
func (r *NotificationRelay) Run(ctx context.Context) error {
	r.logger.Info("Notification relay started")
	err := r.bus.Subscribe(ctx, r.Handle)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("notification relay stopped: %w", err)
	}
	r.logger.Info("Notification relay stopped")
	return nil
}

// Handle processes one event. It never fails the subscription; bad payloads
// degrade to a generic new-booking alert.
func (r *NotificationRelay) Handle(ctx context.Context, evt events.Event) error {
	if !r.markSeen(evt.ID) {
		r.logger.WithField("event_id", evt.ID).Debug("Duplicate notification event dropped")
		return nil
	}

	alert := models.Alert{
		ID:        evt.ID,
		BookingID: evt.BookingID,
		CreatedAt: evt.CreatedAt,
	}

	if payment, ok := paymentConfirmation(evt); ok {
		alert.Kind = models.AlertPaymentConfirmed
		alert.Title = "Payment confirmed"
		alert.Message = fmt.Sprintf("%s paid $%s for %s to %s",
			payment.CustomerName, payment.Amount, payment.PickupLocation, payment.DropoffLocation)

		if err := r.cache.InvalidateBookings(ctx); err != nil {
			r.logger.WithError(err).Warn("Failed to invalidate booking cache")
		}
	} else {
		alert.Kind = models.AlertNewBooking
		alert.Title = "New booking"
		alert.Message = "A new booking request has been received"
	}

	r.push(alert)

	if r.broadcaster != nil {
		r.broadcaster.Broadcast(realtime.Message{Type: "alert", Data: alert})
	}

	r.logger.WithFields(logrus.Fields{
		"event_id":   evt.ID,
		"kind":       alert.Kind,
		"booking_id": evt.BookingID,
	}).Info("Admin alert raised")

	return nil
}

func paymentConfirmation(evt events.Event) (*models.PaymentConfirmationPayload, bool) {
	if evt.Kind != events.KindPaymentConfirmation || len(evt.Payload) == 0 {
		return nil, false
	}
	var p models.PaymentConfirmationPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return nil, false
	}
	if p.Type != models.NotificationPaymentConfirmation {
		return nil, false
	}
	return &p, true
}

// Alerts returns the alerts raised so far, most recent first
func (r *NotificationRelay) Alerts() []models.Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Alert, len(r.alerts))
	copy(out, r.alerts)
	return out
}

func (r *NotificationRelay) push(alert models.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append([]models.Alert{alert}, r.alerts...)
	if len(r.alerts) > maxAlerts {
		r.alerts = r.alerts[:maxAlerts]
	}
}

// markSeen records id and reports whether it was new. The oldest ids are
// forgotten once the ring is full.
func (r *NotificationRelay) markSeen(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[id]; ok {
		return false
	}
	if old := r.seenRing[r.seenNext]; old != "" {
		delete(r.seen, old)
	}
	r.seenRing[r.seenNext] = id
	r.seenNext = (r.seenNext + 1) % len(r.seenRing)
	r.seen[id] = struct{}{}
	return true
}
