package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/luxride/booking-portal/internal/cache"
	"github.com/sirupsen/logrus"
)

// StaleBookingExpirer cancels abandoned checkouts
type StaleBookingExpirer interface {
	ExpireStalePending(cutoff time.Time) ([]uuid.UUID, error)
}

// ReconciliationService cancels bookings whose checkout was never completed.
// A booking is stale once it has sat in pending_payment for longer than the TTL.
type ReconciliationService struct {
	bookings StaleBookingExpirer
	cache    cache.BookingCache
	ttl      time.Duration
	logger   *logrus.Logger
	now      func() time.Time
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(bookings StaleBookingExpirer, bookingCache cache.BookingCache, ttl time.Duration, logger *logrus.Logger) *ReconciliationService {
	if bookingCache == nil {
		bookingCache = cache.NoopCache{}
	}
	return &ReconciliationService{
		bookings: bookings,
		cache:    bookingCache,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Sweep expires stale pending checkouts and returns the cancelled booking ids
func (s *ReconciliationService) Sweep(ctx context.Context) ([]uuid.UUID, error) {
	cutoff := s.now().Add(-s.ttl)

	ids, err := s.bookings.ExpireStalePending(cutoff)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}

	if err := s.cache.InvalidateBookings(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate booking cache")
	}

	s.logger.WithFields(logrus.Fields{
		"expired": len(ids),
		"cutoff":  cutoff,
	}).Info("Expired abandoned checkouts")

	return ids, nil
}
