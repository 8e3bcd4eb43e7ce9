package services

import (
	"context"
	"fmt"
	"time"

	"github.com/luxride/booking-portal/internal/models"
	"github.com/sirupsen/logrus"
)

// Rate limited actions seeded in rate_limited_actions
const (
	ActionSignIn            = "sign_in"
	ActionSignUp            = "sign_up"
	ActionCreateCheckout    = "create_checkout"
	ActionDriverApplication = "driver_application"
	ActionSendNotification  = "send_notification"
)

// RateLimitError represents a rate limit exceeded error
type RateLimitError struct {
	Action     string
	Message    string
	RetryAfter time.Time
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// PolicyStore loads rate-limit policies
type PolicyStore interface {
	GetPolicy(actionType string) (*models.RateLimitedAction, error)
}

// WindowCounter atomically increments the counter of one fixed window and
// returns the count including this request
type WindowCounter interface {
	Increment(ctx context.Context, actor, action string, windowStart time.Time, window time.Duration) (int64, error)
}

// RateLimitService enforces per-actor fixed-window limits. The increment and
// the comparison happen in one atomic step, so concurrent requests from one
// actor cannot both slip under the limit.
type RateLimitService struct {
	policies PolicyStore
	counter  WindowCounter
	logger   *logrus.Logger
	now      func() time.Time
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(policies PolicyStore, counter WindowCounter, logger *logrus.Logger) *RateLimitService {
	return &RateLimitService{
		policies: policies,
		counter:  counter,
		logger:   logger,
		now:      time.Now,
	}
}

// Check counts one request by actor for action and returns a *RateLimitError
// once the policy's limit is exceeded. Actions without a policy are unlimited.
func (s *RateLimitService) Check(ctx context.Context, action, actor string) error {
	policy, err := s.policies.GetPolicy(action)
	if err != nil {
		return fmt.Errorf("failed to load rate limit policy: %w", err)
	}
	if policy == nil {
		return nil
	}

	window := time.Duration(policy.WindowMinutes) * time.Minute
	windowStart := s.now().UTC().Truncate(window)

	count, err := s.counter.Increment(ctx, actor, action, windowStart, window)
	if err != nil {
		return fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count > int64(policy.MaxRequests) {
		retryAfter := windowStart.Add(window)
		s.logger.WithFields(logrus.Fields{
			"action":      action,
			"actor":       actor,
			"count":       count,
			"retry_after": retryAfter,
		}).Warn("Rate limit exceeded")

		return &RateLimitError{
			Action:     action,
			Message:    fmt.Sprintf("Too many requests. Please try again after %s", retryAfter.Format("15:04:05")),
			RetryAfter: retryAfter,
		}
	}

	return nil
}

// CounterStore is the Postgres counter table
type CounterStore interface {
	Increment(actor, actionType string, windowStart time.Time) (int, error)
}

// PostgresCounter keeps window counters in rate_limit_counters
type PostgresCounter struct {
	store CounterStore
}

// NewPostgresCounter wraps the counter repository
func NewPostgresCounter(store CounterStore) *PostgresCounter {
	return &PostgresCounter{store: store}
}

func (c *PostgresCounter) Increment(ctx context.Context, actor, action string, windowStart time.Time, window time.Duration) (int64, error) {
	n, err := c.store.Increment(actor, action, windowStart)
	return int64(n), err
}

// KeyedIncrementer is a Redis-style counter with expiry
type KeyedIncrementer interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter keeps window counters in Redis
type RedisCounter struct {
	redis KeyedIncrementer
}

// NewRedisCounter wraps a Redis incrementer
func NewRedisCounter(redis KeyedIncrementer) *RedisCounter {
	return &RedisCounter{redis: redis}
}

func (c *RedisCounter) Increment(ctx context.Context, actor, action string, windowStart time.Time, window time.Duration) (int64, error) {
	key := fmt.Sprintf("rl:%s:%s:%d", action, actor, windowStart.Unix())
	return c.redis.IncrWindow(ctx, key, window)
}
