package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/luxride/booking-portal/internal/models"
)

// RateLimitRepository reads rate-limit policies and maintains window counters
type RateLimitRepository struct {
	db DB
}

// NewRateLimitRepository creates a new RateLimitRepository
func NewRateLimitRepository(db DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// GetPolicy returns the policy for an action, or nil if the action is unlimited
func (r *RateLimitRepository) GetPolicy(actionType string) (*models.RateLimitedAction, error) {
	var policy models.RateLimitedAction
	err := r.db.Get(&policy,
		`SELECT action_type, max_requests, window_minutes FROM rate_limited_actions WHERE action_type = $1`,
		actionType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get rate limit policy: %w", err)
	}
	return &policy, nil
}

// Increment atomically bumps the counter of (actor, action, window) and returns the new count
func (r *RateLimitRepository) Increment(actor, actionType string, windowStart time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(`
		INSERT INTO rate_limit_counters (actor, action_type, window_start, count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (actor, action_type, window_start)
		DO UPDATE SET count = rate_limit_counters.count + 1
		RETURNING count
	`, actor, actionType, windowStart).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	return count, nil
}

// PurgeBefore removes counters of windows that started before cutoff
func (r *RateLimitRepository) PurgeBefore(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM rate_limit_counters WHERE window_start < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge rate limit counters: %w", err)
	}
	return result.RowsAffected()
}
