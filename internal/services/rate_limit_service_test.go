package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/luxride/booking-portal/internal/cache"
	"github.com/luxride/booking-portal/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPolicies map[string]*models.RateLimitedAction

func (p stubPolicies) GetPolicy(action string) (*models.RateLimitedAction, error) {
	return p[action], nil
}

type memoryCounterStore struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *memoryCounterStore) Increment(actor, actionType string, windowStart time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	key := actor + "|" + actionType + "|" + windowStart.String()
	m.counts[key]++
	return m.counts[key], nil
}

var signInPolicy = stubPolicies{
	ActionSignIn: {ActionType: ActionSignIn, MaxRequests: 3, WindowMinutes: 15},
}

func TestRateLimit_PostgresCounter(t *testing.T) {
	svc := NewRateLimitService(signInPolicy, NewPostgresCounter(&memoryCounterStore{}), newTestLogger())
	now := time.Date(2026, 3, 10, 9, 7, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Check(context.Background(), ActionSignIn, "ip:10.0.0.1"))
	}

	err := svc.Check(context.Background(), ActionSignIn, "ip:10.0.0.1")
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, ActionSignIn, rle.Action)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 15, 0, 0, time.UTC), rle.RetryAfter)

	// Other actors have their own window
	assert.NoError(t, svc.Check(context.Background(), ActionSignIn, "ip:10.0.0.2"))

	// Next window starts fresh
	now = now.Add(15 * time.Minute)
	assert.NoError(t, svc.Check(context.Background(), ActionSignIn, "ip:10.0.0.1"))
}

func TestRateLimit_NoPolicyIsUnlimited(t *testing.T) {
	svc := NewRateLimitService(stubPolicies{}, NewPostgresCounter(&memoryCounterStore{}), newTestLogger())

	for i := 0; i < 50; i++ {
		require.NoError(t, svc.Check(context.Background(), ActionCreateCheckout, "ip:10.0.0.1"))
	}
}

func TestRateLimit_RedisCounterConcurrent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := cache.NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { client.Close() })

	counter := NewRedisCounter(cache.NewRedisCache(client, time.Minute))
	svc := NewRateLimitService(signInPolicy, counter, newTestLogger())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if svc.Check(context.Background(), ActionSignIn, "user:abc") == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, allowed)
}
