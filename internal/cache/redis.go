// Package cache holds the Redis-backed read cache for admin booking lists and
// the fixed-window counters used by the rate limiter.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/luxride/booking-portal/internal/models"
	"github.com/redis/go-redis/v9"
)

const bookingsPrefix = "cache:bookings:"

// BookingCache caches booking list reads
type BookingCache interface {
	GetBookings(ctx context.Context, key string) ([]models.Booking, bool, error)
	SetBookings(ctx context.Context, key string, bookings []models.Booking) error
	InvalidateBookings(ctx context.Context) error
}

// RedisCache implements BookingCache and WindowCounter on Redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient opens a client for addr
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// NewRedisCache creates a cache whose booking entries live for ttl
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// GetBookings returns the cached list for key. ok is false on a miss.
func (c *RedisCache) GetBookings(ctx context.Context, key string) ([]models.Booking, bool, error) {
	data, err := c.client.Get(ctx, bookingsPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cached bookings: %w", err)
	}

	var bookings []models.Booking
	if err := json.Unmarshal(data, &bookings); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached bookings: %w", err)
	}
	return bookings, true, nil
}

// SetBookings stores a list under key
func (c *RedisCache) SetBookings(ctx context.Context, key string, bookings []models.Booking) error {
	payload, err := json.Marshal(bookings)
	if err != nil {
		return fmt.Errorf("failed to encode bookings: %w", err)
	}
	return c.client.Set(ctx, bookingsPrefix+key, payload, c.ttl).Err()
}

// InvalidateBookings drops every cached booking list
func (c *RedisCache) InvalidateBookings(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, bookingsPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached bookings: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// The expiry is set only by the first increment so the window stays fixed.
var incrWindowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// IncrWindow atomically increments key, starting a window of the given length on
// first use, and returns the new value
func (c *RedisCache) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := incrWindowScript.Run(ctx, c.client, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to increment window counter: %w", err)
	}
	return n, nil
}

// Ping checks connectivity
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// NoopCache never hits. Used when Redis is not configured.
type NoopCache struct{}

func (NoopCache) GetBookings(ctx context.Context, key string) ([]models.Booking, bool, error) {
	return nil, false, nil
}

func (NoopCache) SetBookings(ctx context.Context, key string, bookings []models.Booking) error {
	return nil
}

func (NoopCache) InvalidateBookings(ctx context.Context) error { return nil }
