package services

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/luxride/booking-portal/internal/config"
	"github.com/luxride/booking-portal/internal/database"
	"github.com/luxride/booking-portal/pkg/events"
	"github.com/luxride/booking-portal/pkg/maps"
	"github.com/luxride/booking-portal/pkg/payments"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

var testPricing = config.PricingConfig{RatePerMile: 5, BaseFee: 15, Currency: "usd"}

type stubDistances struct {
	distance *maps.Distance
	err      error
}

func (s stubDistances) Distance(ctx context.Context, origin, destination string) (*maps.Distance, error) {
	return s.distance, s.err
}

type stubEstimator struct {
	mu       sync.Mutex
	estimate *Estimate
	err      error
	calls    int
}

func (s *stubEstimator) Estimate(ctx context.Context, pickup, dropoff string) (*Estimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.estimate, s.err
}

func tenMileEstimate() *Estimate {
	return &Estimate{DistanceText: "10.0 mi", Miles: 10, TotalCost: 65, Display: "$65.00"}
}

type stubGateway struct {
	mu      sync.Mutex
	session *payments.Session
	event   *payments.Event
	err     error
	params  []payments.CheckoutParams
}

func (g *stubGateway) CreateCheckoutSession(ctx context.Context, p payments.CheckoutParams) (*payments.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.params = append(g.params, p)
	return g.session, g.err
}

func (g *stubGateway) ParseWebhook(payload []byte, signature string) (*payments.Event, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.event, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func newMockDB(t *testing.T) (*database.PostgresDB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &database.PostgresDB{DB: sqlx.NewDb(db, "sqlmock")}, mock
}

var (
	bookingRowColumns = []string{
		"id", "user_id", "pickup_location", "dropoff_location", "pickup_date", "pickup_time",
		"passengers", "status", "special_instructions", "payment_status", "payment_amount", "estimated_cost",
		"distance_text", "checkout_session_id", "assigned_driver_id", "created_at", "updated_at",
	}
	profileRowColumns = []string{
		"id", "email", "password_hash", "first_name", "last_name", "phone", "role",
		"mfa_enabled", "mfa_secret", "created_at", "updated_at",
	}
)
