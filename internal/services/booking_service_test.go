package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/luxride/booking-portal/internal/cache"
	"github.com/luxride/booking-portal/internal/database"
	"github.com/luxride/booking-portal/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBookings struct {
	mu        sync.Mutex
	bookings  map[uuid.UUID]*models.Booking
	listCalls int
}

func newMemoryBookings(bookings ...*models.Booking) *memoryBookings {
	m := &memoryBookings{bookings: map[uuid.UUID]*models.Booking{}}
	for _, b := range bookings {
		m.bookings[b.ID] = b
	}
	return m
}

func (m *memoryBookings) GetByID(id uuid.UUID) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *memoryBookings) ListByUser(userID uuid.UUID, limit int) ([]models.Booking, error) {
	return m.filter(func(b *models.Booking) bool { return b.UserID.Valid && b.UserID.UUID == userID }), nil
}

func (m *memoryBookings) ListByDriver(driverID uuid.UUID, limit int) ([]models.Booking, error) {
	return m.filter(func(b *models.Booking) bool {
		return b.AssignedDriverID.Valid && b.AssignedDriverID.UUID == driverID
	}), nil
}

func (m *memoryBookings) List(filter models.BookingFilter) ([]models.Booking, error) {
	m.mu.Lock()
	m.listCalls++
	m.mu.Unlock()
	out := m.filter(func(b *models.Booking) bool { return filter.Status == "" || b.Status == filter.Status })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memoryBookings) filter(keep func(*models.Booking) bool) []models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Booking{}
	for _, b := range m.bookings {
		if keep(b) {
			out = append(out, *b)
		}
	}
	return out
}

func (m *memoryBookings) CountByStatus() (map[models.BookingStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[models.BookingStatus]int{}
	for _, b := range m.bookings {
		counts[b.Status]++
	}
	return counts, nil
}

func (m *memoryBookings) UpdateDetails(id uuid.UUID, pickup, dropoff *string, date *time.Time, slot, instructions *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || !b.Status.IsEditable() {
		return database.ErrNotFound
	}
	if pickup != nil {
		b.PickupLocation = *pickup
	}
	if dropoff != nil {
		b.DropoffLocation = *dropoff
	}
	if date != nil {
		b.PickupDate = *date
	}
	if slot != nil {
		b.PickupTime = *slot
	}
	if instructions != nil {
		b.SpecialInstructions = models.NewNullString(*instructions)
	}
	return nil
}

func (m *memoryBookings) UpdateStatus(id uuid.UUID, from, to models.BookingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != from {
		return database.ErrNotFound
	}
	b.Status = to
	return nil
}

func (m *memoryBookings) AssignDriver(id, driverID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status.IsTerminal() {
		return database.ErrNotFound
	}
	b.AssignedDriverID = uuid.NullUUID{UUID: driverID, Valid: true}
	return nil
}

type bookingFixture struct {
	svc      *BookingService
	store    *memoryBookings
	profiles *memoryProfiles
	owner    Actor
	admin    Actor
	driver   Actor
	booking  *models.Booking
}

func newBookingFixture(t *testing.T, status models.BookingStatus) *bookingFixture {
	t.Helper()
	f := &bookingFixture{profiles: newMemoryProfiles()}

	for _, role := range []models.Role{models.RoleClient, models.RoleAdmin, models.RoleDriver} {
		p := &models.Profile{Email: string(role) + "@example.com", Role: role}
		require.NoError(t, f.profiles.Create(p))
		switch role {
		case models.RoleClient:
			f.owner = Actor{ID: p.ID, Role: role}
		case models.RoleAdmin:
			f.admin = Actor{ID: p.ID, Role: role}
		case models.RoleDriver:
			f.driver = Actor{ID: p.ID, Role: role}
		}
	}

	f.booking = &models.Booking{
		ID:              uuid.New(),
		UserID:          uuid.NullUUID{UUID: f.owner.ID, Valid: true},
		PickupLocation:  "100 Main St",
		DropoffLocation: "200 Oak Ave",
		PickupDate:      time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		PickupTime:      "14:30",
		Passengers:      2,
		Status:          status,
	}
	f.store = newMemoryBookings(f.booking)
	f.svc = NewBookingService(f.store, f.profiles, nil, nil, newTestLogger())
	f.svc.now = func() time.Time { return draftNow }
	return f
}

func TestBooking_GetVisibility(t *testing.T) {
	f := newBookingFixture(t, models.BookingStatusPending)

	_, err := f.svc.Get(f.booking.ID, f.owner)
	assert.NoError(t, err)

	_, err = f.svc.Get(f.booking.ID, f.admin)
	assert.NoError(t, err)

	// Unassigned driver and strangers see nothing
	_, err = f.svc.Get(f.booking.ID, f.driver)
	assert.ErrorIs(t, err, ErrBookingNotFound)
	_, err = f.svc.Get(f.booking.ID, Actor{ID: uuid.New(), Role: models.RoleClient})
	assert.ErrorIs(t, err, ErrBookingNotFound)

	_, err = f.svc.AssignDriver(context.Background(), f.booking.ID, f.driver.ID.String(), f.admin)
	require.NoError(t, err)
	_, err = f.svc.Get(f.booking.ID, f.driver)
	assert.NoError(t, err)

	assigned, err := f.svc.ListAssigned(f.driver, 10)
	require.NoError(t, err)
	assert.Len(t, assigned, 1)
}

func TestBooking_Cancel(t *testing.T) {
	tests := []struct {
		name    string
		status  models.BookingStatus
		actor   func(f *bookingFixture) Actor
		wantErr error
	}{
		{"owner cancels pending", models.BookingStatusPending, func(f *bookingFixture) Actor { return f.owner }, nil},
		{"admin cancels confirmed", models.BookingStatusConfirmed, func(f *bookingFixture) Actor { return f.admin }, nil},
		{"stranger cannot cancel", models.BookingStatusPending, func(f *bookingFixture) Actor {
			return Actor{ID: uuid.New(), Role: models.RoleClient}
		}, ErrBookingNotFound},
		{"completed is terminal", models.BookingStatusCompleted, func(f *bookingFixture) Actor { return f.owner }, ErrInvalidTransition},
		{"cancelled is terminal", models.BookingStatusCancelled, func(f *bookingFixture) Actor { return f.admin }, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBookingFixture(t, tt.status)
			b, err := f.svc.Cancel(context.Background(), f.booking.ID, tt.actor(f))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.BookingStatusCancelled, b.Status)
		})
	}
}

func TestBooking_UpdateStatus(t *testing.T) {
	f := newBookingFixture(t, models.BookingStatusConfirmed)

	_, err := f.svc.UpdateStatus(context.Background(), f.booking.ID, "teleported", f.admin)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Invalid status", verr.Fields["status"])

	_, err = f.svc.UpdateStatus(context.Background(), f.booking.ID, "pending", f.admin)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	b, err := f.svc.UpdateStatus(context.Background(), f.booking.ID, "completed", f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCompleted, b.Status)

	_, err = f.svc.UpdateStatus(context.Background(), uuid.New(), "completed", f.admin)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestBooking_AssignDriver(t *testing.T) {
	f := newBookingFixture(t, models.BookingStatusConfirmed)

	_, err := f.svc.AssignDriver(context.Background(), f.booking.ID, "nope", f.admin)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = f.svc.AssignDriver(context.Background(), f.booking.ID, f.owner.ID.String(), f.admin)
	assert.ErrorIs(t, err, ErrInvalidDriver)

	b, err := f.svc.AssignDriver(context.Background(), f.booking.ID, f.driver.ID.String(), f.admin)
	require.NoError(t, err)
	assert.Equal(t, f.driver.ID, b.AssignedDriverID.UUID)

	done := newBookingFixture(t, models.BookingStatusCompleted)
	_, err = done.svc.AssignDriver(context.Background(), done.booking.ID, done.driver.ID.String(), done.admin)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestBooking_UpdateDetails(t *testing.T) {
	f := newBookingFixture(t, models.BookingStatusPendingPayment)
	pickup := "  300 Pine Rd  "
	date := "2026-03-14"
	slot := "09:00"

	b, err := f.svc.UpdateDetails(context.Background(), f.booking.ID, f.owner, models.UpdateBookingRequest{
		PickupLocation: &pickup,
		PickupDate:     &date,
		PickupTime:     &slot,
	})
	require.NoError(t, err)
	assert.Equal(t, "300 Pine Rd", b.PickupLocation)
	assert.Equal(t, "200 Oak Ave", b.DropoffLocation)
	assert.Equal(t, 14, b.PickupDate.Day())
	assert.Equal(t, "09:00", b.PickupTime)
}

func TestBooking_UpdateDetailsValidation(t *testing.T) {
	f := newBookingFixture(t, models.BookingStatusPending)
	blank := " "
	past := "2026-03-01"
	slot := "09:10"

	_, err := f.svc.UpdateDetails(context.Background(), f.booking.ID, f.owner, models.UpdateBookingRequest{
		DropoffLocation: &blank,
		PickupDate:      &past,
		PickupTime:      &slot,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string]string{
		"dropoffLocation": "Dropoff location is required",
		"date":            "Date cannot be in the past",
		"time":            "Select a valid time slot",
	}, verr.Fields)
}

func TestBooking_UpdateDetailsRules(t *testing.T) {
	pickup := "300 Pine Rd"

	confirmed := newBookingFixture(t, models.BookingStatusConfirmed)
	_, err := confirmed.svc.UpdateDetails(context.Background(), confirmed.booking.ID, confirmed.owner,
		models.UpdateBookingRequest{PickupLocation: &pickup})
	assert.ErrorIs(t, err, ErrBookingNotEditable)

	// Admins cancel and reassign but do not rewrite a customer's trip
	pending := newBookingFixture(t, models.BookingStatusPending)
	_, err = pending.svc.UpdateDetails(context.Background(), pending.booking.ID, pending.admin,
		models.UpdateBookingRequest{PickupLocation: &pickup})
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestBooking_ListAllCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	f := newBookingFixture(t, models.BookingStatusPending)
	f.svc = NewBookingService(f.store, f.profiles, cache.NewRedisCache(client, time.Minute), nil, newTestLogger())
	ctx := context.Background()

	first, err := f.svc.ListAll(ctx, "", 50)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := f.svc.ListAll(ctx, "", 50)
	require.NoError(t, err)
	assert.Len(t, second, 1)
	assert.Equal(t, 1, f.store.listCalls)

	// A status change drops cached lists
	_, err = f.svc.Cancel(ctx, f.booking.ID, f.admin)
	require.NoError(t, err)

	third, err := f.svc.ListAll(ctx, "", 50)
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.listCalls)
	assert.Equal(t, models.BookingStatusCancelled, third[0].Status)

	pending, err := f.svc.ListAll(ctx, models.BookingStatusPending, 50)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestBooking_ListAllCachedPerPageSize(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	f := newBookingFixture(t, models.BookingStatusPending)
	for i := 0; i < 4; i++ {
		b := *f.booking
		b.ID = uuid.New()
		f.store.bookings[b.ID] = &b
	}
	f.svc = NewBookingService(f.store, f.profiles, cache.NewRedisCache(client, time.Minute), nil, newTestLogger())
	ctx := context.Background()

	one, err := f.svc.ListAll(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)

	all, err := f.svc.ListAll(ctx, "", 100)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	// Zero falls back to the default page size and shares its entry
	defaulted, err := f.svc.ListAll(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, defaulted, 5)
	assert.Equal(t, 2, f.store.listCalls)
}
