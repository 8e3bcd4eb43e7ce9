package services

import (
	"context"
	"testing"

	"github.com/luxride/booking-portal/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboard_Admin(t *testing.T) {
	f := newBookingFixture(t, models.BookingStatusConfirmed)
	apps := &memoryApplications{}
	require.NoError(t, apps.Create(&models.DriverApplication{UserID: f.owner.ID, Status: models.ApplicationStatusPending}))

	d, err := NewDashboardService(f.svc, apps).Summary(context.Background(), f.admin, "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, d.Role)
	assert.Len(t, d.Bookings, 1)
	assert.Equal(t, 1, d.StatusCounts[models.BookingStatusConfirmed])
	assert.Len(t, d.PendingApplications, 1)
	assert.Nil(t, d.Application)

	_, err = NewDashboardService(f.svc, apps).Summary(context.Background(), f.admin, "lost")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDashboard_Client(t *testing.T) {
	f := newBookingFixture(t, models.BookingStatusPending)
	apps := &memoryApplications{}
	require.NoError(t, apps.Create(&models.DriverApplication{UserID: f.owner.ID, Status: models.ApplicationStatusPending}))

	d, err := NewDashboardService(f.svc, apps).Summary(context.Background(), f.owner, "")
	require.NoError(t, err)
	assert.Len(t, d.Bookings, 1)
	assert.Nil(t, d.AssignedBookings)
	assert.Nil(t, d.StatusCounts)
	require.NotNil(t, d.Application)
	assert.Equal(t, models.ApplicationStatusPending, d.Application.Status)
}

func TestDashboard_Driver(t *testing.T) {
	f := newBookingFixture(t, models.BookingStatusConfirmed)
	_, err := f.svc.AssignDriver(context.Background(), f.booking.ID, f.driver.ID.String(), f.admin)
	require.NoError(t, err)

	d, err := NewDashboardService(f.svc, &memoryApplications{}).Summary(context.Background(), f.driver, "")
	require.NoError(t, err)
	assert.Empty(t, d.Bookings)
	assert.Len(t, d.AssignedBookings, 1)
}
