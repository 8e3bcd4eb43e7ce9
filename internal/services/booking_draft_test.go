package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var draftNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func validDraft() Draft {
	return Draft{
		Name:            "Jordan Lee",
		Email:           "jordan@example.com",
		Phone:           "555-0100",
		PickupLocation:  "100 Main St",
		DropoffLocation: "200 Oak Ave",
		Date:            "2026-03-12",
		Time:            "14:30",
		Passengers:      2,
	}
}

func TestDraftValidate_Empty(t *testing.T) {
	errs := Draft{}.Validate(draftNow)

	assert.Equal(t, map[string]string{
		"name":            "Name is required",
		"email":           "Email is required",
		"phone":           "Phone is required",
		"pickupLocation":  "Pickup location is required",
		"dropoffLocation": "Dropoff location is required",
		"date":            "Date is required",
		"time":            "Time is required",
		"passengers":      "Passengers is required",
	}, errs)
}

func TestDraftValidate_InvalidEmail(t *testing.T) {
	errs := Draft{Name: "Jo", Email: "bad"}.Validate(draftNow)

	assert.Equal(t, "Invalid email format", errs["email"])
	assert.NotContains(t, errs, "name")
}

func TestDraftValidate_Valid(t *testing.T) {
	assert.Empty(t, validDraft().Validate(draftNow))
}

func TestDraftValidate_DateAndTime(t *testing.T) {
	d := validDraft()
	d.Date = "2026-03-09"
	d.Time = "14:15"
	errs := d.Validate(draftNow)

	assert.Equal(t, "Date cannot be in the past", errs["date"])
	assert.Equal(t, "Select a valid time slot", errs["time"])

	d.Date = "03/12/2026"
	assert.Equal(t, "Invalid date format", d.Validate(draftNow)["date"])

	d.Date = "2026-03-10"
	assert.NotContains(t, d.Validate(draftNow), "date")
}

func TestTimeSlots(t *testing.T) {
	slots := TimeSlots()

	require.Len(t, slots, 48)
	assert.Equal(t, "00:00", slots[0])
	assert.Equal(t, "00:30", slots[1])
	assert.Equal(t, "23:30", slots[47])
	assert.True(t, IsTimeSlot("12:00"))
	assert.False(t, IsTimeSlot("12:15"))
}

func TestDraftMachine_PassengersRejectedKeepsValue(t *testing.T) {
	m := NewDraftMachine(&stubEstimator{}, func() time.Time { return draftNow })
	require.Equal(t, 1, m.Draft().Passengers)

	require.NoError(t, m.SetPassengers(3))
	assert.ErrorIs(t, m.SetPassengers(5), ErrInvalidPassengers)
	assert.ErrorIs(t, m.SetPassengers(0), ErrInvalidPassengers)
	assert.Equal(t, 3, m.Draft().Passengers)

	require.NoError(t, m.Update(func(d *Draft) { d.Passengers = 9 }))
	assert.Equal(t, 3, m.Draft().Passengers)
}

func TestDraftMachine_SubmitInvalidStaysEditing(t *testing.T) {
	est := &stubEstimator{estimate: tenMileEstimate()}
	m := NewDraftMachine(est, func() time.Time { return draftNow })

	err := m.Submit(context.Background())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, DraftEditing, m.State())
	assert.Equal(t, "Name is required", m.Errors()["name"])
	assert.Equal(t, 0, est.calls)
}

func TestDraftMachine_Lifecycle(t *testing.T) {
	est := &stubEstimator{estimate: tenMileEstimate()}
	m := NewDraftMachine(est, func() time.Time { return draftNow })

	require.NoError(t, m.Update(func(d *Draft) {
		*d = validDraft()
	}))
	require.NoError(t, m.Submit(context.Background()))
	assert.Equal(t, DraftConfirming, m.State())
	assert.Equal(t, "$65.00", m.Estimate().Display)

	assert.ErrorIs(t, m.Update(func(d *Draft) {}), ErrDraftState)

	require.NoError(t, m.Edit())
	assert.Equal(t, DraftEditing, m.State())
	assert.Nil(t, m.Estimate())

	require.NoError(t, m.Submit(context.Background()))
	require.NoError(t, m.Confirm())
	assert.Equal(t, DraftSubmitted, m.State())
	assert.ErrorIs(t, m.Edit(), ErrDraftState)
	assert.Equal(t, 2, est.calls)
}

func TestDraftMachine_EstimatorFailureReturnsToEditing(t *testing.T) {
	m := NewDraftMachine(&stubEstimator{err: ErrGeocoding}, func() time.Time { return draftNow })
	require.NoError(t, m.Update(func(d *Draft) { *d = validDraft() }))

	assert.ErrorIs(t, m.Submit(context.Background()), ErrGeocoding)
	assert.Equal(t, DraftEditing, m.State())
}
