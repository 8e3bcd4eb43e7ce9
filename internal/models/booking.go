package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the payment status of a booking
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// CanTransitionTo reports whether a payment may move from s to next.
// Payment status only ever leaves pending.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return s == PaymentStatusPending && (next == PaymentStatusCompleted || next == PaymentStatusFailed)
}

// BookingStatus represents the lifecycle status of a booking
type BookingStatus string

const (
	BookingStatusPending        BookingStatus = "pending"
	BookingStatusPendingPayment BookingStatus = "pending_payment"
	BookingStatusConfirmed      BookingStatus = "confirmed"
	BookingStatusCancelled      BookingStatus = "cancelled"
	BookingStatusCompleted      BookingStatus = "completed"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:        {BookingStatusPendingPayment, BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusPendingPayment: {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed:      {BookingStatusCompleted, BookingStatusCancelled},
}

// ParseBookingStatus validates a status name
func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch st := BookingStatus(s); st {
	case BookingStatusPending, BookingStatusPendingPayment, BookingStatusConfirmed,
		BookingStatusCancelled, BookingStatusCompleted:
		return st, true
	}
	return "", false
}

// IsTerminal reports whether no further transitions are allowed
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusCompleted
}

// IsEditable reports whether the owner may still change trip details
func (s BookingStatus) IsEditable() bool {
	return s == BookingStatusPending || s == BookingStatusPendingPayment
}

// CanTransitionTo reports whether a booking may move from s to next
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Booking represents a ride request
type Booking struct {
	ID                  uuid.UUID     `json:"id" db:"id"`
	UserID              uuid.NullUUID `json:"user_id" db:"user_id"` // null for guest checkout
	PickupLocation      string        `json:"pickup_location" db:"pickup_location"`
	DropoffLocation     string        `json:"dropoff_location" db:"dropoff_location"`
	PickupDate          time.Time     `json:"pickup_date" db:"pickup_date"`
	PickupTime          string        `json:"pickup_time" db:"pickup_time"`
	Passengers          int           `json:"passengers" db:"passengers"`
	Status              BookingStatus `json:"status" db:"status"`
	SpecialInstructions NullString    `json:"special_instructions" db:"special_instructions"`
	PaymentStatus       PaymentStatus `json:"payment_status" db:"payment_status"`
	PaymentAmount       NullString    `json:"payment_amount" db:"payment_amount"`
	EstimatedCost       float64       `json:"estimated_cost" db:"estimated_cost"`
	DistanceText        NullString    `json:"distance_text" db:"distance_text"`
	CheckoutSessionID   NullString    `json:"checkout_session_id,omitempty" db:"checkout_session_id"`
	AssignedDriverID    uuid.NullUUID `json:"assigned_driver_id" db:"assigned_driver_id"`
	CreatedAt           time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at" db:"updated_at"`
}

// CustomerDetails is the contact block of a checkout request
type CustomerDetails struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// BookingDetails is the trip block of a checkout request
type BookingDetails struct {
	PickupLocation      string `json:"pickupLocation"`
	DropoffLocation     string `json:"dropoffLocation"`
	Date                string `json:"date"` // YYYY-MM-DD
	Time                string `json:"time"` // HH:MM on the 30 minute grid
	Passengers          int    `json:"passengers"`
	SpecialInstructions string `json:"specialInstructions"`
}

// CheckoutRequest is the input of create-checkout
type CheckoutRequest struct {
	Amount          float64         `json:"amount"`
	CustomerDetails CustomerDetails `json:"customerDetails"`
	BookingDetails  BookingDetails  `json:"bookingDetails"`
}

// CheckoutResponse is the output of create-checkout
type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
	BookingID string `json:"bookingId"`
}

// EstimateRequest asks for a distance/cost estimate
type EstimateRequest struct {
	PickupLocation  string `json:"pickupLocation" binding:"required"`
	DropoffLocation string `json:"dropoffLocation" binding:"required"`
}

// UpdateBookingRequest holds the trip fields an owner may change
type UpdateBookingRequest struct {
	PickupLocation      *string `json:"pickup_location,omitempty"`
	DropoffLocation     *string `json:"dropoff_location,omitempty"`
	PickupDate          *string `json:"pickup_date,omitempty"` // YYYY-MM-DD
	PickupTime          *string `json:"pickup_time,omitempty"`
	SpecialInstructions *string `json:"special_instructions,omitempty"`
}

// UpdateBookingStatusRequest is an admin status change
type UpdateBookingStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// AssignDriverRequest is an admin driver assignment
type AssignDriverRequest struct {
	DriverID string `json:"driver_id" binding:"required"`
}

// BookingFilter narrows admin booking lists
type BookingFilter struct {
	Status BookingStatus
	Limit  int
}
