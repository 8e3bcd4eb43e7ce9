package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NotificationType distinguishes persisted admin notifications
type NotificationType string

const (
	NotificationPaymentConfirmation NotificationType = "payment_confirmation"
	NotificationBookingCreated      NotificationType = "booking_created"
)

// Notification is a message addressed to one profile
type Notification struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	RecipientID uuid.UUID        `json:"recipient_id" db:"recipient_id"`
	Type        NotificationType `json:"type" db:"type"`
	BookingID   uuid.NullUUID    `json:"booking_id" db:"booking_id"`
	Payload     json.RawMessage  `json:"payload" db:"payload"`
	ReadAt      NullTime         `json:"read_at" db:"read_at"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
}

// PaymentConfirmationPayload is the body of a payment_confirmation notification
type PaymentConfirmationPayload struct {
	Type            NotificationType `json:"type"`
	BookingID       string           `json:"bookingId"`
	Amount          string           `json:"amount"`
	CustomerName    string           `json:"customerName"`
	PickupLocation  string           `json:"pickupLocation"`
	DropoffLocation string           `json:"dropoffLocation"`
}

// AlertKind is the in-app alert category raised by the relay
type AlertKind string

const (
	AlertPaymentConfirmed AlertKind = "payment_confirmed"
	AlertNewBooking       AlertKind = "new_booking"
)

// Alert is an in-memory admin alert
type Alert struct {
	ID        string    `json:"id"`
	Kind      AlertKind `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	BookingID string    `json:"booking_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
