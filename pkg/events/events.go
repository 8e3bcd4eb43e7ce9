// Package events carries booking notifications between the writers (checkout,
// payment webhook) and the admin notification relay.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind identifies what an event announces
type Kind string

const (
	KindBookingCreated      Kind = "booking_created"
	KindPaymentConfirmation Kind = "payment_confirmation"
)

// ErrClosed is returned by Publish after Close
var ErrClosed = errors.New("events: bus closed")

// Event is the envelope published on the notification topic
type Event struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	BookingID string          `json:"booking_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewEvent builds an envelope with a fresh id. payload may be nil.
func NewEvent(kind Kind, bookingID string, payload interface{}) (Event, error) {
	evt := Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		BookingID: bookingID,
		CreatedAt: time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
		evt.Payload = raw
	}
	return evt, nil
}

// Handler processes one delivered event. Delivery is at-least-once.
type Handler func(ctx context.Context, evt Event) error

// Publisher sends events
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Bus is a publisher that can also be consumed
type Bus interface {
	Publisher
	// Subscribe blocks delivering events to handler until ctx is done or the bus closes
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}
