// Package payments wraps the hosted checkout provider used to take ride payments.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Event types the booking flow reacts to
const (
	EventCheckoutCompleted          = "checkout.session.completed"
	EventCheckoutExpired            = "checkout.session.expired"
	EventCheckoutAsyncPaymentFailed = "checkout.session.async_payment_failed"
)

// MetadataBookingID is the checkout session metadata key holding our booking id
const MetadataBookingID = "booking_id"

var (
	// ErrInvalidSignature is returned when the webhook signature header is missing or wrong
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")

	// ErrMalformedEvent is returned when a signed event cannot be decoded
	ErrMalformedEvent = errors.New("payments: malformed webhook event")
)

// CheckoutParams describes one single-line-item checkout session
type CheckoutParams struct {
	BookingID     string
	AmountCents   int64
	Currency      string
	Description   string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// Session is the created hosted checkout page
type Session struct {
	ID  string
	URL string
}

// Event is a verified webhook event reduced to the fields the booking flow needs
type Event struct {
	ID          string
	Type        string
	SessionID   string
	BookingID   string
	AmountTotal int64 // minor units
}

// Gateway creates checkout sessions and verifies provider callbacks
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*Session, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// StripeGateway implements Gateway on Stripe Checkout
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway creates a gateway. backends may be nil to use Stripe's API.
func NewStripeGateway(secretKey, webhookSecret string, backends *stripe.Backends) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeGateway{api: api, webhookSecret: webhookSecret}
}

// CreateCheckoutSession requests a card payment session keyed to the booking id
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(p.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String("Ride booking"),
						Description: stripe.String(p.Description),
					},
					UnitAmount: stripe.Int64(p.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		ClientReferenceID: stripe.String(p.BookingID),
	}
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	params.AddMetadata(MetadataBookingID, p.BookingID)
	params.Context = ctx

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &Session{ID: s.ID, URL: s.URL}, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes checkout session events.
// Events of other object types come back with only ID and Type set.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if signature == "" || g.webhookSecret == "" {
		return nil, ErrInvalidSignature
	}

	evt, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: evt.ID, Type: string(evt.Type)}

	switch out.Type {
	case EventCheckoutCompleted, EventCheckoutExpired, EventCheckoutAsyncPaymentFailed:
		if evt.Data == nil {
			return nil, ErrMalformedEvent
		}
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		out.SessionID = cs.ID
		out.BookingID = cs.Metadata[MetadataBookingID]
		out.AmountTotal = cs.AmountTotal
	}

	return out, nil
}
