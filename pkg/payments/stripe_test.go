package payments

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

const testWebhookSecret = "whsec_test_secret"

func newTestGateway(t *testing.T, handler http.HandlerFunc) *StripeGateway {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(server.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewStripeGateway("sk_test_123", testWebhookSecret, &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})
}

func TestCreateCheckoutSession(t *testing.T) {
	var form url.Values
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "cs_test_1", "object": "checkout.session", "url": "https://checkout.stripe.com/c/pay/cs_test_1"}`))
	})

	session, err := gateway.CreateCheckoutSession(context.Background(), CheckoutParams{
		BookingID:     "b-1",
		AmountCents:   6500,
		Currency:      "usd",
		Description:   "From 100 Main St to 200 Oak Ave",
		CustomerEmail: "jo@example.com",
		SuccessURL:    "https://example.com/ok",
		CancelURL:     "https://example.com/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", session.URL)

	assert.Equal(t, "6500", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "From 100 Main St to 200 Oak Ave", form.Get("line_items[0][price_data][product_data][description]"))
	assert.Equal(t, "b-1", form.Get("metadata[booking_id]"))
	assert.Equal(t, "payment", form.Get("mode"))
}

func TestCreateCheckoutSession_ProviderError(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"type": "invalid_request_error", "message": "bad amount"}}`))
	})

	_, err := gateway.CreateCheckoutSession(context.Background(), CheckoutParams{BookingID: "b", AmountCents: 1, Currency: "usd"})
	assert.Error(t, err)
}

func TestParseWebhook_CheckoutCompleted(t *testing.T) {
	gateway := NewStripeGateway("sk_test", testWebhookSecret, nil)
	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_test_1",
			"object": "checkout.session",
			"amount_total": 6500,
			"metadata": {"booking_id": "b-1"}
		}}
	}`)

	evt, err := gateway.ParseWebhook(payload, SignatureHeader(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", evt.ID)
	assert.Equal(t, EventCheckoutCompleted, evt.Type)
	assert.Equal(t, "cs_test_1", evt.SessionID)
	assert.Equal(t, "b-1", evt.BookingID)
	assert.Equal(t, int64(6500), evt.AmountTotal)
}

func TestParseWebhook_UnknownTypeKeepsIDOnly(t *testing.T) {
	gateway := NewStripeGateway("sk_test", testWebhookSecret, nil)
	payload := []byte(`{"id": "evt_2", "object": "event", "type": "customer.created", "data": {"object": {"id": "cus_1", "object": "customer"}}}`)

	evt, err := gateway.ParseWebhook(payload, SignatureHeader(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "customer.created", evt.Type)
	assert.Empty(t, evt.BookingID)
}

func TestParseWebhook_RejectsBadSignatures(t *testing.T) {
	gateway := NewStripeGateway("sk_test", testWebhookSecret, nil)
	payload := []byte(`{"id": "evt_1", "object": "event", "type": "checkout.session.completed"}`)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong secret", SignatureHeader(payload, "whsec_other", time.Now())},
		{"stale timestamp", SignatureHeader(payload, testWebhookSecret, time.Now().Add(-time.Hour))},
		{"garbage", "not-a-signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gateway.ParseWebhook(payload, tt.header)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

func TestParseWebhook_TamperedPayload(t *testing.T) {
	gateway := NewStripeGateway("sk_test", testWebhookSecret, nil)
	payload := []byte(`{"id": "evt_1", "object": "event", "type": "checkout.session.completed"}`)
	header := SignatureHeader(payload, testWebhookSecret, time.Now())

	tampered := []byte(`{"id": "evt_9", "object": "event", "type": "checkout.session.completed"}`)
	_, err := gateway.ParseWebhook(tampered, header)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
