package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResendSender_Send(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "msg_123"}`))
	}))
	defer server.Close()

	sender := NewResendSender("re_test", "LuxRide <bookings@example.com>")
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	sender.client.BaseURL = base

	id, err := sender.Send(context.Background(), Message{
		To:      []string{"desk@example.com"},
		Subject: "New booking",
		HTML:    "<p>hi</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_123", id)
	assert.Equal(t, "New booking", got["subject"])
	assert.Equal(t, "LuxRide <bookings@example.com>", got["from"])
}

func TestResendSender_NoRecipients(t *testing.T) {
	sender := NewResendSender("re_test", "from@example.com")
	_, err := sender.Send(context.Background(), Message{Subject: "x"})
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestLogSender_Send(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)

	id, err := NewLogSender(logger).Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, "logged", id)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "Hello", hook.LastEntry().Data["subject"])
}
