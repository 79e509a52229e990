package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirphl/jobboard-alerts/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatIDFromPhone(t *testing.T) {
	cases := map[string]string{
		"0501234567":       "972501234567@c.us",
		"050-123-4567":     "972501234567@c.us",
		"+972 50 123 4567": "972501234567@c.us",
		"021234567":        "97221234567@c.us",
	}
	for in, want := range cases {
		got, err := ChatIDFromPhone(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, bad := range []string{"", "12345", "+1 555 123 4567"} {
		_, err := ChatIDFromPhone(bad)
		assert.Error(t, err, bad)
	}
}

func newTestMessagingClient(url string) *HTTPMessagingClient {
	c := NewHTTPMessagingClient(&config.MessagingConfig{
		BaseURL:       url,
		InstanceID:    "1101",
		APIToken:      "secret",
		RatePerMinute: 6000,
		RetryAttempts: 3,
		Timeout:       2 * time.Second,
	})
	c.backoff = time.Millisecond
	return c
}

func TestHTTPMessagingClient_SendMessage(t *testing.T) {
	var got messagingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/waInstance1101/sendMessage/secret", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(messagingResponse{IDMessage: "abc"})
	}))
	defer srv.Close()

	err := newTestMessagingClient(srv.URL).SendMessage(context.Background(), "0501234567", "שלום")
	require.NoError(t, err)
	assert.Equal(t, "972501234567@c.us", got.ChatID)
	assert.Equal(t, "שלום", got.Message)
}

func TestHTTPMessagingClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(messagingResponse{IDMessage: "abc"})
	}))
	defer srv.Close()

	err := newTestMessagingClient(srv.URL).SendMessage(context.Background(), "0501234567", "hi")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPMessagingClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := newTestMessagingClient(srv.URL).SendMessage(context.Background(), "0501234567", "hi")
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestMockMessagingClient(t *testing.T) {
	m := NewMockMessagingClient()
	require.NoError(t, m.SendMessage(context.Background(), "0501234567", "hi"))
	require.Len(t, m.Sent, 1)
	assert.Equal(t, "hi", m.Sent[0].Text)
}
