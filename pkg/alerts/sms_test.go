package alerts_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ogulcanaydogan/dwlr-guardian/pkg/alerts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMSNotifier_Name(t *testing.T) {
	n := alerts.NewSMSNotifier(alerts.SMSConfig{})
	assert.Equal(t, "sms", n.Name())
}

func TestSMSNotifier_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret-key", r.Header.Get("authorization"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "TXTIND", r.PostForm.Get("sender_id"))
		assert.Equal(t, "v3", r.PostForm.Get("route"))
		assert.Equal(t, "9999999999", r.PostForm.Get("numbers"))
		assert.Contains(t, r.PostForm.Get("message"), "1.50")

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"return":true}`))
	}))
	defer server.Close()

	n := alerts.NewSMSNotifier(alerts.SMSConfig{
		Endpoint: server.URL,
		APIKey:   "secret-key",
		Phone:    "9999999999",
		Timeout:  5 * time.Second,
	})
	require.NoError(t, n.Send(context.Background(), lowAlert()))
}

func TestSMSNotifier_Send_NonOKStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"accepted", http.StatusAccepted},
		{"unauthorized", http.StatusUnauthorized},
		{"server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("invalid key"))
			}))
			defer server.Close()

			n := alerts.NewSMSNotifier(alerts.SMSConfig{Endpoint: server.URL, APIKey: "k", Phone: "1"})
			err := n.Send(context.Background(), lowAlert())
			require.Error(t, err)

			var de *alerts.DeliveryError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, "sms", de.Channel)
			assert.Contains(t, err.Error(), "invalid key")
		})
	}
}

func TestSMSNotifier_Send_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	n := alerts.NewSMSNotifier(alerts.SMSConfig{Endpoint: server.URL, Timeout: 50 * time.Millisecond})
	err := n.Send(context.Background(), lowAlert())
	require.Error(t, err)

	var de *alerts.DeliveryError
	assert.True(t, errors.As(err, &de))
}
