package alerts_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ogulcanaydogan/dwlr-guardian/pkg/alerts"
	"github.com/ogulcanaydogan/dwlr-guardian/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackNotifier_Name(t *testing.T) {
	n := alerts.NewSlackNotifier("https://hooks.slack.com/test", "#test", time.Second)
	assert.Equal(t, "slack", n.Name())
}

func TestSlackNotifier_Send(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, http.MethodPost, r.Method)

		err := json.NewDecoder(r.Body).Decode(&received)
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := alerts.NewSlackNotifier(server.URL, "#groundwater", 10*time.Second)
	require.NoError(t, n.Send(context.Background(), lowAlert()))

	assert.Equal(t, "#groundwater", received["channel"])
	attachments, ok := received["attachments"].([]any)
	require.True(t, ok)
	require.Len(t, attachments, 1)
	first := attachments[0].(map[string]any)
	assert.Equal(t, "#ff9900", first["color"])
	assert.Contains(t, first["text"], "1.50")
	assert.Greater(t, first["ts"], float64(0), "unset RaisedAt falls back to the send time")
}

func TestSlackNotifier_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := alerts.NewSlackNotifier(server.URL, "#test", 10*time.Second)
	err := n.Send(context.Background(), lowAlert())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestSlackNotifier_StateColors(t *testing.T) {
	tests := []struct {
		state model.AlertState
		color string
	}{
		{model.StateLow, "#ff9900"},
		{model.StateHigh, "#cc0000"},
		{model.StateNormal, "#36a64f"},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			var color string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var p struct {
					Attachments []struct {
						Color string `json:"color"`
					} `json:"attachments"`
				}
				_ = json.NewDecoder(r.Body).Decode(&p)
				if len(p.Attachments) > 0 {
					color = p.Attachments[0].Color
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			a := lowAlert()
			a.State = tt.state
			n := alerts.NewSlackNotifier(server.URL, "#test", 10*time.Second)
			require.NoError(t, n.Send(context.Background(), a))
			assert.Equal(t, tt.color, color)
		})
	}
}
