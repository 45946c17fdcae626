package alerts_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ogulcanaydogan/dwlr-guardian/pkg/alerts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBotAPI struct {
	mu       sync.Mutex
	sent     []string
	chatIDs  []string
	failSend bool
}

func (f *fakeBotAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"dwlr","username":"dwlr_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			_ = r.ParseForm()
			f.mu.Lock()
			fail := f.failSend
			if !fail {
				f.sent = append(f.sent, r.PostForm.Get("text"))
				f.chatIDs = append(f.chatIDs, r.PostForm.Get("chat_id"))
			}
			f.mu.Unlock()
			if fail {
				fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
				return
			}
			fmt.Fprint(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"},"text":"ok"}}`)
		default:
			http.NotFound(w, r)
		}
	})
}

func TestTelegramNotifier_Send(t *testing.T) {
	api := &fakeBotAPI{}
	server := httptest.NewServer(api.handler())
	defer server.Close()

	n, err := alerts.NewTelegramNotifier("123:abc", 42, server.URL+"/bot%s/%s", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "telegram", n.Name())

	require.NoError(t, n.Send(context.Background(), lowAlert()))

	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0], "critically LOW (1.50 m)")
	assert.Equal(t, "42", api.chatIDs[0])
}

func TestTelegramNotifier_Send_APIError(t *testing.T) {
	api := &fakeBotAPI{failSend: true}
	server := httptest.NewServer(api.handler())
	defer server.Close()

	n, err := alerts.NewTelegramNotifier("123:abc", 42, server.URL+"/bot%s/%s", 5*time.Second)
	require.NoError(t, err)

	err = n.Send(context.Background(), lowAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
}

func TestTelegramNotifier_InvalidToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
	}))
	defer server.Close()

	_, err := alerts.NewTelegramNotifier("bad", 42, server.URL+"/bot%s/%s", 5*time.Second)
	assert.Error(t, err)
}
