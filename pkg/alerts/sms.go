package alerts

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultSMSEndpoint is the bulk SMS gateway used when none is configured.
const DefaultSMSEndpoint = "https://www.fast2sms.com/dev/bulkV2"

// SMSConfig holds the gateway settings for SMSNotifier.
type SMSConfig struct {
	Endpoint string
	APIKey   string
	SenderID string
	Route    string
	Phone    string
	Timeout  time.Duration
}

// SMSNotifier delivers alerts through an HTTP bulk SMS gateway.
type SMSNotifier struct {
	cfg    SMSConfig
	client *http.Client
}

// NewSMSNotifier creates an SMS notifier. Empty endpoint, sender ID and route
// fall back to the gateway defaults.
func NewSMSNotifier(cfg SMSConfig) *SMSNotifier {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultSMSEndpoint
	}
	if cfg.SenderID == "" {
		cfg.SenderID = "TXTIND"
	}
	if cfg.Route == "" {
		cfg.Route = "v3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMSNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *SMSNotifier) Name() string { return "sms" }

func (s *SMSNotifier) Send(ctx context.Context, alert Alert) error {
	form := url.Values{}
	form.Set("sender_id", s.cfg.SenderID)
	form.Set("message", alert.Message)
	form.Set("route", s.cfg.Route)
	form.Set("numbers", s.cfg.Phone)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return deliveryErr(s.Name(), "create request: %w", err)
	}
	req.Header.Set("authorization", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return deliveryErr(s.Name(), "post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return deliveryErr(s.Name(), "gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}
	return nil
}
