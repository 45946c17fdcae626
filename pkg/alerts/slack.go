package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ogulcanaydogan/dwlr-guardian/pkg/model"
)

// SlackNotifier sends alerts to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
	client     *http.Client
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier(webhookURL, channel string, timeout time.Duration) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		channel:    channel,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *SlackNotifier) Name() string { return "slack" }

func (s *SlackNotifier) Send(ctx context.Context, alert Alert) error {
	ts := alert.RaisedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	payload := slackPayload{
		Channel: s.channel,
		Attachments: []slackAttachment{
			{
				Color: stateColor(alert.State),
				Title: fmt.Sprintf("DWLR station %s: level %s", alert.StationID, alert.State),
				Text:  alert.Message,
				Fields: []slackField{
					{Title: "Water Level", Value: fmt.Sprintf("%.2f m", alert.WaterLevel), Short: true},
					{Title: "Observed", Value: alert.ObservedAt.UTC().Format("2006-01-02 15:04"), Short: true},
					{Title: "Low Threshold", Value: fmt.Sprintf("%.2f m", alert.LowThreshold), Short: true},
					{Title: "High Threshold", Value: fmt.Sprintf("%.2f m", alert.HighThreshold), Short: true},
				},
				Footer: "DWLR Guardian",
				Ts:     ts.Unix(),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return deliveryErr(s.Name(), "marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return deliveryErr(s.Name(), "create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return deliveryErr(s.Name(), "post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return deliveryErr(s.Name(), "status %d", resp.StatusCode)
	}
	return nil
}

func stateColor(state model.AlertState) string {
	switch state {
	case model.StateLow:
		return "#ff9900"
	case model.StateHigh:
		return "#cc0000"
	default:
		return "#36a64f"
	}
}

type slackPayload struct {
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer"`
	Ts     int64        `json:"ts"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}
