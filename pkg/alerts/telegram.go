package alerts

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier posts alerts to a Telegram chat through the Bot API.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier authenticates the bot token and returns a notifier for
// chatID. An empty endpoint selects the public Bot API.
func NewTelegramNotifier(token string, chatID int64, endpoint string, timeout time.Duration) (*TelegramNotifier, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (t *TelegramNotifier) Name() string { return "telegram" }

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	if err := ctx.Err(); err != nil {
		return &DeliveryError{Channel: t.Name(), Err: err}
	}
	msg := tgbotapi.NewMessage(t.chatID, alert.Message)
	if _, err := t.bot.Send(msg); err != nil {
		return deliveryErr(t.Name(), "send message: %w", err)
	}
	return nil
}
