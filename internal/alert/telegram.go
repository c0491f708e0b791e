package alert

import (
	"context"
	"errors"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier delivers alert messages to a single chat. Disabled
// notifiers accept messages and do nothing, so callers never branch.
type TelegramNotifier struct {
	enabled bool
	chatID  int64
	bot     *tgbotapi.BotAPI
}

func NewTelegramNotifier(enabled bool, botToken string, chatID int64, timeout time.Duration) (*TelegramNotifier, error) {
	if !enabled {
		return &TelegramNotifier{}, nil
	}
	if botToken == "" || chatID == 0 {
		return nil, errors.New("telegram bot_token and chat_id required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	bot, err := tgbotapi.NewBotAPIWithClient(botToken, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	return &TelegramNotifier{enabled: true, chatID: chatID, bot: bot}, nil
}

func (t *TelegramNotifier) Notify(ctx context.Context, msg string) error {
	if t == nil || !t.enabled {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, msg))
	return err
}
