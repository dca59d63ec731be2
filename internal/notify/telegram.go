package notify

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends notifications as messages to a single chat.
type Telegram struct {
	api     telegramAPI
	chatID  int64
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewTelegram creates a Telegram notifier with the given bot token.
func NewTelegram(token string, chatID int64, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return newTelegram(api, chatID, log), nil
}

func newTelegram(api telegramAPI, chatID int64, log *slog.Logger) *Telegram {
	return &Telegram{
		api:    api,
		chatID: chatID,
		// ~20 messages/sec max for Telegram
		limiter: rate.NewLimiter(rate.Limit(20), 1),
		log:     log,
	}
}

// Notify implements Notifier.
func (t *Telegram) Notify(ctx context.Context, title, body string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limit: %w", err)
	}

	msg := tgbotapi.NewMessage(t.chatID, FormatMessage(title, body))
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send message to chat %d: %w", t.chatID, err)
	}
	t.log.DebugContext(ctx, "telegram notification sent", "chat_id", t.chatID)
	return nil
}

// FormatMessage formats a notification as a chat message.
func FormatMessage(title, body string) string {
	return fmt.Sprintf("[%s]\n\n%s", title, body)
}
