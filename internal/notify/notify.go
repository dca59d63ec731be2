// Package notify delivers short notifications about feed changes.
package notify

import (
	"context"
	"fmt"
	"log/slog"
)

// Notifier kinds accepted by New.
const (
	KindDesktop  = "desktop"
	KindTelegram = "telegram"
	KindLog      = "log"
)

// Notifier sends a notification with a title and a one-line body.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Options carries the settings of the notifiers that need any.
type Options struct {
	TelegramToken  string
	TelegramChatID int64
}

// New builds the notifier named by kind.
func New(kind string, opts Options, log *slog.Logger) (Notifier, error) {
	switch kind {
	case KindDesktop, "":
		return NewDesktop(), nil
	case KindTelegram:
		if opts.TelegramToken == "" || opts.TelegramChatID == 0 {
			return nil, fmt.Errorf("telegram notifier requires TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID")
		}
		return NewTelegram(opts.TelegramToken, opts.TelegramChatID, log)
	case KindLog:
		return NewLog(log), nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", kind)
	}
}

// Log writes notifications to a logger.
type Log struct {
	log *slog.Logger
}

// NewLog creates a Log notifier.
func NewLog(log *slog.Logger) *Log {
	return &Log{log: log}
}

// Notify implements Notifier.
func (l *Log) Notify(ctx context.Context, title, body string) error {
	l.log.InfoContext(ctx, "notification", "title", title, "body", body)
	return nil
}
