package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/minjen/minjen-counter/backend/go-services/pkg/logger"
)

// Sender delivers one rendered message to the outside world.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// TelegramSender posts messages to one chat through the Bot API sendMessage method.
type TelegramSender struct {
	bot    *bot.Bot
	token  string
	chatID string
}

// NewTelegramSender builds a sender without contacting Telegram; a bad token
// or chat id surfaces on the first Send.
func NewTelegramSender(apiURL, token, chatID string, client *http.Client) (*TelegramSender, error) {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	opts := []bot.Option{bot.WithSkipGetMe(), bot.WithHTTPClient(client.Timeout, client)}
	if apiURL != "" {
		opts = append(opts, bot.WithServerURL(strings.TrimRight(apiURL, "/")))
	}
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", redact(err, token))
	}
	return &TelegramSender{bot: b, token: token, chatID: chatID}, nil
}

func (t *TelegramSender) Send(ctx context.Context, text string) error {
	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: t.chatID, Text: text})
	if err != nil {
		// transport errors embed the request url, which carries the bot token
		return fmt.Errorf("telegram sendMessage: %w", redact(err, t.token))
	}
	return nil
}

type redactedError struct{ msg string }

func (e redactedError) Error() string { return e.msg }

func redact(err error, secret string) error {
	if secret == "" {
		return err
	}
	return redactedError{msg: strings.ReplaceAll(err.Error(), secret, "<token>")}
}

// LogSender writes messages to the process log. Used when no bot token is configured.
type LogSender struct {
	log *logger.Logger
}

func NewLogSender() *LogSender {
	return &LogSender{log: logger.Named("notify")}
}

func (l *LogSender) Send(ctx context.Context, text string) error {
	l.log.Infof("notification: %s", text)
	return nil
}
