package notify

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// TelegramOptions configures the Telegram sink.
type TelegramOptions struct {
	Token  string
	ChatID int64
	// APIServer overrides the Bot API endpoint. Empty uses the public server.
	APIServer string
}

// Telegram sends messages to a single chat through the Bot API.
type Telegram struct {
	bot    *telego.Bot
	chatID int64
}

// NewTelegram creates a Telegram sink.
func NewTelegram(opts TelegramOptions) (*Telegram, error) {
	botOpts := []telego.BotOption{telego.WithDiscardLogger()}
	if opts.APIServer != "" {
		botOpts = append(botOpts, telego.WithAPIServer(opts.APIServer))
	}
	bot, err := telego.NewBot(opts.Token, botOpts...)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: opts.ChatID}, nil
}

var _ Sink = (*Telegram)(nil)

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, message string) error {
	msg := tu.Message(tu.ID(t.chatID), message)
	if _, err := t.bot.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
