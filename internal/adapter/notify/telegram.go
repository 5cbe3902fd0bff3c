package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/semmidev/arxivsync/internal/config"
)

// Telegram messages are capped at 4096 characters.
const maxMessageLen = 4096

type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(cfg *config.TelegramConfig) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return NewTelegramWithBot(bot, cfg.ChatID), nil
}

func NewTelegramWithBot(bot *tgbotapi.BotAPI, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

func (t *TelegramNotifier) Notify(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	runes := []rune(message)
	if len(runes) > maxMessageLen {
		message = string(runes[:maxMessageLen-1]) + "…"
	}

	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, message)); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }
