package dispatch

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/shelfwatch/shelfwatch/internal/engine"
)

// TelegramNotifier delivers events as Telegram messages to a single chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram creates a notifier from a bot token and target chat.
func NewTelegram(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (t *TelegramNotifier) Notify(ctx context.Context, event engine.Event) error {
	msg := tgbotapi.NewMessage(t.chatID, formatMessage(event))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func formatMessage(event engine.Event) string {
	p := event.Product
	switch event.Type {
	case engine.EventRestocked:
		return fmt.Sprintf("🟢 BACK IN STOCK\n\n%s\nPrice: %.2f\n\n%s", p.Name, event.NewPrice, p.URL)
	case engine.EventSoldOut:
		return fmt.Sprintf("🔴 SOLD OUT\n\n%s\nLast price: %.2f\n\n%s", p.Name, event.OldPrice, p.URL)
	case engine.EventPriceDrop:
		pct := 0.0
		if event.OldPrice > 0 {
			pct = (event.OldPrice - event.NewPrice) / event.OldPrice * 100
		}
		return fmt.Sprintf("💸 PRICE DROP\n\n%s\n%.2f → %.2f (-%.1f%%)\n\n%s",
			p.Name, event.OldPrice, event.NewPrice, pct, p.URL)
	case engine.EventMonitorError:
		detail := ""
		if p.LastError != nil {
			detail = *p.LastError
		}
		return fmt.Sprintf("⚠️ MONITOR DEGRADED\n\n%s\n%s\n\n%s", p.Name, detail, p.URL)
	case engine.EventPossiblyGone:
		return fmt.Sprintf("❓ PAGE MAY BE GONE\n\n%s\nThe page has returned junk data repeatedly; it may have been taken down. Monitoring continues.\n\n%s", p.Name, p.URL)
	}
	return fmt.Sprintf("%s: %s\n%s", event.Type, p.Name, p.URL)
}
