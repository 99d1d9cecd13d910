// Package notify delivers proactive action results to external channels.
package notify

import (
	"fmt"
	"log/slog"
	"strings"

	"evcore/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram messages top out at 4096 chars; leave headroom for the header.
const telegramMaxLen = 4000

// Notifier pushes a rendered summary of fired actions somewhere a human will
// see it.
type Notifier interface {
	Notify(results []domain.ActionResult) error
}

// Telegram sends action summaries to a single chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

func NewTelegram(token string, chatID int64, logger *slog.Logger) (*Telegram, error) {
	if logger == nil {
		logger = slog.Default()
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth failed: %w", err)
	}
	logger.Info("telegram notifier ready", "bot", bot.Self.UserName)
	return &Telegram{bot: bot, chatID: chatID, logger: logger}, nil
}

// Notify sends one message summarizing the batch. Empty batches are skipped.
func (t *Telegram) Notify(results []domain.ActionResult) error {
	text := Render(results)
	if text == "" {
		return nil
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Render formats a result batch as a plain-text summary, truncated to fit a
// single Telegram message.
func Render(results []domain.ActionResult) string {
	if len(results) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "proactive: %d action(s) fired\n", len(results))
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(&sb, "✗ %s: %s\n", r.Action, r.Error)
			continue
		}
		fmt.Fprintf(&sb, "✓ %s: %v\n", r.Action, r.Result)
	}
	text := strings.TrimRight(sb.String(), "\n")
	if len(text) > telegramMaxLen {
		text = text[:telegramMaxLen] + "…"
	}
	return text
}
