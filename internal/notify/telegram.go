package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskagent/internal/domain"
)

const (
	telegramMaxMsgLen      = 4096
	telegramMaxSendRetries = 2
)

// TelegramConfig configures delivery through a Telegram bot.
type TelegramConfig struct {
	Token         string
	DefaultChatID int64 // used when the recipient is not a numeric chat ID
}

// telegramSender is the part of *tgbotapi.BotAPI we use.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends notifications as bot messages. The bot is created on first
// use because tgbotapi.NewBotAPI performs a network call.
type Telegram struct {
	cfg    TelegramConfig
	logger *slog.Logger

	mu  sync.Mutex
	bot telegramSender
}

func NewTelegram(cfg TelegramConfig, logger *slog.Logger) *Telegram {
	return &Telegram{cfg: cfg, logger: logger}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) client() (telegramSender, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}
	bot, err := tgbotapi.NewBotAPI(t.cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	t.logger.Info("telegram bot authorized", "username", bot.Self.UserName)
	t.bot = bot
	return bot, nil
}

func (t *Telegram) Send(ctx context.Context, n domain.Notification) error {
	chatID, err := t.chatID(n.Recipient)
	if err != nil {
		return err
	}
	bot, err := t.client()
	if err != nil {
		return err
	}

	text := n.Message
	if n.Priority == "high" {
		text = "[HIGH] " + text
	}
	if len(text) > telegramMaxMsgLen {
		text = text[:telegramMaxMsgLen]
	}
	return t.sendWithRetry(ctx, bot, chatID, text)
}

func (t *Telegram) chatID(recipient string) (int64, error) {
	if id, err := strconv.ParseInt(strings.TrimSpace(recipient), 10, 64); err == nil {
		return id, nil
	}
	if t.cfg.DefaultChatID != 0 {
		return t.cfg.DefaultChatID, nil
	}
	return 0, fmt.Errorf("no telegram chat for recipient %q", recipient)
}

// sendWithRetry retries rate-limited and transient failures with linear backoff.
func (t *Telegram) sendWithRetry(ctx context.Context, bot telegramSender, chatID int64, text string) error {
	var lastErr error
	for attempt := 0; attempt <= telegramMaxSendRetries; attempt++ {
		_, err := bot.Send(tgbotapi.NewMessage(chatID, text))
		if err == nil {
			t.logger.Info("telegram notification sent", "chat_id", chatID)
			return nil
		}
		lastErr = err

		if attempt == telegramMaxSendRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		if strings.Contains(lastErr.Error(), "Too Many Requests") || strings.Contains(lastErr.Error(), "429") {
			backoff *= 3
		}
		t.logger.Warn("telegram send error, retrying", "err", lastErr, "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("telegram send failed after %d attempts: %w", telegramMaxSendRetries+1, lastErr)
}
