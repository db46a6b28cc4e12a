package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/entireio/relay/cmd/relay/cli/logging"
)

const (
	// TelegramDestination is the destination id of the Telegram handler.
	TelegramDestination = "telegram"

	// telegramChunkRunes stays under the 4096 character message limit.
	telegramChunkRunes = 4000

	typingRefresh = 4 * time.Second
	typingMaxAge  = 5 * time.Minute
)

// botAPI is the subset of *tgbotapi.BotAPI the handler uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Telegram sends plain-text messages to one chat and shows a typing
// indicator while the agent works.
type Telegram struct {
	bot     botAPI
	chatID  int64
	refresh time.Duration
	maxAge  time.Duration

	mu         sync.Mutex
	stopTyping chan struct{}
}

// NewTelegram connects to the Bot API with token.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if token == "" {
		return nil, errors.New("telegram bot token is empty")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat ID is not configured")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	return newTelegram(bot, chatID), nil
}

func newTelegram(bot botAPI, chatID int64) *Telegram {
	return &Telegram{bot: bot, chatID: chatID, refresh: typingRefresh, maxAge: typingMaxAge}
}

// Send delivers text as one or more messages split at line boundaries.
func (t *Telegram) Send(ctx context.Context, text string) error {
	for i, chunk := range splitChunks(text, telegramChunkRunes) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, chunk)); err != nil {
			return fmt.Errorf("telegram chunk %d: %w", i+1, err)
		}
	}
	return nil
}

// StartIndicator shows "typing…" until StopIndicator or maxAge.
func (t *Telegram) StartIndicator(ctx context.Context) {
	t.mu.Lock()
	if t.stopTyping != nil {
		close(t.stopTyping)
	}
	stop := make(chan struct{})
	t.stopTyping = stop
	t.mu.Unlock()

	go t.typingLoop(context.WithoutCancel(ctx), stop)
}

// StopIndicator ends a running typing indicator.
func (t *Telegram) StopIndicator(context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopTyping != nil {
		close(t.stopTyping)
		t.stopTyping = nil
	}
}

func (t *Telegram) typingLoop(ctx context.Context, stop <-chan struct{}) {
	deadline := time.NewTimer(t.maxAge)
	defer deadline.Stop()
	ticker := time.NewTicker(t.refresh)
	defer ticker.Stop()

	for {
		if _, err := t.bot.Request(tgbotapi.NewChatAction(t.chatID, tgbotapi.ChatTyping)); err != nil {
			logging.Debug(ctx, "telegram typing action failed", "error", err.Error())
		}
		select {
		case <-stop:
			return
		case <-deadline.C:
			return
		case <-ticker.C:
		}
	}
}

// splitChunks splits text into pieces of at most limit runes, preferring
// to break after a newline.
func splitChunks(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		if chunk := strings.TrimSpace(string(runes[:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = runes[cut:]
	}
	if chunk := strings.TrimSpace(string(runes)); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}
