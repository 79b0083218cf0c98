// Package notify delivers best-effort text notifications. Failures are
// logged and swallowed; notification problems must never affect scheduling.
package notify

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"
)

// Notifier accepts best-effort text reports.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Nop discards all notifications.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, string) error { return nil }

const telegramAPIBase = "https://api.telegram.org"

// Telegram sends notifications through the Telegram Bot API.
type Telegram struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
	logger  *log.Logger
}

// NewTelegram creates a Telegram notifier. logger may be nil.
func NewTelegram(token, chatID string, logger *log.Logger) *Telegram {
	if logger == nil {
		logger = log.New(log.Writer(), "[notify] ", log.LstdFlags)
	}
	return &Telegram{
		apiBase: telegramAPIBase,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// Notify sends one message. Errors are returned for the caller to log but
// are always safe to ignore.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage?chat_id=%s&text=%s",
		t.apiBase, t.token, url.QueryEscape(t.chatID), url.QueryEscape(text))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("telegram API status %d", resp.StatusCode)
	}
	return nil
}
