package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"PriceWatch/internal/ports"
)

const telegramAPI = "https://api.telegram.org"

// Telegram sends alerts to a chat via bot API.
type Telegram struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var _ ports.Notifier = (*Telegram)(nil)

// NewTelegram registers bot token and chat identifier.
func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  telegramAPI,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// SendAlert posts a Markdown message to Telegram.
func (t *Telegram) SendAlert(ctx context.Context, alert ports.Alert) error {
	if t.botToken == "" || t.chatID == "" || t.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.apiBase, "/"), t.botToken)
	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", formatAlert(alert))
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

func formatAlert(alert ports.Alert) string {
	h := alert.Health
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n%s\n\n", alert.Title, alert.Message)
	fmt.Fprintf(&b, "Success rate: %.2f%%\n", h.SuccessRate)
	fmt.Fprintf(&b, "Checks: %d (errors: %d) in %dh\n", h.TotalChecks, h.ErrorCount, h.WindowHours)
	fmt.Fprintf(&b, "Active listings: %d", h.ActiveListingCount)
	return b.String()
}
