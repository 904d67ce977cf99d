package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"PriceWatch/internal/ports"
)

// Webhook posts the alert as JSON to a generic endpoint.
type Webhook struct {
	endpoint string
	http     *http.Client
}

var _ ports.Notifier = (*Webhook)(nil)

// NewWebhook creates a reusable HTTP client for the given endpoint.
func NewWebhook(endpoint string) *Webhook {
	return &Webhook{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	Event     string  `json:"event"`
	Title     string  `json:"title"`
	Message   string  `json:"message"`
	ErrorRate float64 `json:"errorRate"`
	Health    any     `json:"health"`
	SentAt    string  `json:"sentAt"`
}

// SendAlert delivers the alert. Any non-2xx answer is an error.
func (w *Webhook) SendAlert(ctx context.Context, alert ports.Alert) error {
	if w.endpoint == "" {
		return fmt.Errorf("webhook notifier misconfigured")
	}

	return post(ctx, w.http, w.endpoint, webhookPayload{
		Event:     "price-check.health-alert",
		Title:     alert.Title,
		Message:   alert.Message,
		ErrorRate: alert.ErrorRate,
		Health:    alert.Health,
		SentAt:    alert.SentAt.UTC().Format(time.RFC3339),
	})
}

func post(ctx context.Context, client *http.Client, endpoint string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, bytes.TrimSpace(snippet))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
