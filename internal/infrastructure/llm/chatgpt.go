package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"PriceWatch/internal/config"
	"PriceWatch/internal/domain"
	"PriceWatch/internal/ports"
)

// ChatGPTClient implements ports.CompletionClient backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.CompletionClient = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.ChatGPTConfig) *ChatGPTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &ChatGPTClient{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage ports.TokenUsage `json:"usage"`
}

// Complete sends a chat completion constrained by a strict JSON schema.
func (c *ChatGPTClient) Complete(ctx context.Context, in ports.CompletionRequest) (ports.CompletionResponse, error) {
	if c == nil {
		return ports.CompletionResponse{}, fmt.Errorf("%w: chatgpt client is nil", domain.ErrConfiguration)
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return ports.CompletionResponse{}, fmt.Errorf("%w: chatgpt client misconfigured", domain.ErrConfiguration)
	}

	body, err := json.Marshal(map[string]any{
		"model":       c.model,
		"temperature": 0,
		"messages": []chatMessage{
			{Role: "system", Content: in.SystemPrompt},
			{Role: "user", Content: in.UserPrompt},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   in.SchemaName,
				"strict": true,
				"schema": in.Schema,
			},
		},
	})
	if err != nil {
		return ports.CompletionResponse{}, fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.CompletionResponse{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ports.CompletionResponse{}, fmt.Errorf("send completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return ports.CompletionResponse{}, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
		}
		return ports.CompletionResponse{}, err
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ports.CompletionResponse{}, fmt.Errorf("decode completion: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return ports.CompletionResponse{}, fmt.Errorf("completion returned no choices")
	}

	choice := decoded.Choices[0]
	if choice.Message.Refusal != "" {
		return ports.CompletionResponse{}, fmt.Errorf("completion refused: %s", choice.Message.Refusal)
	}

	return ports.CompletionResponse{
		Content: []byte(choice.Message.Content),
		Model:   decoded.Model,
		Usage:   decoded.Usage,
	}, nil
}
