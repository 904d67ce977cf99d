package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"PriceWatch/internal/domain"
	"PriceWatch/internal/extraction"
	"PriceWatch/internal/ports"
)

const (
	// DefaultMinConfidence is the lowest confidence accepted as a usable price.
	DefaultMinConfidence = 0.8
	defaultMaxHTMLChars  = 60000
	defaultSystemPrompt  = "You extract the current asking price from a single listing page. " +
		"Answer only with JSON matching the schema. The selector must be a CSS selector " +
		"that matches the element containing the price in the provided HTML. " +
		"Report confidence between 0 and 1; use a low value if the page shows no clear price."
)

// Result is the typed structured-extraction output.
type Result struct {
	Price      float64          `json:"price"`
	Currency   domain.Currency  `json:"currency"`
	Confidence float64          `json:"confidence"`
	Selector   string           `json:"selector"`
	City       string           `json:"city"`
	Title      string           `json:"title"`
	ImageURL   string           `json:"imageUrl"`
	RawText    string           `json:"rawText"`
	Usage      ports.TokenUsage `json:"-"`
}

// ExtractorOptions configures the structured extractor.
type ExtractorOptions struct {
	SystemPrompt  string
	Timeout       time.Duration
	MinConfidence float64
	MaxHTMLChars  int
	Logger        *slog.Logger
}

// Extractor is the LLM-backed fallback extraction strategy.
type Extractor struct {
	client        ports.CompletionClient
	systemPrompt  string
	timeout       time.Duration
	minConfidence float64
	maxHTMLChars  int
	logger        *slog.Logger
}

var _ extraction.Strategy = (*Extractor)(nil)

// NewExtractor wires a completion client.
func NewExtractor(client ports.CompletionClient, opts ExtractorOptions) *Extractor {
	e := &Extractor{
		client:        client,
		systemPrompt:  strings.TrimSpace(opts.SystemPrompt),
		timeout:       opts.Timeout,
		minConfidence: opts.MinConfidence,
		maxHTMLChars:  opts.MaxHTMLChars,
		logger:        opts.Logger,
	}
	if e.systemPrompt == "" {
		e.systemPrompt = defaultSystemPrompt
	}
	if e.minConfidence <= 0 {
		e.minConfidence = DefaultMinConfidence
	}
	if e.maxHTMLChars <= 0 {
		e.maxHTMLChars = defaultMaxHTMLChars
	}
	return e
}

// Name identifies the strategy inside the registry.
func (e *Extractor) Name() string { return extraction.StrategyAI }

// Extract runs the structured extraction and accepts it only above the confidence threshold.
func (e *Extractor) Extract(ctx context.Context, page extraction.Page) (*extraction.Attempt, error) {
	res, err := e.ExtractStructured(ctx, page.HTML, page.URL)
	if err != nil {
		return nil, err
	}

	if !e.ValidateConfidence(res) {
		e.warn("low confidence extraction rejected",
			"listing_id", page.ListingID, "confidence", res.Confidence, "price", res.Price)
		return nil, nil
	}

	raw := res.RawText
	if strings.TrimSpace(raw) == "" {
		raw = fmt.Sprintf("%g %s", res.Price, res.Currency)
	}

	return &extraction.Attempt{
		Result: domain.ExtractionResult{
			Price:    res.Price,
			Currency: res.Currency,
			RawText:  raw,
		},
		Selector:   strings.TrimSpace(res.Selector),
		Confidence: res.Confidence,
	}, nil
}

// ValidateConfidence is true only when confidence reaches the threshold (0.8 by default).
func (e *Extractor) ValidateConfidence(res Result) bool {
	return res.Confidence >= e.minConfidence
}

// ExtractStructured sends cleaned HTML to the completion service and decodes the typed result.
func (e *Extractor) ExtractStructured(ctx context.Context, rawHTML, url string) (Result, error) {
	if e.client == nil {
		return Result{}, fmt.Errorf("%w: no completion client", domain.ErrConfiguration)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cleaned := CleanHTML(rawHTML, e.maxHTMLChars)
	resp, err := e.client.Complete(ctx, ports.CompletionRequest{
		SystemPrompt: e.systemPrompt,
		UserPrompt:   fmt.Sprintf("URL: %s\n\nHTML:\n%s", url, cleaned),
		SchemaName:   "listing_price",
		Schema:       responseSchema(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("structured extraction: %w", err)
	}

	var res Result
	if err := json.Unmarshal(resp.Content, &res); err != nil {
		return Result{}, fmt.Errorf("decode structured extraction: %w", err)
	}
	res.Usage = resp.Usage

	if c, ok := domain.ParseCurrency(string(res.Currency)); ok {
		res.Currency = c
	}

	e.debug("structured extraction done",
		"url", url,
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"total_tokens", resp.Usage.TotalTokens,
		"confidence", res.Confidence)

	return res, nil
}

func responseSchema() map[string]any {
	currencies := make([]string, 0, len(domain.SupportedCurrencies))
	for _, c := range domain.SupportedCurrencies {
		currencies = append(currencies, string(c))
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"price":      map[string]any{"type": "number"},
			"currency":   map[string]any{"type": "string", "enum": currencies},
			"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			"selector":   map[string]any{"type": "string"},
			"rawText":    map[string]any{"type": "string"},
			"city":       map[string]any{"type": "string"},
			"title":      map[string]any{"type": "string"},
			"imageUrl":   map[string]any{"type": "string"},
		},
		"required":             []string{"price", "currency", "confidence", "selector", "rawText", "city", "title", "imageUrl"},
		"additionalProperties": false,
	}
}

func (e *Extractor) debug(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Extractor) warn(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
