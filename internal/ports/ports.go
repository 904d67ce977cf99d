package ports

import (
	"context"
	"time"

	"PriceWatch/internal/domain"
)

// ListingRepository reads and mutates tracked listings.
type ListingRepository interface {
	CreateListing(ctx context.Context, listing domain.Listing) (domain.Listing, error)
	GetListing(ctx context.Context, id string) (domain.Listing, error)
	ListCheckable(ctx context.Context) ([]domain.Listing, error)
	CountByStatus(ctx context.Context, status domain.ListingStatus) (int, error)
	UpdateStatus(ctx context.Context, id string, status domain.ListingStatus) error
	UpdateSelector(ctx context.Context, id, selector string) error
	TouchLastChecked(ctx context.Context, id string, at time.Time) error
}

// PriceRepository persists the append-only price history.
type PriceRepository interface {
	InsertObservation(ctx context.Context, obs domain.PriceObservation) error
	LatestObservation(ctx context.Context, listingID string) (domain.PriceObservation, error)
	PriceStats(ctx context.Context, listingID string) (domain.PriceStats, error)
}

// EventRepository stores error and system events and answers count queries over them.
type EventRepository interface {
	InsertErrorEvent(ctx context.Context, event domain.ErrorEvent) error
	CountErrorEvents(ctx context.Context, listingID string, since time.Time) (int, error)
	InsertSystemEvent(ctx context.Context, event domain.SystemEvent) error
	CountSystemEvents(ctx context.Context, eventType domain.SystemEventType, since time.Time) (int, error)
	LatestSystemEvent(ctx context.Context, eventType domain.SystemEventType) (domain.SystemEvent, error)
}

// Store is the full persistence boundary used by the pipeline.
type Store interface {
	ListingRepository
	PriceRepository
	EventRepository
}

// PageFetcher downloads raw listing HTML.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// CompletionRequest is a strict JSON-schema completion call.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       map[string]any
}

// TokenUsage is reported by the completion service for cost accounting.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse carries the raw JSON content matching the requested schema.
type CompletionResponse struct {
	Content []byte
	Model   string
	Usage   TokenUsage
}

// CompletionClient talks to an LLM API (e.g., ChatGPT).
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// Alert is the outbound health alert payload.
type Alert struct {
	Title     string                `json:"title"`
	Message   string                `json:"message"`
	ErrorRate float64               `json:"errorRate"`
	Health    domain.HealthSnapshot `json:"health"`
	SentAt    time.Time             `json:"sentAt"`
}

// Notifier delivers alerts to webhook, Telegram or other channels.
type Notifier interface {
	SendAlert(ctx context.Context, alert Alert) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
