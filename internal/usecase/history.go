package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"PriceWatch/internal/domain"
	"PriceWatch/internal/logging"
	"PriceWatch/internal/ports"
)

// DefaultAnomalyThreshold flags relative changes above 50%.
const DefaultAnomalyThreshold = 0.5

// PriceHistory appends observations and watches them for sudden jumps.
type PriceHistory struct {
	store     ports.Store
	threshold decimal.Decimal
	now       func() time.Time
	logger    *slog.Logger
}

// NewPriceHistory builds the history component. A non-positive threshold uses the default.
func NewPriceHistory(store ports.Store, threshold float64, logger *slog.Logger) *PriceHistory {
	if threshold <= 0 {
		threshold = DefaultAnomalyThreshold
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &PriceHistory{
		store:     store,
		threshold: decimal.NewFromFloat(threshold),
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With("component", "history"),
	}
}

// Save appends the extracted price as a new observation. A price that is out of range
// once rounded to cents is refused with a *domain.ValidationError.
func (h *PriceHistory) Save(ctx context.Context, listingID string, res domain.ExtractionResult) (domain.PriceObservation, error) {
	if errs := priceErrors(res.Price); len(errs) > 0 {
		return domain.PriceObservation{}, &domain.ValidationError{Errors: errs}
	}

	obs := domain.PriceObservation{
		ID:         uuid.Must(uuid.NewV7()).String(),
		ListingID:  listingID,
		Price:      storedPrice(res.Price),
		Currency:   res.Currency,
		ObservedAt: h.now(),
	}
	if err := h.store.InsertObservation(ctx, obs); err != nil {
		return domain.PriceObservation{}, err
	}
	return obs, nil
}

// UpdateLastChecked stamps the listing with the current time.
func (h *PriceHistory) UpdateLastChecked(ctx context.Context, listingID string) error {
	return h.store.TouchLastChecked(ctx, listingID, h.now())
}

// DetectAnomaly compares newPrice with the latest stored observation. Without a previous
// observation there is nothing to compare and the answer is false. Anomalies are logged as
// system events; they never block the save.
func (h *PriceHistory) DetectAnomaly(ctx context.Context, listingID string, newPrice float64) (bool, error) {
	prev, err := h.store.LatestObservation(ctx, listingID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load latest observation: %w", err)
	}
	if !prev.Price.IsPositive() {
		return false, nil
	}

	next := decimal.NewFromFloat(newPrice)
	change := next.Sub(prev.Price).Abs().Div(prev.Price)
	if !change.GreaterThan(h.threshold) {
		return false, nil
	}

	percent := change.Mul(decimal.NewFromInt(100)).Round(2)
	h.logger.Warn("price anomaly detected",
		"listing_id", listingID,
		"previous", prev.Price.String(),
		"current", next.String(),
		"change_percent", percent.String())

	event := domain.SystemEvent{
		ID:        uuid.NewString(),
		ListingID: listingID,
		Type:      domain.EventAnomaly,
		Message:   fmt.Sprintf("price changed by %s%% (%s -> %s)", percent, prev.Price, next),
		Metadata: map[string]any{
			"previousPrice": prev.Price.InexactFloat64(),
			"newPrice":      newPrice,
			"changePercent": percent.InexactFloat64(),
			"currency":      string(prev.Currency),
		},
		CreatedAt: h.now(),
	}
	if err := h.store.InsertSystemEvent(ctx, event); err != nil {
		h.logger.Error("record anomaly event", "listing_id", listingID, "error", err)
	}
	return true, nil
}

// Stats summarizes the whole observation history of a listing.
func (h *PriceHistory) Stats(ctx context.Context, listingID string) (domain.PriceStats, error) {
	return h.store.PriceStats(ctx, listingID)
}
