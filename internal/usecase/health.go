package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"PriceWatch/internal/domain"
	"PriceWatch/internal/logging"
	"PriceWatch/internal/ports"
)

const (
	DefaultHealthWindowHours = 24
	DefaultAlertThreshold    = 15.0
	DefaultAlertCooldown     = 6 * time.Hour
)

// HealthOptions tunes the alerting policy.
type HealthOptions struct {
	WindowHours    int
	AlertThreshold float64
	Cooldown       time.Duration
	Logger         *slog.Logger
}

// HealthMonitor records check outcomes and raises alerts when the error rate climbs.
type HealthMonitor struct {
	store       ports.Store
	notifier    ports.Notifier
	windowHours int
	threshold   float64
	cooldown    time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// NewHealthMonitor wires the monitor. A nil notifier means alerts are only recorded.
func NewHealthMonitor(store ports.Store, notifier ports.Notifier, opts HealthOptions) *HealthMonitor {
	if opts.WindowHours <= 0 {
		opts.WindowHours = DefaultHealthWindowHours
	}
	if opts.AlertThreshold <= 0 {
		opts.AlertThreshold = DefaultAlertThreshold
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultAlertCooldown
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &HealthMonitor{
		store:       store,
		notifier:    notifier,
		windowHours: opts.WindowHours,
		threshold:   opts.AlertThreshold,
		cooldown:    opts.Cooldown,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      opts.Logger.With("component", "health"),
	}
}

// Record logs one check outcome as a success or failure system event.
func (h *HealthMonitor) Record(ctx context.Context, listingID string, success bool) error {
	event := domain.SystemEvent{
		ID:        uuid.NewString(),
		ListingID: listingID,
		Type:      domain.EventFailure,
		Message:   "price check failed",
		CreatedAt: h.now(),
	}
	if success {
		event.Type = domain.EventSuccess
		event.Message = "price check succeeded"
	}
	if err := h.store.InsertSystemEvent(ctx, event); err != nil {
		return fmt.Errorf("record health event: %w", err)
	}
	return nil
}

// Health aggregates check events over the trailing window. No events reads as fully healthy.
func (h *HealthMonitor) Health(ctx context.Context, windowHours int) (domain.HealthSnapshot, error) {
	if windowHours <= 0 {
		windowHours = h.windowHours
	}
	since := h.now().Add(-time.Duration(windowHours) * time.Hour)

	successes, err := h.store.CountSystemEvents(ctx, domain.EventSuccess, since)
	if err != nil {
		return domain.HealthSnapshot{}, fmt.Errorf("count successes: %w", err)
	}
	failures, err := h.store.CountSystemEvents(ctx, domain.EventFailure, since)
	if err != nil {
		return domain.HealthSnapshot{}, fmt.Errorf("count failures: %w", err)
	}
	active, err := h.store.CountByStatus(ctx, domain.StatusActive)
	if err != nil {
		return domain.HealthSnapshot{}, fmt.Errorf("count active listings: %w", err)
	}

	snapshot := domain.HealthSnapshot{
		WindowHours:        windowHours,
		SuccessRate:        100,
		TotalChecks:        successes + failures,
		ErrorCount:         failures,
		ActiveListingCount: active,
	}
	if snapshot.TotalChecks > 0 {
		rate := float64(successes) / float64(snapshot.TotalChecks) * 100
		snapshot.SuccessRate = math.Round(rate*100) / 100
	}

	last, err := h.store.LatestSystemEvent(ctx, domain.EventAlertSent)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return domain.HealthSnapshot{}, fmt.Errorf("load last alert: %w", err)
	default:
		at := last.CreatedAt
		snapshot.LastAlertAt = &at
	}

	return snapshot, nil
}

// CheckAndAlert evaluates the default window and sends at most one alert per cooldown.
// Delivery failures are logged and never returned; only storage reads can fail the call.
func (h *HealthMonitor) CheckAndAlert(ctx context.Context) (bool, error) {
	snapshot, err := h.Health(ctx, h.windowHours)
	if err != nil {
		return false, err
	}

	errorRate := snapshot.ErrorRate()
	if errorRate <= h.threshold {
		return false, nil
	}

	now := h.now()
	if snapshot.LastAlertAt != nil && now.Sub(*snapshot.LastAlertAt) < h.cooldown {
		h.logger.Info("alert suppressed by cooldown",
			"error_rate", errorRate, "last_alert_at", snapshot.LastAlertAt.Format(time.RFC3339))
		return false, nil
	}

	alert := ports.Alert{
		Title: "Price check error rate is high",
		Message: fmt.Sprintf("%.2f%% of %d checks failed in the last %dh (%d active listings)",
			errorRate, snapshot.TotalChecks, snapshot.WindowHours, snapshot.ActiveListingCount),
		ErrorRate: errorRate,
		Health:    snapshot,
		SentAt:    now,
	}

	if h.notifier == nil {
		h.logger.Warn("no notification channel configured, alert only recorded", "error_rate", errorRate)
	} else if err := h.notifier.SendAlert(ctx, alert); err != nil {
		h.logger.Error("deliver alert", "error_rate", errorRate, "error", err)
		return false, nil
	}

	event := domain.SystemEvent{
		ID:      uuid.NewString(),
		Type:    domain.EventAlertSent,
		Message: alert.Message,
		Metadata: map[string]any{
			"windowHours":        snapshot.WindowHours,
			"successRate":        snapshot.SuccessRate,
			"errorRate":          errorRate,
			"totalChecks":        snapshot.TotalChecks,
			"errorCount":         snapshot.ErrorCount,
			"activeListingCount": snapshot.ActiveListingCount,
		},
		CreatedAt: now,
	}
	if err := h.store.InsertSystemEvent(ctx, event); err != nil {
		h.logger.Error("record alert event", "error", err)
	}

	h.logger.Warn("health alert sent", "error_rate", errorRate, "total_checks", snapshot.TotalChecks)
	return true, nil
}
