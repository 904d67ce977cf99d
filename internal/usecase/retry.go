package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"PriceWatch/internal/domain"
	"PriceWatch/internal/logging"
	"PriceWatch/internal/ports"
)

const (
	DefaultMaxAttempts   = 3
	DefaultAttemptWindow = 24 * time.Hour
)

// Conceptual back-off before attempts 2, 3 and after exhaustion. Nothing sleeps on
// these: the next scheduled run is the next attempt.
var retryDelays = []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute}

// RetryDecision is the outcome of handling one failed check.
type RetryDecision struct {
	ShouldRetry bool
	NextAttempt int
	Delay       time.Duration
}

// RetryOptions tunes the attempt ceiling and counting window.
type RetryOptions struct {
	MaxAttempts   int
	AttemptWindow time.Duration
	Logger        *slog.Logger
}

// RetryCoordinator derives attempt numbers from the error event log and moves
// listings between lifecycle states.
type RetryCoordinator struct {
	store       ports.Store
	maxAttempts int
	window      time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// NewRetryCoordinator applies defaults for unset options.
func NewRetryCoordinator(store ports.Store, opts RetryOptions) *RetryCoordinator {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.AttemptWindow <= 0 {
		opts.AttemptWindow = DefaultAttemptWindow
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &RetryCoordinator{
		store:       store,
		maxAttempts: opts.MaxAttempts,
		window:      opts.AttemptWindow,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      opts.Logger.With("component", "retry"),
	}
}

// CurrentAttempt counts error events inside the attempt window, plus one, capped at the ceiling.
func (r *RetryCoordinator) CurrentAttempt(ctx context.Context, listingID string) (int, error) {
	n, err := r.store.CountErrorEvents(ctx, listingID, r.now().Add(-r.window))
	if err != nil {
		return 0, fmt.Errorf("count error events: %w", err)
	}
	return min(n+1, r.maxAttempts), nil
}

// Handle logs the failure as an error event, then decides. Below the ceiling the listing keeps
// its status and is retried on the next run; at the ceiling it moves to error.
func (r *RetryCoordinator) Handle(ctx context.Context, listingID string, cause error, attempt int) (RetryDecision, error) {
	event := domain.ErrorEvent{
		ID:            uuid.NewString(),
		ListingID:     listingID,
		Message:       cause.Error(),
		StackTrace:    errorChain(cause),
		AttemptNumber: attempt,
		CreatedAt:     r.now(),
	}
	if err := r.store.InsertErrorEvent(ctx, event); err != nil {
		r.logger.Error("record error event", "listing_id", listingID, "attempt", attempt, "error", err)
	}

	decision := RetryDecision{Delay: delayFor(attempt)}
	if attempt < r.maxAttempts {
		decision.ShouldRetry = true
		decision.NextAttempt = attempt + 1
		r.logger.Info("check failed, will retry on next run",
			"listing_id", listingID, "attempt", attempt, "next_attempt", decision.NextAttempt,
			"delay", decision.Delay, "error", cause)
		return decision, nil
	}

	decision.NextAttempt = attempt
	if err := r.store.UpdateStatus(ctx, listingID, domain.StatusError); err != nil {
		return decision, fmt.Errorf("mark listing %s as error: %w", listingID, err)
	}
	r.logger.Warn("retries exhausted, listing moved to error",
		"listing_id", listingID, "attempt", attempt, "error", cause)
	return decision, nil
}

// MarkRemoved moves a listing straight to removed. Attempt counting does not apply.
func (r *RetryCoordinator) MarkRemoved(ctx context.Context, listingID string, cause error) error {
	if err := r.store.UpdateStatus(ctx, listingID, domain.StatusRemoved); err != nil {
		return fmt.Errorf("mark listing %s as removed: %w", listingID, err)
	}
	r.logger.Info("listing removed at source", "listing_id", listingID, "error", cause)
	return nil
}

func delayFor(attempt int) time.Duration {
	idx := min(max(attempt, 1), len(retryDelays)) - 1
	return retryDelays[idx]
}

// errorChain renders each wrapped layer on its own line with its concrete type.
func errorChain(err error) string {
	var b strings.Builder
	for depth := 0; err != nil; depth++ {
		fmt.Fprintf(&b, "%s%T: %v\n", strings.Repeat("  ", depth), err, err)
		err = errors.Unwrap(err)
	}
	return strings.TrimRight(b.String(), "\n")
}
