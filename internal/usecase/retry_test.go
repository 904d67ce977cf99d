package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"PriceWatch/internal/domain"
)

func TestCurrentAttemptCountsTrailingWindow(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	h.addListing(t, "l-1", "https://shop.test/1", "", domain.StatusActive)

	for _, age := range []time.Duration{25 * time.Hour, 23 * time.Hour} {
		h.store.InsertErrorEvent(ctx, domain.ErrorEvent{ListingID: "l-1", Message: "x", CreatedAt: h.clock.Now().Add(-age)})
	}

	first, err := h.retry.CurrentAttempt(ctx, "l-1")
	if err != nil {
		t.Fatalf("CurrentAttempt returned error: %v", err)
	}
	second, err := h.retry.CurrentAttempt(ctx, "l-1")
	if err != nil {
		t.Fatalf("CurrentAttempt returned error: %v", err)
	}
	if first != 2 || second != 2 {
		t.Fatalf("expected attempt 2 twice, got %d and %d", first, second)
	}
}

func TestCurrentAttemptIsCapped(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		h.store.InsertErrorEvent(ctx, domain.ErrorEvent{ListingID: "l-1", Message: "x", CreatedAt: h.clock.Now()})
	}

	got, err := h.retry.CurrentAttempt(ctx, "l-1")
	if err != nil {
		t.Fatalf("CurrentAttempt returned error: %v", err)
	}
	if got != DefaultMaxAttempts {
		t.Fatalf("expected attempt capped at %d, got %d", DefaultMaxAttempts, got)
	}
}

func TestHandle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attempt int
		retry   bool
		next    int
		delay   time.Duration
		status  domain.ListingStatus
	}{
		{attempt: 1, retry: true, next: 2, delay: time.Minute, status: domain.StatusActive},
		{attempt: 2, retry: true, next: 3, delay: 5 * time.Minute, status: domain.StatusActive},
		{attempt: 3, retry: false, next: 3, delay: 15 * time.Minute, status: domain.StatusError},
	}

	for _, tt := range tests {
		h := newHarness(t)
		ctx := context.Background()
		h.addListing(t, "l-1", "https://shop.test/1", "", domain.StatusActive)

		decision, err := h.retry.Handle(ctx, "l-1", errors.New("timeout"), tt.attempt)
		if err != nil {
			t.Fatalf("attempt %d: Handle returned error: %v", tt.attempt, err)
		}
		if decision.ShouldRetry != tt.retry || decision.NextAttempt != tt.next || decision.Delay != tt.delay {
			t.Fatalf("attempt %d: unexpected decision %+v", tt.attempt, decision)
		}
		if got := h.store.listing(t, "l-1").Status; got != tt.status {
			t.Fatalf("attempt %d: expected status %s, got %s", tt.attempt, tt.status, got)
		}
		if n := h.store.countErrorEvents("l-1"); n != 1 {
			t.Fatalf("attempt %d: expected the error event to be logged first, got %d events", tt.attempt, n)
		}
	}
}

func TestErrorChain(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("fetch: %w", &domain.HTTPError{StatusCode: 503, URL: "https://shop.test"})
	want := "*fmt.wrapError: fetch: unexpected status 503 Service Unavailable for https://shop.test\n" +
		"  *domain.HTTPError: unexpected status 503 Service Unavailable for https://shop.test"
	if got := errorChain(err); got != want {
		t.Fatalf("unexpected chain:\n%s", got)
	}
}
