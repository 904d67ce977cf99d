package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"PriceWatch/internal/domain"
	"PriceWatch/internal/extraction"
	"PriceWatch/internal/logging"
	"PriceWatch/internal/ports"
)

const (
	DefaultBatchSize  = 10
	DefaultBatchPause = 5 * time.Second
	DefaultRunTimeout = 5 * time.Minute

	bookkeepingTimeout = 30 * time.Second
)

// Extractor yields the first usable price from a fetched page.
type Extractor interface {
	Extract(ctx context.Context, page extraction.Page) (*extraction.Attempt, error)
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Store     ports.Store
	Fetcher   ports.PageFetcher
	Extractor Extractor
	History   *PriceHistory
	Retry     *RetryCoordinator
	Health    *HealthMonitor
	Logger    *slog.Logger

	BatchSize  int
	BatchPause time.Duration
	RunTimeout time.Duration
}

// Pipeline implements the price-check workflow.
type Pipeline struct {
	store     ports.Store
	fetcher   ports.PageFetcher
	extractor Extractor
	history   *PriceHistory
	retry     *RetryCoordinator
	health    *HealthMonitor
	logger    *slog.Logger

	batchSize  int
	batchPause time.Duration
	runTimeout time.Duration
	running    atomic.Bool
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = DefaultBatchSize
	}
	if deps.BatchPause < 0 {
		deps.BatchPause = 0
	}
	if deps.RunTimeout <= 0 {
		deps.RunTimeout = DefaultRunTimeout
	}
	return &Pipeline{
		store:      deps.Store,
		fetcher:    deps.Fetcher,
		extractor:  deps.Extractor,
		history:    deps.History,
		retry:      deps.Retry,
		health:     deps.Health,
		logger:     deps.Logger.With("component", "pipeline"),
		batchSize:  deps.BatchSize,
		batchPause: deps.BatchPause,
		runTimeout: deps.RunTimeout,
	}
}

// Outcome describes what one check did to a listing.
type Outcome struct {
	ListingID   string
	Status      domain.ListingStatus
	Observation *domain.PriceObservation
	Strategy    string
	Anomaly     bool
	Attempt     int
	Retry       *RetryDecision
	Abandoned   bool
	Err         error
}

// Succeeded reports whether an observation was saved.
func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Observation != nil
}

// BatchResult collects every outcome of a batch run, in input order.
type BatchResult struct {
	Outcomes  []Outcome
	TimedOut  bool
	AlertSent bool
}

// RunSummary is returned to triggers.
type RunSummary struct {
	Processed int    `json:"processed"`
	Succeeded int    `json:"succeeded"`
	Errors    int    `json:"errors"`
	Removed   int    `json:"removed"`
	Abandoned int    `json:"abandoned"`
	AlertSent bool   `json:"alertSent"`
	Message   string `json:"message"`
}

// Run checks every active or error listing once. Overlapping runs are rejected.
func (p *Pipeline) Run(ctx context.Context) (RunSummary, error) {
	if !p.running.CompareAndSwap(false, true) {
		return RunSummary{}, domain.ErrRunInProgress
	}
	defer p.running.Store(false)

	started := time.Now()
	listings, err := p.store.ListCheckable(ctx)
	if err != nil {
		return RunSummary{}, fmt.Errorf("list checkable listings: %w", err)
	}

	p.logger.Info("price check run started", "listings", len(listings))
	result := p.ProcessBatch(ctx, listings)
	summary := summarize(result)

	p.logger.Info("price check run finished",
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"errors", summary.Errors,
		"abandoned", summary.Abandoned,
		"timed_out", result.TimedOut,
		"duration", time.Since(started))
	return summary, nil
}

// CheckListing is a manual recheck of one listing. Removed listings are not fetched again.
func (p *Pipeline) CheckListing(ctx context.Context, listingID string) (Outcome, error) {
	listing, err := p.store.GetListing(ctx, listingID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load listing %s: %w", listingID, err)
	}
	if listing.Status == domain.StatusRemoved {
		return Outcome{ListingID: listing.ID, Status: listing.Status}, nil
	}
	return p.ProcessOne(ctx, listing), nil
}

// ProcessBatch splits listings into fixed-size batches. Members of a batch run concurrently
// and independently; batches run one after another with a pause in between. The whole call
// is bounded by the run timeout, after which unfinished listings are abandoned.
func (p *Pipeline) ProcessBatch(ctx context.Context, listings []domain.Listing) BatchResult {
	runCtx, cancel := context.WithTimeout(ctx, p.runTimeout)
	defer cancel()

	outcomes := make([]Outcome, len(listings))
	finished := make([]bool, len(listings))

	for start := 0; start < len(listings); start += p.batchSize {
		if start > 0 && !p.pause(runCtx) {
			break
		}
		if runCtx.Err() != nil {
			break
		}

		end := min(start+p.batchSize, len(listings))
		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				outcomes[i] = p.ProcessOne(runCtx, listings[i])
				finished[i] = !outcomes[i].Abandoned
				return nil
			})
		}
		_ = g.Wait()
	}

	result := BatchResult{TimedOut: runCtx.Err() != nil}

	// The run context may be gone; bookkeeping still has to land.
	bctx, bcancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer bcancel()

	for i, listing := range listings {
		if finished[i] {
			continue
		}
		outcomes[i] = Outcome{
			ListingID: listing.ID,
			Status:    listing.Status,
			Abandoned: true,
			Err:       fmt.Errorf("run timeout exceeded: %w", context.DeadlineExceeded),
		}
		p.logger.Warn("listing abandoned by run timeout", "listing_id", listing.ID, "url", listing.URL)
		p.recordHealth(bctx, listing.ID, false)
	}
	result.Outcomes = outcomes

	if p.health != nil {
		sent, err := p.health.CheckAndAlert(bctx)
		if err != nil {
			p.logger.Error("health check failed", "error", err)
		}
		result.AlertSent = sent
	}
	return result
}

func (p *Pipeline) pause(ctx context.Context) bool {
	if p.batchPause <= 0 {
		return true
	}
	timer := time.NewTimer(p.batchPause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// ProcessOne runs fetch, extract, validate, persist for one listing. Failures never escape:
// they are converted into a removed transition, a retry decision or a configuration report.
func (p *Pipeline) ProcessOne(ctx context.Context, listing domain.Listing) Outcome {
	started := time.Now()
	logger := p.logger.With("listing_id", listing.ID, "url", listing.URL)

	html, err := p.fetcher.Fetch(ctx, listing.URL)
	if err != nil {
		return p.fail(ctx, listing, fmt.Errorf("fetch: %w", err))
	}

	attempt, err := p.extractor.Extract(ctx, extraction.Page{
		ListingID: listing.ID,
		URL:       listing.URL,
		HTML:      html,
		Selector:  listing.Selector,
	})
	if err != nil {
		return p.fail(ctx, listing, err)
	}

	if verdict := Validate(attempt.Result); !verdict.Valid {
		return p.fail(ctx, listing, verdict.Err())
	}

	anomaly, err := p.history.DetectAnomaly(ctx, listing.ID, attempt.Result.Price)
	if err != nil {
		logger.Warn("anomaly detection failed", "error", err)
	}

	obs, err := p.history.Save(ctx, listing.ID, attempt.Result)
	if err != nil {
		return p.fail(ctx, listing, err)
	}
	if err := p.history.UpdateLastChecked(ctx, listing.ID); err != nil {
		logger.Error("update last checked", "error", err)
	}

	p.recordHealth(ctx, listing.ID, true)

	status := listing.Status
	if status == domain.StatusError {
		if err := p.store.UpdateStatus(ctx, listing.ID, domain.StatusActive); err != nil {
			logger.Error("reactivate listing", "error", err)
		} else {
			status = domain.StatusActive
			logger.Info("listing recovered", "status", status)
		}
	}

	if attempt.Strategy != extraction.StrategySelector && attempt.Selector != "" && attempt.Selector != listing.Selector {
		if err := p.store.UpdateSelector(ctx, listing.ID, attempt.Selector); err != nil {
			logger.Error("store learned selector", "error", err)
		} else {
			logger.Info("selector updated", "strategy", attempt.Strategy, "selector", attempt.Selector)
		}
	}

	logger.Info("price checked",
		"strategy", attempt.Strategy,
		"price", obs.Price.String(),
		"currency", obs.Currency,
		"anomaly", anomaly,
		"duration", time.Since(started))

	return Outcome{
		ListingID:   listing.ID,
		Status:      status,
		Observation: &obs,
		Strategy:    attempt.Strategy,
		Anomaly:     anomaly,
	}
}

func (p *Pipeline) fail(ctx context.Context, listing domain.Listing, cause error) Outcome {
	logger := p.logger.With("listing_id", listing.ID, "url", listing.URL)
	out := Outcome{ListingID: listing.ID, Status: listing.Status, Err: cause}

	// A listing cut short by the run deadline is bookkept by ProcessBatch.
	if ctx.Err() != nil {
		out.Abandoned = true
		return out
	}

	defer p.recordHealth(ctx, listing.ID, false)

	switch {
	case domain.IsRemoved(cause):
		if err := p.retry.MarkRemoved(ctx, listing.ID, cause); err != nil {
			logger.Error("mark removed", "error", err)
			return out
		}
		out.Status = domain.StatusRemoved
		return out

	case errors.Is(cause, domain.ErrConfiguration):
		logger.Error("configuration error, not retrying", "error", cause)
		return out
	}

	attempt, err := p.retry.CurrentAttempt(ctx, listing.ID)
	if err != nil {
		logger.Error("derive attempt", "error", err)
		attempt = 1
	}
	out.Attempt = attempt

	decision, err := p.retry.Handle(ctx, listing.ID, cause, attempt)
	out.Retry = &decision
	if err != nil {
		logger.Error("apply retry decision", "attempt", attempt, "error", err)
		return out
	}
	if !decision.ShouldRetry {
		out.Status = domain.StatusError
	}
	return out
}

func (p *Pipeline) recordHealth(ctx context.Context, listingID string, success bool) {
	if p.health == nil {
		return
	}
	if err := p.health.Record(ctx, listingID, success); err != nil {
		p.logger.Error("record health", "listing_id", listingID, "success", success, "error", err)
	}
}

func summarize(result BatchResult) RunSummary {
	summary := RunSummary{AlertSent: result.AlertSent}
	for _, out := range result.Outcomes {
		switch {
		case out.Abandoned:
			summary.Abandoned++
			summary.Errors++
			continue
		case out.Succeeded():
			summary.Succeeded++
		default:
			summary.Errors++
			if out.Status == domain.StatusRemoved {
				summary.Removed++
			}
		}
		summary.Processed++
	}

	summary.Message = fmt.Sprintf("checked %d listings: %d updated, %d failed, %d removed",
		summary.Processed, summary.Succeeded, summary.Errors-summary.Abandoned, summary.Removed)
	if summary.Abandoned > 0 {
		summary.Message += fmt.Sprintf(", %d abandoned after timeout", summary.Abandoned)
	}
	return summary
}
