package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"PriceWatch/internal/domain"
)

// Strategy names used in configuration.
const (
	StrategySelector = "selector"
	StrategyAI       = "ai"
	StrategyMetadata = "metadata"
)

// Page is the fetched listing passed to every strategy.
type Page struct {
	ListingID string
	URL       string
	HTML      string
	Selector  string
}

// Attempt is a usable extraction produced by one strategy.
type Attempt struct {
	Result     domain.ExtractionResult
	Strategy   string
	Selector   string
	Confidence float64
}

// Strategy captures a single extraction method (CSS selector, LLM, page metadata).
// Extract returns (nil, nil) when it found nothing and the next strategy should run.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, page Page) (*Attempt, error)
}

// Registry keeps a mapping from strategy names to their implementations.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[string]Strategy{}}
}

// Register adds or replaces a strategy implementation.
func (r *Registry) Register(strategy Strategy) {
	if r.strategies == nil {
		r.strategies = map[string]Strategy{}
	}
	r.strategies[strategy.Name()] = strategy
}

// Resolve returns a strategy by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Strategy, error) {
	if strategy, ok := r.strategies[name]; ok {
		return strategy, nil
	}
	return nil, fmt.Errorf("extraction strategy %s is not registered", name)
}

// Chain builds an ordered fallback chain. Names missing from the registry are skipped,
// so an unconfigured AI backend simply drops out of the order.
func (r *Registry) Chain(names []string, logger *slog.Logger) *Chain {
	chain := &Chain{logger: logger}
	for _, name := range names {
		strategy, err := r.Resolve(name)
		if err != nil {
			if logger != nil {
				logger.Debug("strategy skipped", "strategy", name, "error", err)
			}
			continue
		}
		chain.strategies = append(chain.strategies, strategy)
	}
	return chain
}

// Chain tries strategies in order and returns the first usable attempt.
type Chain struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewChain wires strategies in the given order.
func NewChain(logger *slog.Logger, strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, logger: logger}
}

// Names lists the strategies in fallback order.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Extract runs the fallback chain. Configuration errors abort the chain;
// any other strategy error is logged and the next strategy is tried.
func (c *Chain) Extract(ctx context.Context, page Page) (*Attempt, error) {
	for _, strategy := range c.strategies {
		attempt, err := strategy.Extract(ctx, page)
		if err != nil {
			if isConfiguration(err) {
				return nil, fmt.Errorf("strategy %s: %w", strategy.Name(), err)
			}
			if ctx.Err() != nil {
				return nil, fmt.Errorf("strategy %s: %w", strategy.Name(), ctx.Err())
			}
			c.warn("strategy failed, falling back", "strategy", strategy.Name(), "listing_id", page.ListingID, "error", err)
			continue
		}
		if attempt == nil {
			c.debug("strategy found nothing", "strategy", strategy.Name(), "listing_id", page.ListingID)
			continue
		}
		if attempt.Strategy == "" {
			attempt.Strategy = strategy.Name()
		}
		return attempt, nil
	}
	return nil, fmt.Errorf("%w: no strategy produced a price for %s", domain.ErrExtraction, page.URL)
}

func (c *Chain) debug(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Chain) warn(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func isConfiguration(err error) bool {
	return errors.Is(err, domain.ErrConfiguration)
}
