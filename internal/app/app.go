package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"PriceWatch/internal/api"
	"PriceWatch/internal/config"
	"PriceWatch/internal/domain"
	"PriceWatch/internal/extraction"
	"PriceWatch/internal/infrastructure/llm"
	"PriceWatch/internal/infrastructure/notify"
	"PriceWatch/internal/infrastructure/scheduler"
	"PriceWatch/internal/infrastructure/scraper"
	"PriceWatch/internal/infrastructure/storage"
	"PriceWatch/internal/logging"
	"PriceWatch/internal/ports"
	"PriceWatch/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *storage.SQLStore
	history  *usecase.PriceHistory
	health   *usecase.HealthMonitor
	pipeline *usecase.Pipeline
}

// New opens storage and builds every component from configuration.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	store, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	chain, err := buildChain(cfg, baseLogger)
	if err != nil {
		store.Close()
		return nil, err
	}

	history := usecase.NewPriceHistory(store, cfg.Pipeline.AnomalyThreshold, baseLogger)
	retry := usecase.NewRetryCoordinator(store, usecase.RetryOptions{
		MaxAttempts:   cfg.Pipeline.MaxAttempts,
		AttemptWindow: cfg.Pipeline.AttemptWindow,
		Logger:        baseLogger,
	})
	health := usecase.NewHealthMonitor(store, buildNotifier(cfg), usecase.HealthOptions{
		WindowHours:    cfg.Health.WindowHours,
		AlertThreshold: cfg.Health.AlertThreshold,
		Cooldown:       cfg.Health.Cooldown,
		Logger:         baseLogger,
	})

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Store:      store,
		Fetcher:    buildScraper(cfg.Scraper, baseLogger),
		Extractor:  chain,
		History:    history,
		Retry:      retry,
		Health:     health,
		Logger:     baseLogger,
		BatchSize:  cfg.Pipeline.BatchSize,
		BatchPause: cfg.Pipeline.BatchPause,
		RunTimeout: cfg.Pipeline.RunTimeout,
	})

	baseLogger.Info("application ready",
		"database", cfg.Database.Driver,
		"strategies", strings.Join(chain.Names(), ","),
		"batch_size", cfg.Pipeline.BatchSize)

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		store:    store,
		history:  history,
		health:   health,
		pipeline: pipeline,
	}, nil
}

func buildChain(cfg config.Config, logger *slog.Logger) (*extraction.Chain, error) {
	registry := extraction.NewRegistry()
	registry.Register(scraper.SelectorStrategy{})
	registry.Register(scraper.MetadataStrategy{})

	if cfg.ChatGPT.Enabled() {
		registry.Register(llm.NewExtractor(llm.NewChatGPTClient(cfg.ChatGPT), llm.ExtractorOptions{
			SystemPrompt:  cfg.ChatGPT.SystemPrompt,
			Timeout:       cfg.ChatGPT.Timeout,
			MinConfidence: cfg.ChatGPT.MinConfidence,
			MaxHTMLChars:  cfg.ChatGPT.MaxHTMLChars,
			Logger:        logger.With("component", "extractor.ai"),
		}))
	}

	for _, name := range cfg.Extraction.Strategies {
		switch name {
		case extraction.StrategySelector, extraction.StrategyMetadata:
		case extraction.StrategyAI:
			if !cfg.ChatGPT.Enabled() {
				logger.Warn("ai extraction listed but no API key configured, strategy disabled")
			}
		default:
			return nil, fmt.Errorf("%w: unknown extraction strategy %q", domain.ErrConfiguration, name)
		}
	}

	return registry.Chain(cfg.Extraction.Strategies, logger.With("component", "extraction")), nil
}

func buildScraper(cfg config.ScraperConfig, logger *slog.Logger) *scraper.Scraper {
	opts := scraper.Options{
		Timeout:     cfg.Timeout,
		ThrottleMin: cfg.ThrottleMin,
		ThrottleMax: cfg.ThrottleMax,
		Logger:      logger.With("component", "scraper"),
	}
	if cfg.RatePerSecond > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), max(cfg.RateBurst, 1))
	}
	if cfg.RespectRobots {
		opts.Robots = scraper.NewRobotsGate(&http.Client{Timeout: 10 * time.Second})
	}
	return scraper.New(opts)
}

func buildNotifier(cfg config.Config) ports.Notifier {
	var channels []ports.Notifier
	if url := cfg.Notifications.Webhook.URL; url != "" {
		channels = append(channels, notify.NewWebhook(url))
	}
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		channels = append(channels, notify.NewTelegram(tg.BotToken, tg.ChatID))
	}
	if fanout := notify.NewFanout(channels...); fanout != nil {
		return fanout
	}
	return nil
}

// Close releases the storage connection.
func (a *Application) Close() error {
	return a.store.Close()
}

// RunOnce performs a single batch over every checkable listing.
func (a *Application) RunOnce(ctx context.Context) (usecase.RunSummary, error) {
	return a.pipeline.Run(ctx)
}

// AddListing starts tracking url and runs a first check.
func (a *Application) AddListing(ctx context.Context, url, selector, title string) (domain.Listing, usecase.Outcome, error) {
	listing, err := a.store.CreateListing(ctx, domain.Listing{URL: url, Selector: selector, Title: title})
	if err != nil {
		return domain.Listing{}, usecase.Outcome{}, err
	}
	out, err := a.pipeline.CheckListing(ctx, listing.ID)
	if err != nil {
		return listing, usecase.Outcome{}, err
	}
	return listing, out, nil
}

// CheckListing rechecks one listing on demand.
func (a *Application) CheckListing(ctx context.Context, id string) (usecase.Outcome, error) {
	return a.pipeline.CheckListing(ctx, id)
}

// Stats summarizes a listing's price history.
func (a *Application) Stats(ctx context.Context, id string) (domain.PriceStats, error) {
	if _, err := a.store.GetListing(ctx, id); err != nil {
		return domain.PriceStats{}, err
	}
	return a.history.Stats(ctx, id)
}

// Health reports the aggregated check health over windowHours (configured default when 0).
func (a *Application) Health(ctx context.Context, windowHours int) (domain.HealthSnapshot, error) {
	return a.health.Health(ctx, windowHours)
}

// Serve runs the trigger API and the optional interval scheduler until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	if a.cfg.Server.CronSecret == "" {
		a.logger.Warn("CRON_SECRET is empty, authenticated routes are locked")
	}

	handlers := api.NewHandlers(a.pipeline, a.health, a.logger.With("component", "api"))
	server := api.NewServer(a.cfg.Server.Addr, api.NewRouter(handlers, a.cfg.Server.CronSecret), a.cfg.Pipeline.RunTimeout, a.logger)
	errc := server.Start()

	sched := usecase.NewScheduler(
		scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval, a.cfg.Scheduler.Location()),
		a.pipeline,
		a.logger,
	)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if a.cfg.Scheduler.Interval > 0 {
		a.logger.Info("interval scheduler started", "interval", a.cfg.Scheduler.Interval)
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errc:
		if ok {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	return errors.Join(
		serveErr,
		server.Shutdown(shutdownCtx),
		sched.Stop(shutdownCtx),
	)
}
