package scraper

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/time/rate"

	"PriceWatch/internal/domain"
	"PriceWatch/internal/ports"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultThrottleMin = 2 * time.Second
	defaultThrottleMax = 5 * time.Second
	maxBodyBytes       = 8 << 20
)

// Options tune the fetcher. Zero values fall back to production defaults,
// except the throttle which must be disabled explicitly with NoThrottle.
type Options struct {
	Client      *http.Client
	Timeout     time.Duration
	ThrottleMin time.Duration
	ThrottleMax time.Duration
	NoThrottle  bool
	Limiter     *rate.Limiter
	Robots      *RobotsGate
	Logger      *slog.Logger
}

// Scraper fetches listing pages with rotating browser identities and a post-fetch pause.
type Scraper struct {
	client     *http.Client
	timeout    time.Duration
	identities *IdentityPool
	throttle   *Throttle
	limiter    *rate.Limiter
	robots     *RobotsGate
	logger     *slog.Logger
}

var _ ports.PageFetcher = (*Scraper)(nil)

// New wires an HTTP client; timeout defaults to 30s and the throttle to 2-5s.
func New(opts Options) *Scraper {
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var throttle *Throttle
	if !opts.NoThrottle {
		minDelay, maxDelay := opts.ThrottleMin, opts.ThrottleMax
		if minDelay <= 0 && maxDelay <= 0 {
			minDelay, maxDelay = defaultThrottleMin, defaultThrottleMax
		}
		throttle = NewThrottle(minDelay, maxDelay)
	}

	return &Scraper{
		client:     client,
		timeout:    timeout,
		identities: NewIdentityPool(),
		throttle:   throttle,
		limiter:    opts.Limiter,
		robots:     opts.Robots,
		logger:     opts.Logger,
	}
}

// Fetch downloads the page body. Non-2xx responses become *domain.HTTPError so callers
// can detect removal from the status code alone. After every successful fetch the call
// sleeps for a random throttle interval before returning.
func (s *Scraper) Fetch(ctx context.Context, url string) (string, error) {
	body, err := s.fetch(ctx, url)
	if err != nil {
		return "", err
	}

	if s.throttle != nil {
		if waitErr := s.throttle.Wait(ctx); waitErr != nil {
			s.debug("throttle interrupted", "url", url, "error", waitErr)
		}
	}

	return body, nil
}

func (s *Scraper) fetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	identity := s.identities.Next()

	if s.robots != nil {
		allowed, err := s.robots.Allowed(ctx, identity.UserAgent, url)
		if err != nil {
			s.debug("robots check failed, allowing", "url", url, "error", err)
		} else if !allowed {
			return "", fmt.Errorf("fetch %s: blocked by robots.txt", url)
		}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("fetch %s: rate limiter: %w", url, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	identity.Apply(req)

	started := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &domain.HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := readBody(resp)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}

	s.debug("page fetched", "url", url, "bytes", len(body), "duration", time.Since(started))
	return string(body), nil
}

// readBody decodes gzip and brotli payloads since Accept-Encoding is set by hand.
func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	default:
		reader = resp.Body
	}
	return io.ReadAll(io.LimitReader(reader, maxBodyBytes))
}

func (s *Scraper) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
