package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsGate caches robots.txt rules per host.
type RobotsGate struct {
	client   *http.Client
	cacheTTL time.Duration

	mu     sync.RWMutex
	rules  map[string]*robotstxt.RobotsData
	expiry map[string]time.Time
}

// NewRobotsGate creates a gate using client for robots.txt downloads.
func NewRobotsGate(client *http.Client) *RobotsGate {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RobotsGate{
		client:   client,
		cacheTTL: time.Hour,
		rules:    make(map[string]*robotstxt.RobotsData),
		expiry:   make(map[string]time.Time),
	}
}

// Allowed reports whether userAgent may fetch rawURL.
func (g *RobotsGate) Allowed(ctx context.Context, userAgent, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("parse url: %w", err)
	}

	data, err := g.load(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		return true, err
	}
	return data.TestAgent(u.Path, userAgent), nil
}

func (g *RobotsGate) load(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	g.mu.RLock()
	data, ok := g.rules[origin]
	exp := g.expiry[origin]
	g.mu.RUnlock()
	if ok && time.Now().Before(exp) {
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}

	data, err = robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	g.mu.Lock()
	g.rules[origin] = data
	g.expiry[origin] = time.Now().Add(g.cacheTTL)
	g.mu.Unlock()
	return data, nil
}
