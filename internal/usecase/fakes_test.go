package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"PriceWatch/internal/domain"
	"PriceWatch/internal/extraction"
	"PriceWatch/internal/infrastructure/llm"
	"PriceWatch/internal/infrastructure/scraper"
	"PriceWatch/internal/ports"
)

type memStore struct {
	mu           sync.Mutex
	listings     map[string]domain.Listing
	observations []domain.PriceObservation
	errorEvents  []domain.ErrorEvent
	systemEvents []domain.SystemEvent
	insertErr    error
}

var _ ports.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{listings: map[string]domain.Listing{}}
}

func (m *memStore) CreateListing(_ context.Context, listing domain.Listing) (domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if listing.Status == "" {
		listing.Status = domain.StatusActive
	}
	m.listings[listing.ID] = listing
	return listing, nil
}

func (m *memStore) GetListing(_ context.Context, id string) (domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	return l, nil
}

func (m *memStore) ListCheckable(_ context.Context) ([]domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Listing
	for _, l := range m.listings {
		if l.Checkable() {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CountByStatus(_ context.Context, status domain.ListingStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.listings {
		if l.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id string, status domain.ListingStatus) error {
	return m.update(id, func(l *domain.Listing) { l.Status = status })
}

func (m *memStore) UpdateSelector(_ context.Context, id, selector string) error {
	return m.update(id, func(l *domain.Listing) { l.Selector = selector })
}

func (m *memStore) TouchLastChecked(_ context.Context, id string, at time.Time) error {
	return m.update(id, func(l *domain.Listing) { l.LastCheckedAt = &at })
}

func (m *memStore) update(id string, fn func(*domain.Listing)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(&l)
	m.listings[id] = l
	return nil
}

func (m *memStore) InsertObservation(_ context.Context, obs domain.PriceObservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.observations = append(m.observations, obs)
	return nil
}

func (m *memStore) LatestObservation(_ context.Context, listingID string) (domain.PriceObservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		latest domain.PriceObservation
		found  bool
	)
	for _, obs := range m.observations {
		if obs.ListingID != listingID {
			continue
		}
		if !found || !obs.ObservedAt.Before(latest.ObservedAt) {
			latest, found = obs, true
		}
	}
	if !found {
		return domain.PriceObservation{}, domain.ErrNotFound
	}
	return latest, nil
}

func (m *memStore) PriceStats(_ context.Context, listingID string) (domain.PriceStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats domain.PriceStats
	for _, obs := range m.observations {
		if obs.ListingID != listingID {
			continue
		}
		if stats.Count == 0 || obs.Price.LessThan(stats.Min) {
			stats.Min = obs.Price
		}
		if stats.Count == 0 || obs.Price.GreaterThan(stats.Max) {
			stats.Max = obs.Price
		}
		stats.Avg = stats.Avg.Add(obs.Price)
		stats.Count++
	}
	if stats.Count > 0 {
		stats.Avg = stats.Avg.DivRound(decimal.NewFromInt(int64(stats.Count)), 2)
	}
	return stats, nil
}

func (m *memStore) InsertErrorEvent(_ context.Context, event domain.ErrorEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorEvents = append(m.errorEvents, event)
	return nil
}

func (m *memStore) CountErrorEvents(_ context.Context, listingID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.errorEvents {
		if ev.ListingID == listingID && !ev.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) InsertSystemEvent(_ context.Context, event domain.SystemEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.systemEvents = append(m.systemEvents, event)
	return nil
}

func (m *memStore) CountSystemEvents(_ context.Context, eventType domain.SystemEventType, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.systemEvents {
		if ev.Type == eventType && !ev.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) LatestSystemEvent(_ context.Context, eventType domain.SystemEventType) (domain.SystemEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		latest domain.SystemEvent
		found  bool
	)
	for _, ev := range m.systemEvents {
		if ev.Type != eventType {
			continue
		}
		if !found || !ev.CreatedAt.Before(latest.CreatedAt) {
			latest, found = ev, true
		}
	}
	if !found {
		return domain.SystemEvent{}, domain.ErrNotFound
	}
	return latest, nil
}

func (m *memStore) listing(t *testing.T, id string) domain.Listing {
	t.Helper()
	l, err := m.GetListing(context.Background(), id)
	if err != nil {
		t.Fatalf("get listing %s: %v", id, err)
	}
	return l
}

func (m *memStore) countErrorEvents(listingID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.errorEvents {
		if ev.ListingID == listingID {
			n++
		}
	}
	return n
}

func (m *memStore) systemEventsOf(eventType domain.SystemEventType) []domain.SystemEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SystemEvent
	for _, ev := range m.systemEvents {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func (m *memStore) observationsOf(listingID string) []domain.PriceObservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PriceObservation
	for _, obs := range m.observations {
		if obs.ListingID == listingID {
			out = append(out, obs)
		}
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type page struct {
	html string
	err  error
}

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]page
	calls map[string]int
	// hook runs before the canned page is returned; a non-nil error replaces the page.
	hook func(ctx context.Context, url string) error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]page{}, calls: map[string]int{}}
}

func (f *fakeFetcher) set(url, html string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = page{html: html, err: err}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	f.calls[url]++
	p, ok := f.pages[url]
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, url); err != nil {
			return "", err
		}
	}
	if !ok {
		return "", errors.New("connection refused")
	}
	return p.html, p.err
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

type fakeCompletion struct {
	mu      sync.Mutex
	content string
	err     error
	calls   int
}

func (f *fakeCompletion) Complete(_ context.Context, _ ports.CompletionRequest) (ports.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return ports.CompletionResponse{}, f.err
	}
	return ports.CompletionResponse{
		Content: []byte(f.content),
		Model:   "test-model",
		Usage:   ports.TokenUsage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
	}, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []ports.Alert
	err    error
}

func (f *fakeNotifier) SendAlert(_ context.Context, alert ports.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.alerts = append(f.alerts, alert)
	return nil
}

func (f *fakeNotifier) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

type harness struct {
	store      *memStore
	clock      *fakeClock
	fetcher    *fakeFetcher
	completion *fakeCompletion
	notifier   *fakeNotifier
	history    *PriceHistory
	retry      *RetryCoordinator
	health     *HealthMonitor
	pipeline   *Pipeline
}

type harnessOption func(*PipelineDeps)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		store:      newMemStore(),
		clock:      newFakeClock(),
		fetcher:    newFakeFetcher(),
		completion: &fakeCompletion{},
		notifier:   &fakeNotifier{},
	}

	h.history = NewPriceHistory(h.store, 0, nil)
	h.history.now = h.clock.Now
	h.retry = NewRetryCoordinator(h.store, RetryOptions{})
	h.retry.now = h.clock.Now
	h.health = NewHealthMonitor(h.store, h.notifier, HealthOptions{})
	h.health.now = h.clock.Now

	chain := extraction.NewChain(nil,
		scraper.SelectorStrategy{},
		llm.NewExtractor(h.completion, llm.ExtractorOptions{}),
		scraper.MetadataStrategy{},
	)

	deps := PipelineDeps{
		Store:      h.store,
		Fetcher:    h.fetcher,
		Extractor:  chain,
		History:    h.history,
		Retry:      h.retry,
		Health:     h.health,
		BatchSize:  10,
		BatchPause: time.Millisecond,
		RunTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h.pipeline = NewPipeline(deps)
	return h
}

func (h *harness) addListing(t *testing.T, id, url, selector string, status domain.ListingStatus) domain.Listing {
	t.Helper()
	listing, err := h.store.CreateListing(context.Background(), domain.Listing{
		ID:        id,
		URL:       url,
		Selector:  selector,
		Status:    status,
		CreatedAt: h.clock.Now(),
	})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	return listing
}

// assertCheckInvariant verifies the status is a known state and lastCheckedAt moved
// exactly when an observation was saved.
func assertCheckInvariant(t *testing.T, before, after domain.Listing, out Outcome) {
	t.Helper()
	if !after.Status.Valid() {
		t.Fatalf("listing %s ended in unknown status %q", after.ID, after.Status)
	}
	touched := after.LastCheckedAt != nil &&
		(before.LastCheckedAt == nil || !after.LastCheckedAt.Equal(*before.LastCheckedAt))
	if touched != out.Succeeded() {
		t.Fatalf("lastCheckedAt touched=%v but observation saved=%v", touched, out.Succeeded())
	}
}
