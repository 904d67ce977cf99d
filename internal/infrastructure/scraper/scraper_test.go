package scraper

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"PriceWatch/internal/domain"
)

func TestFetchRotatesIdentities(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		agents []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.UserAgent())
		mu.Unlock()
		_, _ = w.Write([]byte(`<span class="price">100 zł</span>`))
	}))
	defer server.Close()

	s := New(Options{Client: server.Client(), NoThrottle: true})
	for i := 0; i < 3; i++ {
		body, err := s.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
		if body != `<span class="price">100 zł</span>` {
			t.Fatalf("unexpected body: %s", body)
		}
	}

	if len(agents) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(agents))
	}
	if agents[0] == agents[1] || agents[1] == agents[2] {
		t.Fatalf("user agents were not rotated: %v", agents)
	}
}

func TestFetchRemovedStatus(t *testing.T) {
	t.Parallel()

	for _, code := range []int{http.StatusNotFound, http.StatusGone} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
			_, _ = w.Write([]byte("ogłoszenie nieaktualne"))
		}))

		s := New(Options{Client: server.Client(), NoThrottle: true})
		_, err := s.Fetch(context.Background(), server.URL)
		server.Close()

		if !domain.IsRemoved(err) {
			t.Fatalf("status %d: expected removed error, got %v", code, err)
		}
	}
}

func TestFetchServerErrorIsRetryable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	s := New(Options{Client: server.Client(), NoThrottle: true})
	_, err := s.Fetch(context.Background(), server.URL)

	var httpErr *domain.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected HTTPError 503, got %v", err)
	}
	if !domain.IsRetryable(err) {
		t.Fatal("503 should be retryable")
	}
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	s := New(Options{Client: server.Client(), Timeout: 50 * time.Millisecond, NoThrottle: true})
	_, err := s.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestFetchDecodesGzip(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte("<p>99 EUR</p>"))
		_ = gz.Close()
	}))
	defer server.Close()

	s := New(Options{Client: server.Client(), NoThrottle: true})
	body, err := s.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if body != "<p>99 EUR</p>" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestFetchDecodesBrotli(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		br := brotli.NewWriter(w)
		_, _ = br.Write([]byte("<span class=\"price\">1 299,99 zł</span>"))
		_ = br.Close()
	}))
	defer server.Close()

	s := New(Options{Client: server.Client(), NoThrottle: true})
	body, err := s.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if body != `<span class="price">1 299,99 zł</span>` {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestFetchThrottlesAfterSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	s := New(Options{Client: server.Client(), ThrottleMin: 60 * time.Millisecond, ThrottleMax: 80 * time.Millisecond})
	started := time.Now()
	if _, err := s.Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if elapsed := time.Since(started); elapsed < 60*time.Millisecond {
		t.Fatalf("expected post-fetch pause, returned after %v", elapsed)
	}
}

func TestThrottleBounds(t *testing.T) {
	t.Parallel()

	th := NewThrottle(5*time.Second, 2*time.Second)
	for i := 0; i < 100; i++ {
		d := th.Next()
		if d < 2*time.Second || d >= 5*time.Second {
			t.Fatalf("delay out of range: %v", d)
		}
	}
}

func TestRobotsGate(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	s := New(Options{Client: server.Client(), NoThrottle: true, Robots: NewRobotsGate(server.Client())})
	if _, err := s.Fetch(context.Background(), server.URL+"/offer/1"); err != nil {
		t.Fatalf("allowed path failed: %v", err)
	}
	_, err := s.Fetch(context.Background(), server.URL+"/private/1")
	if err == nil {
		t.Fatal("expected robots.txt block")
	}
	if domain.IsRemoved(err) || !domain.IsRetryable(err) {
		t.Fatalf("robots block should be a retryable fetch error: %v", err)
	}
}
