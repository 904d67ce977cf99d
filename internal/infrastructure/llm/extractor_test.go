package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"PriceWatch/internal/config"
	"PriceWatch/internal/domain"
	"PriceWatch/internal/extraction"
)

func completionServer(t *testing.T, content string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if captured != nil {
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-mini",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"},
			},
			"usage": map[string]any{"prompt_tokens": 1200, "completion_tokens": 40, "total_tokens": 1240},
		})
	}))
}

func newTestClient(endpoint string) *ChatGPTClient {
	return NewChatGPTClient(config.ChatGPTConfig{
		Endpoint: endpoint,
		Model:    "gpt-4o-mini",
		APIKey:   "test-key",
	})
}

func TestExtractorHighConfidence(t *testing.T) {
	t.Parallel()

	var captured map[string]any
	server := completionServer(t, `{"price":45000,"currency":"PLN","confidence":0.95,"selector":"div.offer-price","rawText":"45 000 zł","city":"Kraków","title":"Mieszkanie","imageUrl":""}`, &captured)
	defer server.Close()

	ex := NewExtractor(newTestClient(server.URL), ExtractorOptions{})
	attempt, err := ex.Extract(context.Background(), extraction.Page{
		ListingID: "l-1",
		URL:       "https://example.org/offer/1",
		HTML:      `<html><body><script>var x=1;</script><div class="offer-price">45 000 zł</div></body></html>`,
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if attempt == nil {
		t.Fatal("expected an attempt")
	}
	if attempt.Result.Price != 45000 || attempt.Result.Currency != domain.CurrencyPLN {
		t.Fatalf("unexpected result: %+v", attempt.Result)
	}
	if attempt.Selector != "div.offer-price" {
		t.Fatalf("unexpected selector: %s", attempt.Selector)
	}

	format, _ := captured["response_format"].(map[string]any)
	if format["type"] != "json_schema" {
		t.Fatalf("expected json_schema response format, got %v", format)
	}
	messages, _ := captured["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(messages))
	}
	user, _ := messages[1].(map[string]any)
	if content, _ := user["content"].(string); strings.Contains(content, "var x=1") {
		t.Fatal("scripts should be stripped before sending")
	}
}

func TestExtractorRejectsLowConfidence(t *testing.T) {
	t.Parallel()

	server := completionServer(t, `{"price":45000,"currency":"PLN","confidence":0.5,"selector":"span","rawText":"","city":"","title":"","imageUrl":""}`, nil)
	defer server.Close()

	ex := NewExtractor(newTestClient(server.URL), ExtractorOptions{})
	attempt, err := ex.Extract(context.Background(), extraction.Page{HTML: "<p>?</p>"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if attempt != nil {
		t.Fatalf("low confidence must not be accepted: %+v", attempt)
	}
}

func TestValidateConfidence(t *testing.T) {
	t.Parallel()

	ex := NewExtractor(nil, ExtractorOptions{})
	cases := map[float64]bool{0.79: false, 0.8: true, 0.95: true, 0: false}
	for confidence, want := range cases {
		if got := ex.ValidateConfidence(Result{Confidence: confidence}); got != want {
			t.Fatalf("confidence %v: got %v, want %v", confidence, got, want)
		}
	}
}

func TestExtractorMisconfigured(t *testing.T) {
	t.Parallel()

	ex := NewExtractor(NewChatGPTClient(config.ChatGPTConfig{Endpoint: "http://localhost"}), ExtractorOptions{})
	_, err := ex.Extract(context.Background(), extraction.Page{HTML: "<p>1</p>"})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCleanHTML(t *testing.T) {
	t.Parallel()

	raw := `<html><head><style>.a{}</style></head><body>
	<!-- tracking -->
	<div id="root" class="offer css-1x2y3z sc-AbCdEf" onclick="track()" data-testid="x" style="color:red">
	  <span class="price   price--main">1 200 zł</span>
	  <script>window.__STATE__={}</script>
	  <svg><path d="M0"/></svg>
	</div></body></html>`

	cleaned := CleanHTML(raw, 0)
	for _, banned := range []string{"<script", "<style", "<svg", "onclick", "data-testid", "style=", "tracking", "css-1x2y3z", "sc-AbCdEf"} {
		if strings.Contains(cleaned, banned) {
			t.Fatalf("cleaned html still contains %q: %s", banned, cleaned)
		}
	}
	for _, kept := range []string{`class="price price--main"`, `id="root"`, "1 200 zł", `class="offer"`} {
		if !strings.Contains(cleaned, kept) {
			t.Fatalf("cleaned html lost %q: %s", kept, cleaned)
		}
	}

	if got := CleanHTML(raw, 20); len([]rune(got)) != 20 {
		t.Fatalf("expected truncation to 20 runes, got %d", len([]rune(got)))
	}
}
