package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"PriceWatch/internal/domain"
	"PriceWatch/internal/extraction"
)

// SelectorStrategy reads the price from the listing's stored CSS selector.
type SelectorStrategy struct{}

var _ extraction.Strategy = SelectorStrategy{}

// Name identifies the strategy inside the registry.
func (SelectorStrategy) Name() string { return extraction.StrategySelector }

// Extract returns nothing when the listing has no selector or the element is gone.
func (SelectorStrategy) Extract(_ context.Context, page extraction.Page) (*extraction.Attempt, error) {
	result, err := ExtractWithSelector(page.HTML, page.Selector)
	if err != nil || result == nil {
		return nil, err
	}
	return &extraction.Attempt{Result: *result, Confidence: 1}, nil
}

// MetadataStrategy is a parsing-only heuristic over structured page metadata:
// schema.org JSON-LD offers and price meta tags.
type MetadataStrategy struct{}

var _ extraction.Strategy = MetadataStrategy{}

var priceMetaSelectors = []struct {
	price    string
	currency string
}{
	{`meta[property="product:price:amount"]`, `meta[property="product:price:currency"]`},
	{`meta[property="og:price:amount"]`, `meta[property="og:price:currency"]`},
	{`meta[itemprop="price"]`, `meta[itemprop="priceCurrency"]`},
}

// Name identifies the strategy inside the registry.
func (MetadataStrategy) Name() string { return extraction.StrategyMetadata }

// Extract looks at JSON-LD first, then at price meta tags.
func (MetadataStrategy) Extract(_ context.Context, page extraction.Page) (*extraction.Attempt, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	if result, ok := fromJSONLD(doc); ok {
		return &extraction.Attempt{Result: result, Confidence: 0.9}, nil
	}

	for _, m := range priceMetaSelectors {
		node := doc.Find(m.price).First()
		content, ok := node.Attr("content")
		if !ok {
			continue
		}
		price, ok := ParsePrice(content)
		if !ok {
			continue
		}
		currency := DetectCurrency(content)
		if code, exists := doc.Find(m.currency).First().Attr("content"); exists {
			if c, supported := domain.ParseCurrency(code); supported {
				currency = c
			}
		}
		return &extraction.Attempt{
			Result:     domain.ExtractionResult{Price: price, Currency: currency, RawText: strings.TrimSpace(content)},
			Selector:   m.price,
			Confidence: 0.9,
		}, nil
	}

	return nil, nil
}

func fromJSONLD(doc *goquery.Document) (domain.ExtractionResult, bool) {
	var (
		result domain.ExtractionResult
		found  bool
	)
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var payload any
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return true
		}
		result, found = findOffer(payload)
		return !found
	})
	return result, found
}

func findOffer(node any) (domain.ExtractionResult, bool) {
	switch v := node.(type) {
	case []any:
		for _, item := range v {
			if r, ok := findOffer(item); ok {
				return r, true
			}
		}
	case map[string]any:
		if graph, ok := v["@graph"]; ok {
			if r, ok := findOffer(graph); ok {
				return r, true
			}
		}
		if offers, ok := v["offers"]; ok {
			if r, ok := findOffer(offers); ok {
				return r, true
			}
		}
		raw, ok := v["price"]
		if !ok {
			raw = v["lowPrice"]
		}
		price, ok := jsonNumber(raw)
		if !ok {
			return domain.ExtractionResult{}, false
		}
		currency := domain.DefaultCurrency
		if code, ok := v["priceCurrency"].(string); ok {
			if c, supported := domain.ParseCurrency(code); supported {
				currency = c
			}
		}
		return domain.ExtractionResult{
			Price:    price,
			Currency: currency,
			RawText:  fmt.Sprintf("%v %s", raw, currency),
		}, true
	}
	return domain.ExtractionResult{}, false
}

func jsonNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, true
		}
		return ParsePrice(v)
	}
	return 0, false
}
