package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"PriceWatch/internal/domain"
)

var (
	// plainExpr is a bare number with an optional fractional part: "1299.99", "9,5".
	plainExpr = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	// groupedExpr only accepts a separator as digit grouping when exactly three digits follow it.
	groupedExpr = regexp.MustCompile(`^\d{1,3}(?:[ \t\x{00a0}\x{202f}.,']\d{3})+(?:[.,]\d{1,2})?`)
)

var currencyMarkers = []struct {
	marker   string
	currency domain.Currency
}{
	{"PLN", domain.CurrencyPLN},
	{"ZŁ", domain.CurrencyPLN},
	{"EUR", domain.CurrencyEUR},
	{"€", domain.CurrencyEUR},
	{"GBP", domain.CurrencyGBP},
	{"£", domain.CurrencyGBP},
	{"USD", domain.CurrencyUSD},
	{"$", domain.CurrencyUSD},
}

// ExtractWithSelector locates the element matching selector and parses its price.
// A missing element or a non-numeric text yields (nil, nil): the caller should fall back.
func ExtractWithSelector(html, selector string) (*domain.ExtractionResult, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	node := doc.Find(selector).First()
	if node.Length() == 0 {
		return nil, nil
	}

	text := normalizeSpace(node.Text())
	if text == "" {
		if content, ok := node.Attr("content"); ok {
			text = normalizeSpace(content)
		}
	}

	price, ok := ParsePrice(text)
	if !ok {
		return nil, nil
	}

	return &domain.ExtractionResult{
		Price:    price,
		Currency: DetectCurrency(text),
		RawText:  text,
	}, nil
}

// ParsePrice reads the first numeric run of text, dropping thousands separators.
// "45 000 zł" -> 45000, "1 299,99" -> 1299.99, "$1,200" -> 1200, "9.99" -> 9.99.
// Numbers that merely follow each other are not joined: "120 000 3 pokoje" -> 120000.
func ParsePrice(text string) (float64, bool) {
	loc := plainExpr.FindStringIndex(text)
	if loc == nil {
		return 0, false
	}

	match := text[loc[0]:loc[1]]
	rest := text[loc[0]:]
	if grouped := groupedExpr.FindString(rest); grouped != "" && !startsWithDigit(rest[len(grouped):]) {
		match = grouped
	}

	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '\u00a0', '\u202f', '\'':
			return -1
		}
		return r
	}, match)
	cleaned = strings.TrimRight(cleaned, ".,")

	value, err := strconv.ParseFloat(normalizeSeparators(cleaned), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		return resolveSeparator(s, ",")
	case lastDot >= 0:
		return resolveSeparator(s, ".")
	}
	return s
}

// resolveSeparator treats a lone separator followed by exactly three digits,
// or a repeated separator, as digit grouping; anything else is the decimal point.
func resolveSeparator(s, sep string) string {
	if strings.Count(s, sep) > 1 {
		return strings.ReplaceAll(s, sep, "")
	}
	idx := strings.Index(s, sep)
	if len(s)-idx-1 == 3 {
		return strings.ReplaceAll(s, sep, "")
	}
	return strings.Replace(s, sep, ".", 1)
}

// DetectCurrency matches known codes and symbols, defaulting to the local currency.
func DetectCurrency(text string) domain.Currency {
	upper := strings.ToUpper(text)
	for _, m := range currencyMarkers {
		if strings.Contains(upper, m.marker) {
			return m.currency
		}
	}
	return domain.DefaultCurrency
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
