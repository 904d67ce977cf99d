package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Currency is one of the supported ISO codes.
type Currency string

const (
	CurrencyPLN Currency = "PLN"
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
)

// DefaultCurrency is assumed when a price text carries no recognizable marker.
const DefaultCurrency = CurrencyPLN

// SupportedCurrencies lists every accepted currency code.
var SupportedCurrencies = []Currency{CurrencyPLN, CurrencyEUR, CurrencyUSD, CurrencyGBP}

// ParseCurrency normalizes a code and reports whether it is supported.
func ParseCurrency(code string) (Currency, bool) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	return c, c.Supported()
}

// Supported reports whether c is an accepted currency code.
func (c Currency) Supported() bool {
	for _, s := range SupportedCurrencies {
		if c == s {
			return true
		}
	}
	return false
}

// ExtractionResult is a candidate price produced by an extraction strategy.
// It is never persisted directly; Validator decides whether it becomes an observation.
type ExtractionResult struct {
	Price    float64
	Currency Currency
	RawText  string
}

// PriceObservation is an append-only record of a successfully extracted price.
type PriceObservation struct {
	ID         string
	ListingID  string
	Price      decimal.Decimal
	Currency   Currency
	ObservedAt time.Time
}

// PriceStats summarizes the full observation history of a listing.
type PriceStats struct {
	Min   decimal.Decimal
	Max   decimal.Decimal
	Avg   decimal.Decimal
	Count int
}
