package usecase

import (
	"errors"
	"math"
	"testing"

	"PriceWatch/internal/domain"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  domain.ExtractionResult
		valid  bool
		errors int
	}{
		{"typical", domain.ExtractionResult{Price: 45000, Currency: domain.CurrencyPLN, RawText: "45 000 zł"}, true, 0},
		{"just below ceiling", domain.ExtractionResult{Price: 9_999_999.99, Currency: domain.CurrencyEUR, RawText: "9999999.99"}, true, 0},
		{"ceiling", domain.ExtractionResult{Price: 10_000_000, Currency: domain.CurrencyEUR, RawText: "10000000"}, false, 1},
		{"rounds below a cent", domain.ExtractionResult{Price: 0.004, Currency: domain.CurrencyEUR, RawText: "0.004"}, false, 1},
		{"rounds up to a cent", domain.ExtractionResult{Price: 0.005, Currency: domain.CurrencyEUR, RawText: "0.005"}, true, 0},
		{"rounds to ceiling", domain.ExtractionResult{Price: 9_999_999.996, Currency: domain.CurrencyEUR, RawText: "9999999.996"}, false, 1},
		{"zero", domain.ExtractionResult{Price: 0, Currency: domain.CurrencyUSD, RawText: "0"}, false, 1},
		{"negative", domain.ExtractionResult{Price: -5, Currency: domain.CurrencyUSD, RawText: "-5"}, false, 1},
		{"nan", domain.ExtractionResult{Price: math.NaN(), Currency: domain.CurrencyGBP, RawText: "?"}, false, 1},
		{"infinite", domain.ExtractionResult{Price: math.Inf(1), Currency: domain.CurrencyGBP, RawText: "?"}, false, 1},
		{"unsupported currency", domain.ExtractionResult{Price: 10, Currency: "JPY", RawText: "10 JPY"}, false, 1},
		{"empty raw text", domain.ExtractionResult{Price: 10, Currency: domain.CurrencyPLN, RawText: "  "}, false, 1},
		{"everything wrong", domain.ExtractionResult{Price: 0, Currency: "", RawText: ""}, false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Validate(tt.input)
			if got.Valid != tt.valid {
				t.Fatalf("Valid = %v, want %v (errors: %v)", got.Valid, tt.valid, got.Errors)
			}
			if len(got.Errors) != tt.errors {
				t.Fatalf("expected %d errors, got %v", tt.errors, got.Errors)
			}
			err := got.Err()
			if tt.valid && err != nil {
				t.Fatalf("valid result must not produce an error, got %v", err)
			}
			if !tt.valid && !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}
