package usecase

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"PriceWatch/internal/domain"
)

// MaxPrice is the sanity ceiling; anything at or above it is an extraction error.
const MaxPrice = 10_000_000

// ValidationResult lists every rule the extraction result broke.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Err converts a failed result into a *domain.ValidationError.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &domain.ValidationError{Errors: r.Errors}
}

// Validate checks an extraction result against all rules without short-circuiting.
func Validate(res domain.ExtractionResult) ValidationResult {
	errs := priceErrors(res.Price)
	if !res.Currency.Supported() {
		errs = append(errs, fmt.Sprintf("unsupported currency %q", res.Currency))
	}
	if strings.TrimSpace(res.RawText) == "" {
		errs = append(errs, "raw text must not be empty")
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// storedPrice is the amount as persisted, rounded to cents.
func storedPrice(price float64) decimal.Decimal {
	return decimal.NewFromFloat(price).Round(2)
}

// priceErrors applies the range rules to the rounded amount, so 0.004 and
// 9_999_999.996 are rejected just like 0 and the ceiling.
func priceErrors(price float64) []string {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return []string{"price must be a finite number"}
	}

	var errs []string
	cents := storedPrice(price)
	if !cents.IsPositive() {
		errs = append(errs, "price must be greater than 0")
	}
	if cents.GreaterThanOrEqual(decimal.NewFromInt(MaxPrice)) {
		errs = append(errs, fmt.Sprintf("price must be less than %d", MaxPrice))
	}
	return errs
}
