package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotFound is returned by repositories when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExtraction means no strategy produced a usable price.
	ErrExtraction = errors.New("price extraction failed")
	// ErrValidation wraps structurally invalid extraction results.
	ErrValidation = errors.New("price validation failed")
	// ErrPersistence marks storage write failures.
	ErrPersistence = errors.New("persistence failed")
	// ErrConfiguration is surfaced immediately and never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrRunInProgress is returned when a batch run is already executing.
	ErrRunInProgress = errors.New("price check run already in progress")
)

// HTTPError is a non-2xx response from a listing page.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d %s for %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// Removed reports the unambiguous "resource gone" signal. Page content is never consulted.
func (e *HTTPError) Removed() bool {
	return IsRemovedStatus(e.StatusCode)
}

// IsRemovedStatus is true for 404 and 410.
func IsRemovedStatus(code int) bool {
	return code == http.StatusNotFound || code == http.StatusGone
}

// ValidationError carries every failed validation rule.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(e.Errors, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// IsRemoved reports whether err carries a 404/410 response.
func IsRemoved(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Removed()
}

// IsRetryable reports whether a per-listing failure should go through retry accounting.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !IsRemoved(err) && !errors.Is(err, ErrConfiguration)
}
