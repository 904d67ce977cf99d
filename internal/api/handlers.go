package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"PriceWatch/internal/domain"
	"PriceWatch/internal/usecase"
)

// Runner executes price checks.
type Runner interface {
	Run(ctx context.Context) (usecase.RunSummary, error)
	CheckListing(ctx context.Context, listingID string) (usecase.Outcome, error)
}

// HealthReporter exposes the aggregated health view.
type HealthReporter interface {
	Health(ctx context.Context, windowHours int) (domain.HealthSnapshot, error)
}

// Handlers holds dependencies for the API handlers.
type Handlers struct {
	runner Runner
	health HealthReporter
	logger *slog.Logger
}

// NewHandlers creates a new Handlers struct.
func NewHandlers(runner Runner, health HealthReporter, logger *slog.Logger) *Handlers {
	return &Handlers{runner: runner, health: health, logger: logger}
}

type runResponse struct {
	Processed int    `json:"processed"`
	Errors    int    `json:"errors"`
	Message   string `json:"message"`
}

// CheckPrices runs one batch over every checkable listing.
func (h *Handlers) CheckPrices(w http.ResponseWriter, r *http.Request) {
	// A dropped trigger connection must not abandon the run.
	ctx := context.WithoutCancel(r.Context())

	summary, err := h.runner.Run(ctx)
	if errors.Is(err, domain.ErrRunInProgress) {
		writeJSON(w, http.StatusConflict, runResponse{Message: err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("price check run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, runResponse{Message: "price check run failed"})
		return
	}

	writeJSON(w, http.StatusOK, runResponse{
		Processed: summary.Processed,
		Errors:    summary.Errors,
		Message:   summary.Message,
	})
}

type checkResponse struct {
	ListingID string  `json:"listingId"`
	Status    string  `json:"status"`
	Message   string  `json:"message"`
	Price     *string `json:"price,omitempty"`
	Currency  string  `json:"currency,omitempty"`
}

// CheckListing rechecks a single listing and answers with a localized status message.
func (h *Handlers) CheckListing(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	out, err := h.runner.CheckListing(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "listing not found"})
		return
	}
	if err != nil {
		h.logger.Error("manual check failed", "listing_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	lang, message := LocalizedStatus(r.Header.Get("Accept-Language"), out)
	resp := checkResponse{
		ListingID: out.ListingID,
		Status:    string(out.Status),
		Message:   message,
	}
	if out.Observation != nil {
		price := out.Observation.Price.StringFixed(2)
		resp.Price = &price
		resp.Currency = string(out.Observation.Currency)
	}

	w.Header().Set("Content-Language", lang)
	writeJSON(w, http.StatusOK, resp)
}

// Health returns the aggregated health snapshot, optionally for ?hours=N.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	hours := 0
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 24*30 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "hours must be between 1 and 720"})
			return
		}
		hours = n
	}

	snapshot, err := h.health.Health(r.Context(), hours)
	if err != nil {
		h.logger.Error("health snapshot failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// Healthz is the unauthenticated liveness probe.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
