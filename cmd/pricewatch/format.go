package main

import (
	"encoding/json"
	"os"

	"PriceWatch/internal/api"
	"PriceWatch/internal/usecase"
)

func checkReport(out usecase.Outcome, lang string) map[string]any {
	_, message := api.LocalizedStatus(lang, out)

	report := map[string]any{
		"listingId": out.ListingID,
		"status":    out.Status,
		"message":   message,
	}
	if out.Observation != nil {
		report["price"] = out.Observation.Price.StringFixed(2)
		report["currency"] = out.Observation.Currency
		report["strategy"] = out.Strategy
		report["anomaly"] = out.Anomaly
	}
	if out.Err != nil {
		report["error"] = out.Err.Error()
	}
	return report
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
