package domain

import "time"

// ErrorEvent records one failed check. Counting these inside the attempt
// window yields a listing's current retry attempt.
type ErrorEvent struct {
	ID            string
	ListingID     string
	Message       string
	StackTrace    string
	AttemptNumber int
	CreatedAt     time.Time
}

// SystemEventType classifies entries of the system event log.
type SystemEventType string

const (
	EventSuccess   SystemEventType = "success"
	EventFailure   SystemEventType = "failure"
	EventAnomaly   SystemEventType = "anomaly"
	EventAlertSent SystemEventType = "alert-sent"
)

// SystemEvent feeds health aggregation and alert cooldown.
type SystemEvent struct {
	ID        string
	ListingID string
	Type      SystemEventType
	Message   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// HealthSnapshot is the aggregated view over a trailing window of check events.
type HealthSnapshot struct {
	WindowHours        int        `json:"windowHours"`
	SuccessRate        float64    `json:"successRate"`
	TotalChecks        int        `json:"totalChecks"`
	ErrorCount         int        `json:"errorCount"`
	ActiveListingCount int        `json:"activeListingCount"`
	LastAlertAt        *time.Time `json:"lastAlertAt,omitempty"`
}

// ErrorRate is the complement of SuccessRate, in percent.
func (h HealthSnapshot) ErrorRate() float64 {
	return 100 - h.SuccessRate
}
