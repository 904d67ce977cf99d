package domain

import "time"

// ListingStatus is the lifecycle state of a tracked listing.
type ListingStatus string

const (
	StatusActive  ListingStatus = "active"
	StatusError   ListingStatus = "error"
	StatusRemoved ListingStatus = "removed"
)

// Valid reports whether s is one of the known lifecycle states.
func (s ListingStatus) Valid() bool {
	switch s {
	case StatusActive, StatusError, StatusRemoved:
		return true
	}
	return false
}

// Listing is a tracked external page whose price is periodically re-checked.
type Listing struct {
	ID            string
	URL           string
	Selector      string
	Title         string
	Status        ListingStatus
	LastCheckedAt *time.Time
	CreatedAt     time.Time
}

// Checkable reports whether the pipeline should still visit the listing.
// Removed is terminal; error listings keep being checked so they can recover.
func (l Listing) Checkable() bool {
	return l.Status == StatusActive || l.Status == StatusError
}
