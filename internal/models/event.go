package models

import "time"

// EventSource identifies which ingest path produced an event.
type EventSource string

const (
	SourceITripCSV      EventSource = "itrip"
	SourceEvolveCSV     EventSource = "evolve"
	SourceEvolveTab2CSV EventSource = "evolve_tab2"
	SourceCalendarFeed  EventSource = "ical"
	SourceWebhook       EventSource = "webhook"
)

// NormalizedEvent is the single event schema all ingest paths emit and the
// reconciler consumes. Supplier-specific column handling stays inside the
// ingest layer.
type NormalizedEvent struct {
	Source  EventSource
	UID     string
	FeedURL string // feed URL for calendar events, source tag for CSV rows

	PropertyID string
	CheckIn    time.Time
	CheckOut   time.Time

	EntryType   EntryType
	ServiceType ServiceType
	BlockType   string

	GuestName    string
	SupplierInfo string

	SameDayOverride *bool // explicit "Same Day?" column value (iTrip only)

	// Removal marks an event that cancels an existing matching record
	// (Evolve tab2 "cancelled" rows) instead of asserting presence.
	Removal bool
}
