package models

import (
	"strings"
	"time"
)

// EntryType distinguishes guest reservations from calendar blocks.
type EntryType string

const (
	EntryTypeReservation EntryType = "Reservation"
	EntryTypeBlock       EntryType = "Block"
)

// ServiceType is the kind of field work a reservation produces.
type ServiceType string

const (
	ServiceTypeTurnover      ServiceType = "Turnover"
	ServiceTypeReturnLaundry ServiceType = "Return Laundry"
	ServiceTypeInspection    ServiceType = "Inspection"
	ServiceTypeNeedsReview   ServiceType = "Needs Review"
)

// Status is the reconciliation status of a record. At most one non-Old
// record exists per (UID, Feed URL) at any time.
type Status string

const (
	StatusNew      Status = "New"
	StatusModified Status = "Modified"
	StatusRemoved  Status = "Removed"
	StatusOld      Status = "Old"
)

// JobStatus mirrors the downstream job lifecycle.
type JobStatus string

const (
	JobStatusUnscheduled JobStatus = "Unscheduled"
	JobStatusScheduled   JobStatus = "Scheduled"
	JobStatusInProgress  JobStatus = "In Progress"
	JobStatusCompleted   JobStatus = "Completed"
	JobStatusCanceled    JobStatus = "Canceled"
)

// SyncStatus reports the divergence between the desired service time and
// the downstream job's scheduled start. Divergence is shown, never hidden.
type SyncStatus string

const (
	SyncStatusSynced     SyncStatus = "Synced"
	SyncStatusWrongDate  SyncStatus = "Wrong Date"
	SyncStatusWrongTime  SyncStatus = "Wrong Time"
	SyncStatusNotCreated SyncStatus = "Not Created"
)

// Block categories.
const (
	BlockTypeOwner       = "owner"
	BlockTypeMaintenance = "maintenance"
	BlockTypeOther       = "other"
)

// OldJobIDPrefix is prepended to a superseded record's job id so stray
// webhooks cannot resurrect stale links.
const OldJobIDPrefix = "old_"

// Reservation is the central entity projected into the record store.
type Reservation struct {
	RecordID string // store record id; empty until created

	UID         string
	FeedURL     string // origin discriminator; (UID, FeedURL) is the external identity
	EntrySource string // itrip, evolve, evolve_tab2, ical, webhook

	PropertyID string
	CheckIn    time.Time // calendar date in the business timezone
	CheckOut   time.Time

	EntryType   EntryType
	ServiceType ServiceType
	Status      Status
	BlockType   string // owner / maintenance / other, blocks only

	SameDayTurnover  bool
	OverlappingDates bool
	OwnerArriving    bool
	LongTermGuest    bool
	SameDayOverride  *bool // explicit upstream "Same Day?" value, wins over derived

	SupplierInfo string

	// Removal safety tracking.
	MissingCount int
	MissingSince *time.Time
	LastSeen     *time.Time

	// Downstream job link.
	ServiceJobID         string
	ServiceAppointmentID string
	JobStatus            JobStatus

	ScheduledServiceTime *time.Time // last value observed downstream
	FinalServiceTime     *time.Time // desired value; store formula, read-only here

	CustomInstructions     string
	ServiceLineDescription string

	SyncStatus          SyncStatus
	SyncDetails         string
	ScheduleSyncDetails string

	LastUpdated time.Time
}

// IsActive reports whether the record participates in reconciliation.
func (r *Reservation) IsActive() bool {
	return r.Status != StatusOld
}

// HasLiveJob reports whether the record carries a usable downstream job link.
func (r *Reservation) HasLiveJob() bool {
	return r.ServiceJobID != "" && !strings.HasPrefix(r.ServiceJobID, OldJobIDPrefix)
}

// Nights returns the stay length in nights.
func (r *Reservation) Nights() int {
	return int(r.CheckOut.Sub(r.CheckIn).Hours() / 24)
}

// SameDate reports whether two timestamps fall on the same calendar date.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DateOnly truncates a timestamp to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
