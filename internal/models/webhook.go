package models

import "time"

// WebhookEvent is a field-service job lifecycle event after minimal parsing.
// The HTTP handler enqueues these; workers apply them to the record store.
type WebhookEvent struct {
	ID             string     `json:"id"` // internal id assigned at intake
	EventType      string     `json:"event_type"`
	JobID          string     `json:"job_id"`
	WorkStatus     string     `json:"work_status"`
	ScheduledStart *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd   *time.Time `json:"scheduled_end,omitempty"`
	ReceivedAt     time.Time  `json:"received_at"`
}

// WorkStatusMap translates field-service work_status values into record
// job statuses. Shared by the webhook workers and the projector.
var WorkStatusMap = map[string]JobStatus{
	"unscheduled":        JobStatusUnscheduled,
	"needs scheduling":   JobStatusUnscheduled,
	"scheduled":          JobStatusScheduled,
	"in progress":        JobStatusInProgress,
	"in_progress":        JobStatusInProgress,
	"complete":           JobStatusCompleted,
	"complete unrated":   JobStatusCompleted,
	"complete rated":     JobStatusCompleted,
	"completed":          JobStatusCompleted,
	"canceled":           JobStatusCanceled,
	"cancelled":          JobStatusCanceled,
	"user canceled":      JobStatusCanceled,
	"pro canceled":       JobStatusCanceled,
}
