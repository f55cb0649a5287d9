package interfaces

import (
	"context"
	"time"
)

// JobSchedule is the schedule block of a field-service job.
type JobSchedule struct {
	ScheduledStart *time.Time `json:"scheduled_start"`
	ScheduledEnd   *time.Time `json:"scheduled_end"`
	ArrivalWindow  int        `json:"arrival_window"`
}

// JobAppointment is an appointment attached to a job.
type JobAppointment struct {
	ID string `json:"id"`
}

// Job is a field-service job as returned by GET /jobs/{id}.
type Job struct {
	ID           string           `json:"id"`
	WorkStatus   string           `json:"work_status"`
	Schedule     JobSchedule      `json:"schedule"`
	Appointments []JobAppointment `json:"appointments"`
}

// LineItem is one line item on a job.
type LineItem struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	UnitPrice   int    `json:"unit_price"`
	UnitCost    int    `json:"unit_cost"`
	Quantity    int    `json:"quantity"`
	Kind        string `json:"kind,omitempty"`
	Taxable     bool   `json:"taxable"`
}

// CreateJobRequest is the payload for POST /jobs.
type CreateJobRequest struct {
	CustomerID          string      `json:"customer_id"`
	AddressID           string      `json:"address_id"`
	AssignedEmployeeIDs []string    `json:"assigned_employee_ids"`
	Schedule            JobSchedule `json:"schedule"`
	LineItems           []LineItem  `json:"line_items,omitempty"`
	JobFields           JobFields   `json:"job_fields"`
}

// JobFields carries the job-type selection on creation.
type JobFields struct {
	JobTypeID string `json:"job_type_id"`
}

// FieldServiceClient is the rate-limited client for the downstream job
// system (C2). All methods time out and are cancelable.
type FieldServiceClient interface {
	GetJob(ctx context.Context, id string) (*Job, error)
	CreateJob(ctx context.Context, req *CreateJobRequest) (*Job, error)
	ListJobLineItems(ctx context.Context, jobID string) ([]LineItem, error)
	BulkUpdateLineItems(ctx context.Context, jobID string, items []LineItem) error
	ListAppointments(ctx context.Context, jobID string) ([]JobAppointment, error)
}
