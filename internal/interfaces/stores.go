package interfaces

import (
	"context"

	"github.com/tidyhost/turnsync/internal/models"
)

// ReservationStore is the typed view of the Reservations table.
type ReservationStore interface {
	// ActiveByUID returns all non-Old records for (UID, feedURL).
	// The healthy case is zero or one record; more indicates a prior
	// inconsistency the reconciler heals.
	ActiveByUID(ctx context.Context, uid, feedURL string) ([]*models.Reservation, error)

	// ActiveByFeedURL returns all non-Old records originating from one feed.
	ActiveByFeedURL(ctx context.Context, feedURL string) ([]*models.Reservation, error)

	// ActiveByProperty returns all non-Old records at a property.
	ActiveByProperty(ctx context.Context, propertyID string) ([]*models.Reservation, error)

	// ActiveByJobID returns the active record linked to a downstream job id.
	ActiveByJobID(ctx context.Context, jobID string) (*models.Reservation, error)

	// ListActive returns every non-Old record.
	ListActive(ctx context.Context) ([]*models.Reservation, error)

	// ListWithJobs returns active records that carry a live job link.
	ListWithJobs(ctx context.Context) ([]*models.Reservation, error)

	// Create inserts a new record and returns its store id.
	Create(ctx context.Context, r *models.Reservation) (string, error)

	// Update patches individual fields on a record.
	Update(ctx context.Context, recordID string, fields map[string]any) error
}

// PropertyStore is the read-only typed view of the Properties table.
type PropertyStore interface {
	ListProperties(ctx context.Context) ([]*models.Property, error)
}

// AutomationStore is the typed view of the Automations control table.
type AutomationStore interface {
	// StepEnabled reports whether a named step is enabled; unknown steps
	// default to enabled.
	StepEnabled(ctx context.Context, name string) (bool, error)

	// RecordOutcome writes a step's outcome back to its row.
	RecordOutcome(ctx context.Context, name string, outcome models.StepOutcome) error
}

// RunStorage journals orchestrator runs locally for observability.
type RunStorage interface {
	SaveRun(ctx context.Context, run *models.RunSummary) error
	ListRuns(ctx context.Context, limit int) ([]*models.RunSummary, error)
}
