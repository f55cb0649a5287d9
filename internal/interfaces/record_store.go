// Package interfaces defines the service and storage contracts shared
// across the application. All persistent side effects flow through the two
// external clients defined here.
package interfaces

import (
	"context"
	"time"
)

// Record is a raw record from the hosted document store.
type Record struct {
	ID          string         `json:"id"`
	Fields      map[string]any `json:"fields"`
	CreatedTime time.Time      `json:"createdTime"`
}

// ListOptions narrows a List call. Formula is a filter expression
// interpreted by the store; View selects a named server-side view.
type ListOptions struct {
	Formula    string
	View       string
	MaxRecords int
	Fields     []string
}

// RecordStore is the typed gateway over the external document database
// (C1). Implementations retry transient failures with backoff; surfaced
// errors distinguish retryable, validation, and authentication failures.
type RecordStore interface {
	List(ctx context.Context, table string, opts ListOptions) ([]Record, error)
	Find(ctx context.Context, table, id string) (*Record, error)
	Create(ctx context.Context, table string, fields map[string]any) (*Record, error)
	Update(ctx context.Context, table, id string, fields map[string]any) (*Record, error)
	BatchUpdate(ctx context.Context, table string, updates map[string]map[string]any) error
	ListLinked(ctx context.Context, table string, ids []string) ([]Record, error)
}
