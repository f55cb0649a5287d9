package recordstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/tidyhost/turnsync/internal/interfaces"
	"github.com/tidyhost/turnsync/internal/models"
)

// PropertyRepo implements interfaces.PropertyStore. Properties are
// read-only to the engine.
type PropertyRepo struct {
	store  interfaces.RecordStore
	logger arbor.ILogger
}

// NewPropertyRepo creates a property repository.
func NewPropertyRepo(store interfaces.RecordStore, logger arbor.ILogger) interfaces.PropertyStore {
	return &PropertyRepo{
		store:  store,
		logger: logger,
	}
}

func (r *PropertyRepo) ListProperties(ctx context.Context) ([]*models.Property, error) {
	records, err := r.store.List(ctx, TableProperties, interfaces.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}

	out := make([]*models.Property, 0, len(records))
	for i := range records {
		out = append(out, propertyFromRecord(&records[i]))
	}
	return out, nil
}

func propertyFromRecord(rec *interfaces.Record) *models.Property {
	f := rec.Fields

	p := &models.Property{
		ID:            rec.ID,
		Name:          getString(f, FieldPropertyName),
		OwnerName:     getString(f, FieldOwnerName),
		ListingNumber: getString(f, FieldListingNumber),
		CustomerID:    getString(f, FieldCustomerID),
		AddressID:     getString(f, FieldAddressID),
		TemplateJobIDs: map[models.ServiceType]string{
			models.ServiceTypeTurnover:      getString(f, FieldTurnoverTemplate),
			models.ServiceTypeReturnLaundry: getString(f, FieldLaundryTemplate),
			models.ServiceTypeInspection:    getString(f, FieldInspectionTemplate),
		},
		JobTypeIDs: map[models.ServiceType]string{
			models.ServiceTypeTurnover:      getString(f, FieldTurnoverJobType),
			models.ServiceTypeReturnLaundry: getString(f, FieldLaundryJobType),
			models.ServiceTypeInspection:    getString(f, FieldInspectionJobType),
		},
	}

	// Feed URLs live in one long-text field, one URL per line.
	for _, line := range strings.Split(getString(f, FieldFeedURLs), "\n") {
		if url := strings.TrimSpace(line); url != "" {
			p.FeedURLs = append(p.FeedURLs, url)
		}
	}

	return p
}
